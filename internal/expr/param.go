package expr

import (
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// Param is a module parameter. In expressions it reads as an unsigned
// constant of its declared width; signals declared with it take its value as
// their width. A parameter bound to another one follows that parameter's
// value and is emitted as an instance override.
type Param struct {
	name   string
	width  int
	value  int64
	owner  Scope
	source *Param
}

// NewParam creates a parameter owned by scope. The registry validates the
// name.
func NewParam(owner Scope, name string, width int, value int64) (*Param, error) {
	if err := checkRange(value, width, false); err != nil {
		return nil, err
	}
	return &Param{name: name, width: width, value: value, owner: owner}, nil
}

func (p *Param) expr() {}

func (p *Param) Name() string      { return p.name }
func (p *Param) Width() int        { return p.width }
func (p *Param) Signed() bool      { return false }
func (p *Param) String() string    { return p.name }
func (p *Param) Owner() Scope      { return p.owner }
func (p *Param) OwnerName() string { return scopeName(p.owner) }

// Source is the parameter p is bound to, or nil.
func (p *Param) Source() *Param { return p.source }

// Default is the value declared on p itself, ignoring any binding.
func (p *Param) Default() int64 { return p.value }

// Value is the effective value: the bound parameter's value if p is bound.
func (p *Param) Value() int64 {
	if p.source != nil {
		return p.source.Value()
	}
	return p.value
}

// SetValue replaces the value and drops any binding.
func (p *Param) SetValue(v int64) error {
	if err := checkRange(v, p.width, false); err != nil {
		return err
	}
	p.value = v
	p.source = nil
	return nil
}

// Bind makes p follow src. Chains are allowed, cycles are not.
func (p *Param) Bind(src *Param) error {
	for q := src; q != nil; q = q.source {
		if q == p {
			return errors.Errorf("parameter %s.%s: binding cycle", p.OwnerName(), p.name)
		}
	}
	if src.Width() > p.width {
		return rtlerr.WidthMismatch(p.OwnerName()+"."+p.name, p.width, src.Width())
	}
	p.source = src
	return nil
}
