package module

import (
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// Parameter declares a parameter of the given bit width with a default
// value. It shares the namespace of signals and instances.
func (m *Module) Parameter(name string, width int, value int64) (*expr.Param, error) {
	if width < 1 {
		return nil, rtlerr.WidthMismatch(m.name+"."+name, 1, width)
	}
	p, err := expr.NewParam(m, name, width, value)
	if err != nil {
		return nil, errors.Wrapf(err, "parameter %s.%s", m.name, name)
	}
	if err := m.reserve(name, entityParam); err != nil {
		return nil, err
	}
	m.params = append(m.params, p)
	return p, nil
}

// Params lists the parameters in declaration order.
func (m *Module) Params() []*expr.Param { return append([]*expr.Param(nil), m.params...) }

// Param looks up a parameter by name.
func (m *Module) Param(name string) (*expr.Param, error) {
	var names []string
	for _, p := range m.params {
		if p.Name() == name {
			return p, nil
		}
		names = append(names, p.Name())
	}
	return nil, rtlerr.UnknownName(m.name, name, rtlerr.Suggest(name, names))
}

// ParamVar declares an unsigned variable sized by p.
func (m *Module) ParamVar(name string, p *expr.Param) (*expr.Signal, error) {
	return m.declare(expr.SignalSpec{Name: name, Kind: expr.KindVar, WidthParam: p})
}

// ParamPort declares a port sized by p.
func (m *Module) ParamPort(dir expr.Direction, name string, p *expr.Param, signed bool) (*expr.Signal, error) {
	if dir == expr.DirNone {
		return nil, errors.Errorf("%s.%s: port needs a direction", m.name, name)
	}
	return m.declare(expr.SignalSpec{Name: name, Signed: signed, Kind: expr.KindPort, Dir: dir, WidthParam: p})
}

// checkParams verifies parameter bindings and parameter-sized widths: a
// bound parameter must follow a parameter of the module instantiating it.
func (r *resolver) checkParams() error {
	for _, p := range r.m.params {
		src := p.Source()
		if src == nil {
			continue
		}
		var want *Module
		if r.m.parent != nil {
			want = r.m.parent.Parent
		}
		if want == nil || src.Owner() != expr.Scope(want) {
			return rtlerr.Scope(r.m.name, p.Name(), src.OwnerName())
		}
	}
	for _, s := range r.m.signals {
		if s.WidthParam() != nil && s.Width() < 1 {
			return rtlerr.WidthMismatch(r.m.name+"."+s.Name(), 1, s.Width())
		}
	}
	return nil
}

// refit re-sizes recorded connections, assigns and blocks for the current
// parameter values.
func (r *resolver) refit() error {
	for _, c := range r.m.conns {
		if _, err := expr.Refit(c.Dst); err != nil {
			return err
		}
		src, err := expr.Refit(c.Src)
		if err != nil {
			return err
		}
		v, err := expr.Fit(src, c.Dst.Width(), r.m.name+"."+c.Dst.String())
		if err != nil {
			return err
		}
		c.value = v
	}
	for _, a := range r.m.assigns {
		if _, err := expr.Refit(a.Left); err != nil {
			return err
		}
		src, err := expr.Refit(a.Right)
		if err != nil {
			return err
		}
		v, err := expr.Fit(src, a.Left.Width(), r.m.name+"."+a.Left.String())
		if err != nil {
			return err
		}
		a.value = v
	}
	for _, blk := range r.m.blocks {
		if err := blk.Refit(); err != nil {
			return errors.Wrapf(err, "%s", r.m.name)
		}
	}
	return nil
}

// paramOverrides lists the instance overrides of a child: one per child
// parameter bound to a parameter of r.m.
func paramOverrides(child *Module) []ParamBinding {
	var out []ParamBinding
	for _, p := range child.params {
		if src := p.Source(); src != nil {
			out = append(out, ParamBinding{Param: p.Name(), Text: src.Name()})
		}
	}
	return out
}

func paramsIn(e expr.Expr) []*expr.Param {
	var out []*expr.Param
	expr.Walk(e, func(n expr.Expr) bool {
		if p, ok := n.(*expr.Param); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}
