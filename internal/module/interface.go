package module

import (
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/iface"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

// InterfaceInstance realizes an interface definition inside a module, either
// as a local bundle of signals or as an interface port.
type InterfaceInstance struct {
	name    string
	def     *iface.Definition
	modport *iface.Modport
	isPort  bool
	owner   *Module
	members []*expr.Signal
	byName  map[string]*expr.Signal
}

// InterfaceEnd is anything that can appear on either side of WireInterface:
// an interface instance or a modport projection of one.
type InterfaceEnd interface {
	instance() *InterfaceInstance
	view() *iface.Modport
}

func (ii *InterfaceInstance) instance() *InterfaceInstance { return ii }
func (ii *InterfaceInstance) view() *iface.Modport         { return ii.modport }

func (ii *InterfaceInstance) Name() string                  { return ii.name }
func (ii *InterfaceInstance) Definition() *iface.Definition { return ii.def }
func (ii *InterfaceInstance) Modport() *iface.Modport       { return ii.modport }
func (ii *InterfaceInstance) IsPort() bool                  { return ii.isPort }
func (ii *InterfaceInstance) Owner() *Module                { return ii.owner }
func (ii *InterfaceInstance) Members() []*expr.Signal       { return append([]*expr.Signal(nil), ii.members...) }

// TypeName is the text used to declare the instance: Definition or
// Definition.Modport for modport ports.
func (ii *InterfaceInstance) TypeName() string {
	if ii.modport != nil {
		return ii.modport.QualifiedName()
	}
	return ii.def.Name()
}

// Member returns the signal for a member of the instance.
func (ii *InterfaceInstance) Member(name string) (*expr.Signal, error) {
	if s, ok := ii.byName[name]; ok {
		return s, nil
	}
	var names []string
	for _, s := range ii.members {
		names = append(names, s.Name())
	}
	return nil, rtlerr.UnknownName(ii.owner.name+"."+ii.name, name, rtlerr.Suggest(name, names))
}

// MustMember is like Member but panics on an unknown name.
func (ii *InterfaceInstance) MustMember(name string) *expr.Signal {
	s, err := ii.Member(name)
	if err != nil {
		panic(err)
	}
	return s
}

// Project returns a modport view of a local interface instance.
func (ii *InterfaceInstance) Project(modport string) (*View, error) {
	if ii.modport != nil {
		return nil, errors.Errorf("%s: already restricted to modport %s", ii.name, ii.modport.Name())
	}
	mp, err := ii.def.Modport(modport)
	if err != nil {
		return nil, err
	}
	return &View{inst: ii, modport: mp}, nil
}

// MustProject is like Project but panics on error.
func (ii *InterfaceInstance) MustProject(modport string) *View {
	v, err := ii.Project(modport)
	if err != nil {
		panic(err)
	}
	return v
}

// View is a modport projection of a local interface instance. It renders as
// instance.Modport in port maps.
type View struct {
	inst    *InterfaceInstance
	modport *iface.Modport
}

func (v *View) instance() *InterfaceInstance { return v.inst }
func (v *View) view() *iface.Modport         { return v.modport }
func (v *View) String() string               { return v.inst.name + "." + v.modport.Name() }

// Interface creates an interface instance named name. src is either an
// *iface.Definition or an *iface.Modport. With isPort the instance becomes an
// interface port whose members take the modport directions.
func (m *Module) Interface(src interface{}, name string, isPort bool) (*InterfaceInstance, error) {
	ii := &InterfaceInstance{name: name, isPort: isPort, owner: m, byName: map[string]*expr.Signal{}}
	switch s := src.(type) {
	case *iface.Definition:
		ii.def = s
	case *iface.Modport:
		ii.def, ii.modport = s.Definition(), s
	default:
		return nil, errors.Errorf("%s.%s: unsupported interface source %T", m.name, name, src)
	}
	if ii.modport != nil && !isPort {
		return nil, errors.Errorf("%s.%s: a modport can only be instantiated as a port", m.name, name)
	}
	if err := m.reserve(name, entityInterface); err != nil {
		return nil, err
	}

	for _, mem := range ii.def.Members() {
		spec := expr.SignalSpec{Name: mem.Name, Width: mem.Width, Signed: mem.Signed, Kind: expr.KindVar, Bundle: name}
		if isPort {
			spec.Kind = expr.KindPort
			spec.Dir = expr.DirInout
			if ii.modport != nil {
				dir, ok := ii.modport.Direction(mem.Name)
				if !ok {
					continue
				}
				spec.Dir = dir
			}
		}
		if mem.Clock {
			spec.Kind = expr.KindClock
		}
		sig := expr.NewSignal(m, spec)
		ii.members = append(ii.members, sig)
		ii.byName[mem.Name] = sig
	}
	m.ifaces = append(m.ifaces, ii)
	m.order = append(m.order, Declaration{Interface: ii})
	return ii, nil
}

// memberOf finds the interface instance a member signal belongs to.
func memberOf(s *expr.Signal) *InterfaceInstance {
	if s.Bundle() == "" {
		return nil
	}
	owner, ok := s.Owner().(*Module)
	if !ok {
		return nil
	}
	for _, ii := range owner.ifaces {
		if ii.name == s.Bundle() && ii.byName[s.Name()] == s {
			return ii
		}
	}
	return nil
}
