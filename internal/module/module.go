// Package module holds the circuit under construction: per-module signal
// registries, interface instances, child instances, wiring and procedural
// blocks, and the elaboration pass that turns a hierarchy into a Design.
package module

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
	"github.com/robert-at-pretension-io/rtlgen/internal/syntax"
)

type entity int

const (
	entitySignal entity = iota
	entityInterface
	entityInstance
	entityParam
)

// Module is a named hardware unit. All mutation happens through its methods,
// which validate fully before changing anything.
type Module struct {
	name    string
	comment string

	signals []*expr.Signal
	byName  map[string]*expr.Signal
	names   map[string]entity
	params  []*expr.Param

	ifaces   []*InterfaceInstance
	children []*Instance

	assigns []*ContinuousAssign
	blocks  []*stmt.Block
	conns   []*Connection
	iconns  []*InterfaceConnection
	open    map[*expr.Signal]bool
	order   []Declaration
	seq     int

	parent *Instance
}

// Declaration is a signal or an interface instance in declaration order.
type Declaration struct {
	Signal    *expr.Signal
	Interface *InterfaceInstance
}

// IsPort reports whether the declaration belongs in the port list.
func (d Declaration) IsPort() bool {
	if d.Interface != nil {
		return d.Interface.isPort
	}
	return d.Signal.IsPort()
}

// Name of the declared signal or interface.
func (d Declaration) Name() string {
	if d.Interface != nil {
		return d.Interface.name
	}
	return d.Signal.Name()
}

// Instance is a placement of a child module inside a parent.
type Instance struct {
	Name    string
	Module  *Module
	Parent  *Module
	Comment string
}

// ContinuousAssign is an explicit assign statement recorded with the values
// given by the caller.
type ContinuousAssign struct {
	Left  expr.Expr
	Right expr.Expr
	value expr.Expr
	seq   int
}

// Value is the source sized for the destination.
func (a *ContinuousAssign) Value() expr.Expr { return a.value }

// New creates an empty module.
func New(name string) (*Module, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return &Module{
		name:   name,
		byName: map[string]*expr.Signal{},
		names:  map[string]entity{},
		open:   map[*expr.Signal]bool{},
	}, nil
}

// MustNew is like New but panics on an invalid name.
func MustNew(name string) *Module {
	m, err := New(name)
	if err != nil {
		panic(err)
	}
	return m
}

func checkName(name string) error {
	if syntax.IsKeyword(name) {
		return rtlerr.InvalidName(name, "reserved keyword")
	}
	if !syntax.IsIdentifier(name) {
		return rtlerr.InvalidName(name, "not a legal identifier")
	}
	return nil
}

func (m *Module) Name() string          { return m.name }
func (m *Module) ScopeName() string     { return m.name }
func (m *Module) Comment() string       { return m.comment }
func (m *Module) SetComment(c string)   { m.comment = c }
func (m *Module) Parent() *Instance     { return m.parent }
func (m *Module) Blocks() []*stmt.Block { return append([]*stmt.Block(nil), m.blocks...) }

func (m *Module) Assigns() []*ContinuousAssign {
	return append([]*ContinuousAssign(nil), m.assigns...)
}

func (m *Module) Connections() []*Connection {
	return append([]*Connection(nil), m.conns...)
}

func (m *Module) InterfaceConnections() []*InterfaceConnection {
	return append([]*InterfaceConnection(nil), m.iconns...)
}

func (m *Module) reserve(name string, kind entity) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, taken := m.names[name]; taken {
		return rtlerr.DuplicateName(m.name, name)
	}
	m.names[name] = kind
	return nil
}

func (m *Module) declare(spec expr.SignalSpec) (*expr.Signal, error) {
	width := spec.Width
	if p := spec.WidthParam; p != nil {
		if p.Owner() != expr.Scope(m) {
			return nil, rtlerr.Scope(m.name, p.Name(), p.OwnerName())
		}
		width = int(p.Value())
	}
	if width < 1 {
		return nil, rtlerr.WidthMismatch(m.name+"."+spec.Name, 1, width)
	}
	if err := m.reserve(spec.Name, entitySignal); err != nil {
		return nil, err
	}
	s := expr.NewSignal(m, spec)
	m.signals = append(m.signals, s)
	m.byName[spec.Name] = s
	m.order = append(m.order, Declaration{Signal: s})
	return s, nil
}

func (m *Module) nextSeq() int {
	m.seq++
	return m.seq
}

// Declarations lists ports, variables and interfaces in declaration order.
func (m *Module) Declarations() []Declaration {
	return append([]Declaration(nil), m.order...)
}

// PortList lists signal ports and interface ports in declaration order.
func (m *Module) PortList() []Declaration {
	var out []Declaration
	for _, d := range m.order {
		if d.IsPort() {
			out = append(out, d)
		}
	}
	return out
}

// IsOpen reports whether a child port was marked with LeaveOpen.
func (m *Module) IsOpen(port *expr.Signal) bool { return m.open[port] }

// Var declares an unsigned internal variable.
func (m *Module) Var(name string, width int) (*expr.Signal, error) {
	return m.declare(expr.SignalSpec{Name: name, Width: width, Kind: expr.KindVar})
}

// SignedVar declares a signed internal variable.
func (m *Module) SignedVar(name string, width int) (*expr.Signal, error) {
	return m.declare(expr.SignalSpec{Name: name, Width: width, Signed: true, Kind: expr.KindVar})
}

// Port declares a port with the given direction.
func (m *Module) Port(dir expr.Direction, name string, width int, signed bool) (*expr.Signal, error) {
	if dir == expr.DirNone {
		return nil, errors.Errorf("%s.%s: port needs a direction", m.name, name)
	}
	return m.declare(expr.SignalSpec{Name: name, Width: width, Signed: signed, Kind: expr.KindPort, Dir: dir})
}

func (m *Module) Input(name string, width int) (*expr.Signal, error) {
	return m.Port(expr.DirInput, name, width, false)
}

func (m *Module) Output(name string, width int) (*expr.Signal, error) {
	return m.Port(expr.DirOutput, name, width, false)
}

func (m *Module) Inout(name string, width int) (*expr.Signal, error) {
	return m.Port(expr.DirInout, name, width, false)
}

// Clock declares a 1-bit clock input.
func (m *Module) Clock(name string) (*expr.Signal, error) {
	return m.declare(expr.SignalSpec{Name: name, Width: 1, Kind: expr.KindClock, Dir: expr.DirInput})
}

// Reset declares a 1-bit reset input.
func (m *Module) Reset(name string) (*expr.Signal, error) {
	return m.declare(expr.SignalSpec{Name: name, Width: 1, Kind: expr.KindReset, Dir: expr.DirInput})
}

// Signal looks up a variable or port by name.
func (m *Module) Signal(name string) (*expr.Signal, error) {
	if s, ok := m.byName[name]; ok {
		return s, nil
	}
	return nil, rtlerr.UnknownName(m.name, name, rtlerr.Suggest(name, m.signalNames()))
}

// MustSignal is like Signal but panics on an unknown name.
func (m *Module) MustSignal(name string) *expr.Signal {
	s, err := m.Signal(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (m *Module) signalNames() []string {
	names := make([]string, 0, len(m.byName))
	for n := range m.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PortNamed looks up a port by name.
func (m *Module) PortNamed(name string) (*expr.Signal, error) {
	s, err := m.Signal(name)
	if err != nil {
		return nil, err
	}
	if !s.IsPort() {
		return nil, rtlerr.UnknownName(m.name, name, rtlerr.Suggest(name, m.portNames()))
	}
	return s, nil
}

func (m *Module) portNames() []string {
	var names []string
	for _, s := range m.signals {
		if s.IsPort() {
			names = append(names, s.Name())
		}
	}
	return names
}

// Signals lists ports and variables in declaration order.
func (m *Module) Signals() []*expr.Signal {
	return append([]*expr.Signal(nil), m.signals...)
}

// Ports lists ports in declaration order.
func (m *Module) Ports() []*expr.Signal {
	var out []*expr.Signal
	for _, s := range m.signals {
		if s.IsPort() {
			out = append(out, s)
		}
	}
	return out
}

// Vars lists internal variables in declaration order.
func (m *Module) Vars() []*expr.Signal {
	var out []*expr.Signal
	for _, s := range m.signals {
		if !s.IsPort() {
			out = append(out, s)
		}
	}
	return out
}

// Interfaces lists interface instances and interface ports in declaration order.
func (m *Module) Interfaces() []*InterfaceInstance {
	return append([]*InterfaceInstance(nil), m.ifaces...)
}

// InterfaceNamed looks up an interface instance by name.
func (m *Module) InterfaceNamed(name string) (*InterfaceInstance, error) {
	var names []string
	for _, ii := range m.ifaces {
		if ii.name == name {
			return ii, nil
		}
		names = append(names, ii.name)
	}
	return nil, rtlerr.UnknownName(m.name, name, rtlerr.Suggest(name, names))
}

// Clocks lists clock inputs, including clock members of interface ports.
func (m *Module) Clocks() []*expr.Signal {
	var out []*expr.Signal
	for _, s := range m.signals {
		if s.IsClock() {
			out = append(out, s)
		}
	}
	for _, ii := range m.ifaces {
		for _, s := range ii.members {
			if s.IsClock() && ii.isPort {
				out = append(out, s)
			}
		}
	}
	return out
}

// Resets lists reset inputs.
func (m *Module) Resets() []*expr.Signal {
	var out []*expr.Signal
	for _, s := range m.signals {
		if s.IsReset() {
			out = append(out, s)
		}
	}
	return out
}

// Children lists child instances in insertion order.
func (m *Module) Children() []*Instance {
	return append([]*Instance(nil), m.children...)
}

// Child looks up a child instance by instance name.
func (m *Module) Child(name string) (*Instance, error) {
	var names []string
	for _, c := range m.children {
		if c.Name == name {
			return c, nil
		}
		names = append(names, c.Name)
	}
	return nil, rtlerr.UnknownName(m.name, name, rtlerr.Suggest(name, names))
}

func (m *Module) instanceOf(child *Module) *Instance {
	for _, c := range m.children {
		if c.Module == child {
			return c
		}
	}
	return nil
}
