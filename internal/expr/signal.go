package expr

// Kind classifies a named signal.
type Kind int

const (
	KindVar Kind = iota
	KindPort
	KindClock
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindPort:
		return "port"
	case KindClock:
		return "clock"
	case KindReset:
		return "reset"
	}
	return "unknown"
}

// Direction of a port. Variables carry DirNone.
type Direction int

const (
	DirNone Direction = iota
	DirInput
	DirOutput
	DirInout
)

func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	case DirInout:
		return "inout"
	}
	return "none"
}

// Flip swaps input and output. Other directions are returned unchanged.
func (d Direction) Flip() Direction {
	switch d {
	case DirInput:
		return DirOutput
	case DirOutput:
		return DirInput
	}
	return d
}

// Scope is the owner of a signal, normally a module.
type Scope interface {
	ScopeName() string
}

// SignalSpec describes a signal to be created by NewSignal.
type SignalSpec struct {
	Name   string
	Width  int
	Signed bool
	Kind   Kind
	Dir    Direction
	// Bundle is the interface instance the signal is a member of, if any.
	Bundle string
	// WidthParam, when set, sizes the signal by the parameter's value and
	// Width is ignored.
	WidthParam *Param
}

// Signal is a named, width-typed value owned by exactly one scope.
// Signals are compared by identity.
type Signal struct {
	name   string
	width  int
	signed bool
	kind   Kind
	dir    Direction
	owner  Scope
	bundle string
	param  *Param
}

// NewSignal creates a signal owned by scope. Name and width validation is
// the responsibility of the registry that calls it.
func NewSignal(owner Scope, spec SignalSpec) *Signal {
	return &Signal{
		name:   spec.Name,
		width:  spec.Width,
		signed: spec.Signed,
		kind:   spec.Kind,
		dir:    spec.Dir,
		owner:  owner,
		bundle: spec.Bundle,
		param:  spec.WidthParam,
	}
}

func (s *Signal) expr() {}

func (s *Signal) Name() string { return s.name }
func (s *Signal) Width() int {
	if s.param != nil {
		return int(s.param.Value())
	}
	return s.width
}

// WidthParam is the parameter sizing s, or nil for a fixed width.
func (s *Signal) WidthParam() *Param { return s.param }

func (s *Signal) Signed() bool      { return s.signed }
func (s *Signal) Kind() Kind        { return s.kind }
func (s *Signal) Dir() Direction    { return s.dir }
func (s *Signal) Owner() Scope      { return s.owner }
func (s *Signal) Bundle() string    { return s.bundle }
func (s *Signal) IsPort() bool      { return s.dir != DirNone }
func (s *Signal) IsClock() bool     { return s.kind == KindClock }
func (s *Signal) IsReset() bool     { return s.kind == KindReset }
func (s *Signal) String() string    { return s.Ref() }
func (s *Signal) Spec() SignalSpec {
	return SignalSpec{Name: s.name, Width: s.width, Signed: s.signed, Kind: s.kind, Dir: s.dir, Bundle: s.bundle, WidthParam: s.param}
}
func (s *Signal) OwnerName() string { return scopeName(s.owner) }

// Ref is the reference text of the signal inside its owner: the bare name,
// or bundle.name for interface members.
func (s *Signal) Ref() string {
	if s.bundle != "" {
		return s.bundle + "." + s.name
	}
	return s.name
}

// FullName qualifies the reference with the owner name for diagnostics.
func (s *Signal) FullName() string {
	if s.owner == nil {
		return s.Ref()
	}
	return s.owner.ScopeName() + "." + s.Ref()
}

func scopeName(s Scope) string {
	if s == nil {
		return ""
	}
	return s.ScopeName()
}
