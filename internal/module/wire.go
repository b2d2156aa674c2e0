package module

import (
	"fmt"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/iface"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

// Connection is a recorded wire between a destination and a source.
type Connection struct {
	Dst   expr.Expr
	Src   expr.Expr
	value expr.Expr
	seq   int
}

// Value is the source sized for the destination.
func (c *Connection) Value() expr.Expr { return c.value }

// InterfaceConnection binds a child's interface port to a peer: a local
// instance, a modport view, an own interface port or another child's port.
type InterfaceConnection struct {
	Port *InterfaceInstance
	Peer InterfaceEnd
}

type role int

const (
	roleEither role = iota
	roleSource
	roleSink
)

func ownerModule(s *expr.Signal) *Module {
	m, _ := s.Owner().(*Module)
	return m
}

// classify decides whether e can drive, be driven, or both, seen from m.
func (m *Module) classify(e expr.Expr) (role, error) {
	switch n := e.(type) {
	case *expr.Signal:
		owner := ownerModule(n)
		if owner == m {
			switch n.Dir() {
			case expr.DirInput:
				return roleSource, nil
			case expr.DirOutput:
				return roleSink, nil
			}
			return roleEither, nil
		}
		if owner == nil || !n.IsPort() {
			return 0, rtlerr.Scope(m.name, n.FullName(), n.OwnerName())
		}
		if n.Bundle() != "" {
			return 0, rtlerr.DirectionConflict(m.name, n.FullName(),
				"interface members of a child are connected through WireInterface")
		}
		switch n.Dir() {
		case expr.DirInput:
			return roleSink, nil
		case expr.DirOutput:
			return roleSource, nil
		}
		return roleEither, nil
	case *expr.SliceExpr:
		r, err := m.classify(n.Base())
		if err != nil {
			return 0, err
		}
		if ownerModule(n.Base()) != m && r != roleSource {
			return 0, rtlerr.DirectionConflict(m.name, n.String(), "child ports are bound as a whole")
		}
		return r, nil
	}
	if err := m.scopeCheck(e); err != nil {
		return 0, err
	}
	return roleSource, nil
}

// scopeCheck rejects references to signals that are neither local nor ports
// of another module, and to parameters of other modules. Whether the other module is a direct child is checked
// during elaboration.
func (m *Module) scopeCheck(e expr.Expr) error {
	for _, s := range expr.Signals(e) {
		owner := ownerModule(s)
		if owner == m {
			continue
		}
		if owner == nil || !s.IsPort() || s.Bundle() != "" {
			return rtlerr.Scope(m.name, s.FullName(), s.OwnerName())
		}
	}
	for _, p := range paramsIn(e) {
		if p.Owner() != expr.Scope(m) {
			return rtlerr.Scope(m.name, p.OwnerName()+"."+p.Name(), p.OwnerName())
		}
	}
	return nil
}

// Wire connects a and b. Ports of this module and of its children have a
// fixed role; variables can be either side, in which case a is driven by b.
func (m *Module) Wire(a, b expr.Expr) error {
	ra, err := m.classify(a)
	if err != nil {
		return err
	}
	rb, err := m.classify(b)
	if err != nil {
		return err
	}

	var dst, src expr.Expr
	switch {
	case ra == rb && ra != roleEither:
		what := "both endpoints are drivers"
		if ra == roleSink {
			what = "both endpoints are sinks"
		}
		return rtlerr.DirectionConflict(m.name, fmt.Sprintf("%s <-> %s", a, b), what)
	case ra == roleSink, rb == roleSource:
		dst, src = a, b
	case rb == roleSink, ra == roleSource:
		dst, src = b, a
	default:
		dst, src = a, b
	}
	return m.connect(dst, src)
}

func (m *Module) connect(dst, src expr.Expr) error {
	if err := m.checkWritable(dst, true); err != nil {
		return err
	}
	v, err := expr.Fit(src, dst.Width(), fmt.Sprintf("%s.%s", m.name, dst))
	if err != nil {
		return err
	}
	m.conns = append(m.conns, &Connection{Dst: dst, Src: src, value: v, seq: m.nextSeq()})
	return nil
}

// checkWritable verifies every bit range of dst may be driven from m.
func (m *Module) checkWritable(dst expr.Expr, allowChildInput bool) error {
	targets, err := expr.Targets(dst)
	if err != nil {
		return err
	}
	for _, t := range targets {
		s := t.Signal
		owner := ownerModule(s)
		if owner == m {
			if s.Dir() == expr.DirInput {
				return rtlerr.DirectionConflict(m.name, s.Ref(), "input port cannot be driven from inside its module")
			}
			continue
		}
		if owner == nil || !s.IsPort() || s.Bundle() != "" {
			return rtlerr.Scope(m.name, s.FullName(), s.OwnerName())
		}
		if s.Dir() == expr.DirOutput {
			return rtlerr.DirectionConflict(m.name, s.FullName(), "output port of a child cannot be driven by its parent")
		}
		if !allowChildInput {
			return rtlerr.DirectionConflict(m.name, s.FullName(), "child ports are bound as a whole")
		}
	}
	return nil
}

// Assign records a continuous assignment dst = src. A whole child input
// or inout port as destination is recorded as a port connection, still
// driven by src.
func (m *Module) Assign(dst, src expr.Expr) error {
	if s, ok := dst.(*expr.Signal); ok && ownerModule(s) != m {
		r, err := m.classify(dst)
		if err != nil {
			return err
		}
		if r == roleSource {
			return rtlerr.DirectionConflict(m.name, s.FullName(), "output port of a child cannot be driven by its parent")
		}
		if _, err := m.classify(src); err != nil {
			return err
		}
		return m.connect(dst, src)
	}
	if err := m.checkWritable(dst, false); err != nil {
		return err
	}
	if err := m.scopeCheck(src); err != nil {
		return err
	}
	a, err := stmt.NewAssign(dst, src)
	if err != nil {
		return err
	}
	m.assigns = append(m.assigns, &ContinuousAssign{Left: a.Left, Right: a.Right, value: a.Value(), seq: m.nextSeq()})
	return nil
}

// AddBlock attaches a procedural block after checking that every signal it
// touches is in scope and every destination may be driven from m.
func (m *Module) AddBlock(blk *stmt.Block) error {
	for _, t := range blk.Triggers {
		if err := m.scopeCheck(t.Signal); err != nil {
			return err
		}
	}
	for _, a := range blk.Assigns() {
		if err := m.checkWritable(a.Left, true); err != nil {
			return err
		}
		if err := m.scopeCheck(a.Right); err != nil {
			return err
		}
	}
	var condErr error
	stmt.Walk(blk.Stmts, func(s stmt.Stmt) {
		if condErr != nil {
			return
		}
		switch n := s.(type) {
		case *stmt.If:
			condErr = m.scopeCheck(n.Cond)
		case *stmt.Switch:
			condErr = m.scopeCheck(n.Target)
		}
	})
	if condErr != nil {
		return condErr
	}
	m.blocks = append(m.blocks, blk)
	return nil
}

// Combinational builds a combinational block with fn and attaches it.
func (m *Module) Combinational(fn func(*stmt.Builder)) (*stmt.Block, error) {
	blk, err := stmt.NewCombinational(fn)
	if err != nil {
		return nil, err
	}
	return blk, m.AddBlock(blk)
}

// Sequential builds a block triggered on one edge of clk and attaches it.
func (m *Module) Sequential(edge stmt.Edge, clk *expr.Signal, fn func(*stmt.Builder)) (*stmt.Block, error) {
	return m.SequentialOn([]stmt.Trigger{{Edge: edge, Signal: clk}}, fn)
}

// SequentialOn builds a block with several triggers and attaches it.
func (m *Module) SequentialOn(triggers []stmt.Trigger, fn func(*stmt.Builder)) (*stmt.Block, error) {
	blk, err := stmt.NewSequential(triggers, fn)
	if err != nil {
		return nil, err
	}
	return blk, m.AddBlock(blk)
}

// LeaveOpen marks a child input port as intentionally unconnected.
func (m *Module) LeaveOpen(port *expr.Signal) error {
	owner := ownerModule(port)
	if owner == nil || owner == m || m.instanceOf(owner) == nil {
		return rtlerr.Scope(m.name, port.FullName(), port.OwnerName())
	}
	if !port.IsPort() || port.Bundle() != "" {
		return rtlerr.DirectionConflict(m.name, port.FullName(), "only child signal ports can be left open")
	}
	m.open[port] = true
	return nil
}

type ifaceClass int

const (
	ifaceLocal ifaceClass = iota
	ifaceOwnPort
	ifaceChildPort
)

func (m *Module) classifyInterface(end InterfaceEnd) (ifaceClass, error) {
	ii := end.instance()
	if ii.owner == m {
		if ii.isPort {
			return ifaceOwnPort, nil
		}
		return ifaceLocal, nil
	}
	if !ii.isPort {
		return 0, rtlerr.Scope(m.name, ii.owner.name+"."+ii.name, ii.owner.name)
	}
	return ifaceChildPort, nil
}

// WireInterface connects two interface ends of the same definition. One end
// must be an interface port of a child; the other may be a local instance,
// a modport view of one, an interface port of m or another child's port.
func (m *Module) WireInterface(a, b InterfaceEnd) error {
	ia, ib := a.instance(), b.instance()
	if ia.def != ib.def {
		return rtlerr.InterfaceMismatch(ia.TypeName(), ib.TypeName())
	}
	ca, err := m.classifyInterface(a)
	if err != nil {
		return err
	}
	cb, err := m.classifyInterface(b)
	if err != nil {
		return err
	}
	if ca != ifaceChildPort {
		a, b, ca, cb = b, a, cb, ca
	}
	if ca != ifaceChildPort {
		return rtlerr.DirectionConflict(m.name, ia.name+" <-> "+ib.name,
			"one end must be an interface port of a child")
	}

	port := a.instance()
	childMp := port.modport
	peerMp := b.view()
	if childMp != nil && peerMp != nil {
		switch cb {
		case ifaceLocal:
			if err := sameDirections(m.name, childMp, peerMp); err != nil {
				return err
			}
		case ifaceOwnPort:
			if err := passThrough(m.name, childMp, peerMp); err != nil {
				return err
			}
		case ifaceChildPort:
			if err := port.def.CheckComplementary(childMp, peerMp); err != nil {
				return err
			}
		}
	}
	m.iconns = append(m.iconns, &InterfaceConnection{Port: port, Peer: b})
	return nil
}

func sameDirections(module string, child, view *iface.Modport) error {
	if child == view {
		return nil
	}
	for _, e := range child.Entries() {
		d, ok := view.Direction(e.Member)
		if !ok || d != e.Dir {
			return rtlerr.DirectionConflict(module, e.Member,
				fmt.Sprintf("is %s in %s but not in %s", e.Dir, child.QualifiedName(), view.QualifiedName()))
		}
	}
	return nil
}

func passThrough(module string, child, own *iface.Modport) error {
	for _, e := range child.Entries() {
		d, ok := own.Direction(e.Member)
		if !ok {
			return rtlerr.DirectionConflict(module, e.Member, "not visible through "+own.QualifiedName())
		}
		if e.Dir == expr.DirOutput && d != expr.DirOutput {
			return rtlerr.DirectionConflict(module, e.Member,
				fmt.Sprintf("driven by the child but %s in %s", d, own.QualifiedName()))
		}
	}
	return nil
}
