package module

import (
	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

// AddChild instantiates child inside m under instanceName. A module has at
// most one parent and the hierarchy must stay acyclic.
func (m *Module) AddChild(instanceName string, child *Module) error {
	return m.AddChildWithComment(instanceName, child, "")
}

// AddChildWithComment is AddChild with a comment emitted above the instance.
func (m *Module) AddChildWithComment(instanceName string, child *Module, comment string) error {
	if child == nil {
		return rtlerr.Hierarchy(m.name, "<nil>", "no module given")
	}
	if err := checkName(instanceName); err != nil {
		return err
	}
	for _, c := range m.children {
		if c.Name == instanceName {
			return rtlerr.DuplicateInstance(m.name, instanceName)
		}
	}
	if _, taken := m.names[instanceName]; taken {
		return rtlerr.DuplicateName(m.name, instanceName)
	}
	if child == m {
		return rtlerr.Hierarchy(m.name, child.name, "a module cannot instantiate itself")
	}
	for p := m.parent; p != nil; p = p.Parent.parent {
		if p.Parent == child {
			return rtlerr.Hierarchy(m.name, child.name, "instantiation would create a cycle")
		}
	}
	if child.parent != nil {
		return rtlerr.Hierarchy(m.name, child.name,
			"already instantiated as "+child.parent.Parent.name+"."+child.parent.Name)
	}

	inst := &Instance{Name: instanceName, Module: child, Parent: m, Comment: comment}
	m.names[instanceName] = entityInstance
	m.children = append(m.children, inst)
	child.parent = inst
	return nil
}

// RemoveChild drops an instance together with every connection that touches
// its ports.
func (m *Module) RemoveChild(instanceName string) error {
	inst, err := m.Child(instanceName)
	if err != nil {
		return err
	}
	if blk := m.blockReferencing(inst.Module); blk != nil {
		return rtlerr.Hierarchy(m.name, inst.Module.name, "ports are still used by a procedural block")
	}
	m.dropInstance(inst)
	inst.Module.parent = nil

	var conns []*Connection
	for _, c := range m.conns {
		if !touches(c.Dst, inst.Module) && !touches(c.Src, inst.Module) {
			conns = append(conns, c)
		}
	}
	m.conns = conns

	var assigns []*ContinuousAssign
	for _, a := range m.assigns {
		if !touches(a.Right, inst.Module) {
			assigns = append(assigns, a)
		}
	}
	m.assigns = assigns

	var iconns []*InterfaceConnection
	for _, c := range m.iconns {
		if c.Port.owner != inst.Module && c.Peer.instance().owner != inst.Module {
			iconns = append(iconns, c)
		}
	}
	m.iconns = iconns

	for s := range m.open {
		if ownerModule(s) == inst.Module {
			delete(m.open, s)
		}
	}
	return nil
}

// ReplaceChild swaps the module behind an instance. Connections are moved to
// the ports of the same name on the replacement, which must match in
// direction and width.
func (m *Module) ReplaceChild(instanceName string, replacement *Module) error {
	inst, err := m.Child(instanceName)
	if err != nil {
		return err
	}
	if replacement == nil || replacement == m {
		return rtlerr.Hierarchy(m.name, instanceName, "invalid replacement module")
	}
	if replacement.parent != nil {
		return rtlerr.Hierarchy(m.name, replacement.name,
			"already instantiated as "+replacement.parent.Parent.name+"."+replacement.parent.Name)
	}
	if blk := m.blockReferencing(inst.Module); blk != nil {
		return rtlerr.Hierarchy(m.name, inst.Module.name, "ports are still used by a procedural block")
	}
	old := inst.Module

	mapping := map[*expr.Signal]*expr.Signal{}
	for _, p := range old.Ports() {
		np, err := replacement.Signal(p.Name())
		if err != nil {
			return err
		}
		if !np.IsPort() || np.Dir() != p.Dir() {
			return rtlerr.DirectionConflict(replacement.name, p.Name(), "direction differs from the replaced module")
		}
		if np.Width() != p.Width() {
			return rtlerr.WidthMismatch(replacement.name+"."+p.Name(), p.Width(), np.Width())
		}
		mapping[p] = np
	}
	ifaceMap := map[*InterfaceInstance]*InterfaceInstance{}
	for _, ii := range old.ifaces {
		if !ii.isPort {
			continue
		}
		ni, err := replacement.InterfaceNamed(ii.name)
		if err != nil {
			return err
		}
		if ni.def != ii.def || ni.modport != ii.modport || !ni.isPort {
			return rtlerr.InterfaceMismatch(ii.TypeName(), ni.TypeName())
		}
		ifaceMap[ii] = ni
	}

	swap := func(s *expr.Signal) *expr.Signal { return mapping[s] }
	for _, c := range m.conns {
		c.Dst = expr.Replace(c.Dst, swap)
		c.Src = expr.Replace(c.Src, swap)
		c.value = expr.Replace(c.value, swap)
	}
	for _, a := range m.assigns {
		a.Right = expr.Replace(a.Right, swap)
		a.value = expr.Replace(a.value, swap)
	}
	for _, c := range m.iconns {
		if ni, ok := ifaceMap[c.Port]; ok {
			c.Port = ni
		}
		if pi, ok := c.Peer.(*InterfaceInstance); ok {
			if ni, ok := ifaceMap[pi]; ok {
				c.Peer = ni
			}
		}
	}
	for s := range m.open {
		if ns, ok := mapping[s]; ok {
			delete(m.open, s)
			m.open[ns] = true
		}
	}

	old.parent = nil
	inst.Module = replacement
	replacement.parent = inst
	return nil
}

func (m *Module) dropInstance(inst *Instance) {
	var kept []*Instance
	for _, c := range m.children {
		if c != inst {
			kept = append(kept, c)
		}
	}
	m.children = kept
	delete(m.names, inst.Name)
}

func (m *Module) blockReferencing(child *Module) *stmt.Block {
	for _, blk := range m.blocks {
		for _, s := range blk.Sensitivity() {
			if ownerModule(s) == child {
				return blk
			}
		}
		for _, s := range blk.WrittenSignals() {
			if ownerModule(s) == child {
				return blk
			}
		}
	}
	return nil
}

func touches(e expr.Expr, child *Module) bool {
	for _, s := range expr.Signals(e) {
		if ownerModule(s) == child {
			return true
		}
	}
	return false
}
