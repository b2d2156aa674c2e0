package module

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/iface"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

// Policy controls which incomplete connections elaboration tolerates.
type Policy struct {
	// AllowOpenOutputs leaves child output ports without a sink unconnected.
	AllowOpenOutputs bool `json:"allowOpenOutputs"`
	// AllowUndrivenOutputs accepts module outputs with undriven bits.
	AllowUndrivenOutputs bool `json:"allowUndrivenOutputs"`
}

// DefaultPolicy allows open child outputs and rejects undriven outputs.
func DefaultPolicy() Policy {
	return Policy{AllowOpenOutputs: true}
}

// Design is the elaborated, read-only view of a hierarchy.
type Design struct {
	Top        *Unit
	Units      []*Unit // distinct definitions, deepest instance first
	Interfaces []*iface.Definition
	Policy     Policy

	byModule map[*Module]*Unit
	all      []*Unit
}

// UnitOf returns the emitted unit that carries m's definition.
func (d *Design) UnitOf(m *Module) *Unit {
	u := d.byModule[m]
	if u == nil {
		return nil
	}
	return u.Canonical()
}

// AllUnits lists one unit per module in the hierarchy, duplicates included,
// children before parents.
func (d *Design) AllUnits() []*Unit {
	return append([]*Unit(nil), d.all...)
}

// Unit is one elaborated module.
type Unit struct {
	Module         *Module
	Name           string
	Hash           uint64
	Depth          int
	Nets           []Net
	AutoInterfaces []AutoInterface
	Assigns        []ResolvedAssign
	Instances      []*ResolvedInstance

	canonical *Unit
	names     map[*expr.Signal]string
}

// Canonical is the unit emitted for this definition. Structurally equal
// modules of the same name share one.
func (u *Unit) Canonical() *Unit {
	if u.canonical != nil {
		return u.canonical
	}
	return u
}

func (u *Unit) IsDuplicate() bool { return u.canonical != nil }

// Namer maps signals to the names they have inside this unit: local
// signals by reference, child ports by their auto net.
func (u *Unit) Namer() expr.Namer {
	return func(s *expr.Signal) string {
		if n, ok := u.names[s]; ok {
			return n
		}
		if owner := ownerModule(s); owner != nil && owner != u.Module {
			if inst := u.Module.instanceOf(owner); inst != nil {
				return inst.Name + "_" + s.Name()
			}
		}
		return s.Ref()
	}
}

// Net is a wire declared for a child port used inside the parent.
type Net struct {
	Name     string
	Width    int
	Signed   bool
	Instance string
	Port     string
}

// AutoInterface is a local interface instance created to join two children.
type AutoInterface struct {
	Name       string
	Definition *iface.Definition
}

// ResolvedAssign is a continuous assignment with its sized right-hand side.
type ResolvedAssign struct {
	Left  expr.Expr
	Right expr.Expr
}

// ResolvedInstance is a child instantiation with its port map.
type ResolvedInstance struct {
	Name     string
	Unit     *Unit
	Comment  string
	Params   []ParamBinding
	Bindings []PortBinding
}

// ModuleName is the emitted name of the instantiated definition.
func (ri *ResolvedInstance) ModuleName() string { return ri.Unit.Canonical().Name }

// ParamBinding is one parameter override of an instantiation.
type ParamBinding struct {
	Param string
	Text  string
}

// PortBinding is one entry of a named port map.
type PortBinding struct {
	Port      string
	Text      string
	Open      bool
	Interface bool
}

// Elaborate validates the hierarchy under top and resolves every binding.
func Elaborate(top *Module, p Policy) (*Design, error) {
	if top == nil {
		return nil, errors.New("elaborate: no top module")
	}
	e := &elaborator{
		policy:   p,
		units:    map[*Module]*Unit{},
		variants: map[string][]*Unit{},
		emitted:  map[string]bool{},
		defNames: map[string]*iface.Definition{},
	}
	if err := e.visit(top, 0); err != nil {
		return nil, err
	}

	d := &Design{
		Top:        e.units[top],
		Interfaces: e.defs,
		Policy:     p,
		byModule:   e.units,
		all:        e.order,
	}
	for _, u := range e.order {
		if !u.IsDuplicate() {
			d.Units = append(d.Units, u)
		}
	}
	sort.SliceStable(d.Units, func(i, j int) bool { return d.Units[i].Depth > d.Units[j].Depth })
	return d, nil
}

type elaborator struct {
	policy   Policy
	units    map[*Module]*Unit
	order    []*Unit
	variants map[string][]*Unit
	emitted  map[string]bool
	defs     []*iface.Definition
	defNames map[string]*iface.Definition
}

func (e *elaborator) visit(m *Module, depth int) error {
	for _, c := range m.children {
		if err := e.visit(c.Module, depth+1); err != nil {
			return err
		}
	}
	for _, ii := range m.ifaces {
		if err := e.addDefinition(ii.def); err != nil {
			return err
		}
	}
	r := newResolver(m, e.policy, e.units)
	u, err := r.resolve()
	if err != nil {
		return err
	}
	u.Depth = depth
	e.uniquify(u)
	e.units[m] = u
	e.order = append(e.order, u)
	return nil
}

func (e *elaborator) addDefinition(d *iface.Definition) error {
	if prev, ok := e.defNames[d.Name()]; ok {
		if prev != d {
			return rtlerr.DuplicateName("design", d.Name())
		}
		return nil
	}
	e.defNames[d.Name()] = d
	e.defs = append(e.defs, d)
	return nil
}

// uniquify folds u into an earlier variant with the same name and hash, or
// gives it a fresh name_unq<N> when the name is already taken.
func (e *elaborator) uniquify(u *Unit) {
	base := u.Module.name
	for _, v := range e.variants[base] {
		if v.Hash == u.Hash {
			u.canonical = v
			u.Name = v.Name
			if u.Depth > v.Depth {
				v.Depth = u.Depth
			}
			return
		}
	}
	if len(e.variants[base]) > 0 || e.emitted[base] {
		n := len(e.variants[base]) - 1
		if n < 0 {
			n = 0
		}
		for e.emitted[base+"_unq"+strconv.Itoa(n)] {
			n++
		}
		u.Name = base + "_unq" + strconv.Itoa(n)
	}
	e.emitted[u.Name] = true
	e.variants[base] = append(e.variants[base], u)
}

type resolver struct {
	m      *Module
	policy Policy
	units  map[*Module]*Unit
	u      *Unit

	taken   map[string]bool
	reads   map[*expr.Signal]int
	direct  map[*Connection]bool
	boundIn map[*expr.Signal]*Connection
	outTo   map[*expr.Signal]*expr.Signal
	autos   map[*InterfaceConnection]string
}

func newResolver(m *Module, p Policy, units map[*Module]*Unit) *resolver {
	r := &resolver{
		m:       m,
		policy:  p,
		units:   units,
		u:       &Unit{Module: m, Name: m.name, names: map[*expr.Signal]string{}},
		taken:   map[string]bool{},
		reads:   map[*expr.Signal]int{},
		direct:  map[*Connection]bool{},
		boundIn: map[*expr.Signal]*Connection{},
		outTo:   map[*expr.Signal]*expr.Signal{},
		autos:   map[*InterfaceConnection]string{},
	}
	for n := range m.names {
		r.taken[n] = true
	}
	return r
}

func (r *resolver) resolve() (*Unit, error) {
	if err := r.checkParams(); err != nil {
		return nil, err
	}
	if err := r.refit(); err != nil {
		return nil, err
	}
	if err := r.checkScope(); err != nil {
		return nil, err
	}
	r.countReads()
	r.planPorts()
	if err := r.checkDrivers(); err != nil {
		return nil, err
	}
	if err := r.bindInstances(); err != nil {
		return nil, err
	}
	r.collectAssigns()
	r.u.Hash = r.fingerprint()
	return r.u, nil
}

func (r *resolver) checkScope() error {
	check := func(e expr.Expr) error {
		for _, s := range expr.Signals(e) {
			owner := ownerModule(s)
			if owner == r.m {
				continue
			}
			if owner == nil || r.m.instanceOf(owner) == nil {
				return rtlerr.Scope(r.m.name, s.FullName(), s.OwnerName())
			}
		}
		for _, p := range paramsIn(e) {
			if p.Owner() != expr.Scope(r.m) {
				return rtlerr.Scope(r.m.name, p.OwnerName()+"."+p.Name(), p.OwnerName())
			}
		}
		return nil
	}
	for _, c := range r.m.conns {
		if err := check(c.Dst); err != nil {
			return err
		}
		if err := check(c.value); err != nil {
			return err
		}
	}
	for _, a := range r.m.assigns {
		if err := check(a.Left); err != nil {
			return err
		}
		if err := check(a.value); err != nil {
			return err
		}
	}
	for _, blk := range r.m.blocks {
		for _, t := range blk.Triggers {
			if err := check(t.Signal); err != nil {
				return err
			}
		}
		for _, s := range append(blk.Sensitivity(), blk.WrittenSignals()...) {
			if err := check(s); err != nil {
				return err
			}
		}
	}
	for _, c := range r.m.iconns {
		for _, ii := range []*InterfaceInstance{c.Port, c.Peer.instance()} {
			if ii.owner != r.m && r.m.instanceOf(ii.owner) == nil {
				return rtlerr.Scope(r.m.name, ii.owner.name+"."+ii.name, ii.owner.name)
			}
		}
	}
	return nil
}

// countReads records how often each child port appears on a reading side.
func (r *resolver) countReads() {
	count := func(e expr.Expr) {
		for _, s := range expr.Signals(e) {
			if ownerModule(s) != r.m {
				r.reads[s]++
			}
		}
	}
	for _, c := range r.m.conns {
		count(c.value)
	}
	for _, a := range r.m.assigns {
		count(a.value)
	}
	for _, blk := range r.m.blocks {
		for _, t := range blk.Triggers {
			count(t.Signal)
		}
		for _, s := range blk.Sensitivity() {
			count(s)
		}
	}
}

// planPorts decides for every child signal port whether it binds directly
// or through an auto net.
func (r *resolver) planPorts() {
	for _, inst := range r.m.children {
		for _, d := range inst.Module.PortList() {
			if d.Interface != nil {
				continue
			}
			p := d.Signal
			if p.Dir() == expr.DirOutput {
				uses := r.sinksOf(p)
				if len(uses) == 1 && r.reads[p] == 1 {
					if dst, ok := uses[0].Dst.(*expr.Signal); ok && ownerModule(dst) == r.m {
						r.direct[uses[0]] = true
						r.outTo[p] = dst
						continue
					}
				}
				if r.reads[p] > 0 {
					r.addNet(inst, p)
				}
				continue
			}
			drivers := r.driversOf(p)
			written := r.blockWrites(p)
			if len(drivers) == 1 && !written && r.reads[p] == 0 {
				r.boundIn[p] = drivers[0]
				continue
			}
			if len(drivers) > 0 || written || r.reads[p] > 0 {
				r.addNet(inst, p)
			}
		}
	}
}

func (r *resolver) sinksOf(p *expr.Signal) []*Connection {
	var out []*Connection
	for _, c := range r.m.conns {
		if s, ok := c.Src.(*expr.Signal); ok && s == p {
			out = append(out, c)
		}
	}
	return out
}

func (r *resolver) driversOf(p *expr.Signal) []*Connection {
	var out []*Connection
	for _, c := range r.m.conns {
		if s, ok := c.Dst.(*expr.Signal); ok && s == p {
			out = append(out, c)
		}
	}
	return out
}

func (r *resolver) blockWrites(p *expr.Signal) bool {
	for _, blk := range r.m.blocks {
		for _, s := range blk.WrittenSignals() {
			if s == p {
				return true
			}
		}
	}
	return false
}

func (r *resolver) addNet(inst *Instance, p *expr.Signal) {
	name := r.fresh(inst.Name + "_" + p.Name())
	r.u.Nets = append(r.u.Nets, Net{
		Name:     name,
		Width:    p.Width(),
		Signed:   p.Signed(),
		Instance: inst.Name,
		Port:     p.Name(),
	})
	r.u.names[p] = name
}

func (r *resolver) fresh(base string) string {
	name := base
	for i := 0; r.taken[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	r.taken[name] = true
	return name
}

func (r *resolver) label(s *expr.Signal) string {
	if owner := ownerModule(s); owner != r.m {
		if inst := r.m.instanceOf(owner); inst != nil {
			return inst.Name + "." + s.Name()
		}
	}
	return s.Ref()
}

type driverCount struct {
	r    *resolver
	bits map[*expr.Signal][]int
}

func (dc *driverCount) add(s *expr.Signal, hi, lo int) error {
	c := dc.bits[s]
	if c == nil {
		c = make([]int, s.Width())
		dc.bits[s] = c
	}
	for b := lo; b <= hi; b++ {
		c[b]++
		if c[b] > 1 {
			return rtlerr.MultipleDriver(dc.r.m.name, dc.r.label(s), b)
		}
	}
	return nil
}

func (dc *driverCount) addExpr(dst expr.Expr) error {
	ts, err := expr.Targets(dst)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := dc.add(t.Signal, t.Hi, t.Lo); err != nil {
			return err
		}
	}
	return nil
}

func (dc *driverCount) undriven(s *expr.Signal) bool {
	c := dc.bits[s]
	if c == nil {
		return true
	}
	for _, n := range c {
		if n == 0 {
			return true
		}
	}
	return false
}

// checkDrivers counts drivers per bit. Each continuous assignment, each
// procedural block and each child output is one driver.
func (r *resolver) checkDrivers() error {
	dc := &driverCount{r: r, bits: map[*expr.Signal][]int{}}
	for _, c := range r.m.conns {
		if err := dc.addExpr(c.Dst); err != nil {
			return err
		}
	}
	for _, a := range r.m.assigns {
		if err := dc.addExpr(a.Left); err != nil {
			return err
		}
	}
	for _, blk := range r.m.blocks {
		seen := map[*expr.Signal]map[int]bool{}
		for _, t := range blk.Writes() {
			if seen[t.Signal] == nil {
				seen[t.Signal] = map[int]bool{}
			}
			for b := t.Lo; b <= t.Hi; b++ {
				if seen[t.Signal][b] {
					continue
				}
				seen[t.Signal][b] = true
				if err := dc.add(t.Signal, b, b); err != nil {
					return err
				}
			}
		}
	}
	for _, c := range r.m.iconns {
		if err := r.countInterfaceDrivers(dc, c.Port, c.Peer); err != nil {
			return err
		}
	}

	for _, s := range r.m.signals {
		if s.Dir() == expr.DirOutput && dc.undriven(s) && !r.policy.AllowUndrivenOutputs {
			return rtlerr.UnconnectedPort(r.m.name, s.Ref())
		}
	}
	for _, ii := range r.m.ifaces {
		if !ii.isPort {
			continue
		}
		for _, s := range ii.members {
			if s.Dir() == expr.DirOutput && dc.undriven(s) && !r.policy.AllowUndrivenOutputs {
				return rtlerr.UnconnectedPort(r.m.name, s.Ref())
			}
		}
	}
	for _, inst := range r.m.children {
		for _, p := range inst.Module.Ports() {
			switch p.Dir() {
			case expr.DirOutput:
				if _, bound := r.outTo[p]; bound {
					continue
				}
				if _, hasNet := r.u.names[p]; !hasNet && !r.policy.AllowOpenOutputs {
					return rtlerr.UnconnectedPort(r.m.name, inst.Name+"."+p.Name())
				}
			case expr.DirInout:
				if dc.undriven(p) && r.reads[p] == 0 && !r.m.open[p] {
					return rtlerr.UnconnectedPort(r.m.name, inst.Name+"."+p.Name())
				}
			default:
				if dc.undriven(p) && !r.m.open[p] {
					return rtlerr.UnconnectedPort(r.m.name, inst.Name+"."+p.Name())
				}
			}
		}
	}
	return nil
}

// countInterfaceDrivers counts the outputs of a child's modport as drivers
// of the peer's members when the peer lives in this module.
func (r *resolver) countInterfaceDrivers(dc *driverCount, port *InterfaceInstance, peer InterfaceEnd) error {
	pi := peer.instance()
	if port.modport == nil || pi.owner != r.m {
		return nil
	}
	for _, e := range port.modport.Entries() {
		if e.Dir != expr.DirOutput {
			continue
		}
		s, ok := pi.byName[e.Member]
		if !ok {
			continue
		}
		if err := dc.add(s, s.Width()-1, 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) bindInstances() error {
	ibind := map[*InterfaceInstance][]*InterfaceConnection{}
	for _, c := range r.m.iconns {
		ibind[c.Port] = append(ibind[c.Port], c)
		if peer := c.Peer.instance(); peer.owner != r.m {
			ibind[peer] = append(ibind[peer], c)
		}
	}
	namer := r.u.Namer()

	for _, inst := range r.m.children {
		child := r.units[inst.Module]
		ri := &ResolvedInstance{Name: inst.Name, Unit: child, Comment: inst.Comment, Params: paramOverrides(inst.Module)}
		for _, d := range inst.Module.PortList() {
			if ii := d.Interface; ii != nil {
				conns := ibind[ii]
				switch {
				case len(conns) == 0:
					return rtlerr.UnconnectedPort(r.m.name, inst.Name+"."+ii.name)
				case len(conns) > 1:
					return rtlerr.MultipleDriver(r.m.name, inst.Name+"."+ii.name, 0)
				}
				ri.Bindings = append(ri.Bindings, PortBinding{
					Port:      ii.name,
					Text:      r.interfaceText(inst, ii, conns[0]),
					Interface: true,
				})
				continue
			}
			p := d.Signal
			b := PortBinding{Port: p.Name()}
			if n, ok := r.u.names[p]; ok {
				b.Text = n
			} else if dst, ok := r.outTo[p]; ok {
				b.Text = namer(dst)
			} else if c, ok := r.boundIn[p]; ok {
				b.Text = expr.Format(c.value, namer)
			} else {
				b.Open = true
			}
			ri.Bindings = append(ri.Bindings, b)
		}
		r.u.Instances = append(r.u.Instances, ri)
	}
	return nil
}

func (r *resolver) interfaceText(inst *Instance, port *InterfaceInstance, c *InterfaceConnection) string {
	var other InterfaceEnd = c.Peer
	if c.Peer.instance() == port {
		other = c.Port
	}
	oi := other.instance()
	withModport := func(name string) string {
		if port.modport != nil {
			return name + "." + port.modport.Name()
		}
		return name
	}
	if oi.owner != r.m {
		name, ok := r.autos[c]
		if !ok {
			name = r.fresh(inst.Name + "_" + port.name)
			r.autos[c] = name
			r.u.AutoInterfaces = append(r.u.AutoInterfaces, AutoInterface{Name: name, Definition: port.def})
		}
		return withModport(name)
	}
	if v, ok := other.(*View); ok {
		return v.String()
	}
	if oi.isPort {
		return oi.name
	}
	return withModport(oi.name)
}

// collectAssigns merges connections and explicit assigns in recording
// order, skipping connections already carried by a port binding.
func (r *resolver) collectAssigns() {
	type seqAssign struct {
		seq int
		a   ResolvedAssign
	}
	var all []seqAssign
	for _, c := range r.m.conns {
		if r.direct[c] {
			continue
		}
		if s, ok := c.Dst.(*expr.Signal); ok && r.boundIn[s] == c {
			continue
		}
		all = append(all, seqAssign{c.seq, ResolvedAssign{Left: c.Dst, Right: c.value}})
	}
	for _, a := range r.m.assigns {
		all = append(all, seqAssign{a.seq, ResolvedAssign{Left: a.Left, Right: a.value}})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	for _, sa := range all {
		r.u.Assigns = append(r.u.Assigns, sa.a)
	}
}

// fingerprint hashes everything that ends up in the emitted body, so equal
// hashes mean equal text under the same name.
func (r *resolver) fingerprint() uint64 {
	h := xxhash.New()
	namer := r.u.Namer()
	w := func(args ...interface{}) { fmt.Fprintln(h, args...) }

	w("comment", r.m.comment)
	for _, p := range r.m.params {
		w("param", p.Name(), p.Width(), p.Default())
	}
	for _, d := range r.m.order {
		if ii := d.Interface; ii != nil {
			w("iface", ii.name, ii.TypeName(), ii.isPort)
			writeDefinition(h, ii.def)
			continue
		}
		s := d.Signal
		w("signal", s.Name(), s.Width(), s.Signed(), s.Kind(), s.Dir())
		if p := s.WidthParam(); p != nil {
			w("sized", p.Name())
		}
	}
	for _, n := range r.u.Nets {
		w("net", n.Name, n.Width, n.Signed)
	}
	for _, a := range r.u.AutoInterfaces {
		w("auto", a.Name, a.Definition.Name())
	}
	for _, a := range r.u.Assigns {
		w("assign", expr.Format(a.Left, namer), expr.Format(a.Right, namer))
	}
	for _, blk := range r.m.blocks {
		w("block", blk.Kind, blk.Label, blk.Comment)
		for _, t := range blk.Triggers {
			w("trigger", t.Edge, namer(t.Signal))
		}
		dumpStmts(h, blk.Stmts, namer)
	}
	for _, ri := range r.u.Instances {
		w("instance", ri.Name, ri.ModuleName(), ri.Comment)
		for _, p := range ri.Params {
			w("override", p.Param, p.Text)
		}
		for _, b := range ri.Bindings {
			w("bind", b.Port, b.Text, b.Open)
		}
	}
	return h.Sum64()
}

func writeDefinition(w io.Writer, d *iface.Definition) {
	fmt.Fprintln(w, "def", d.Name())
	for _, m := range d.Members() {
		fmt.Fprintln(w, "member", m.Name, m.Width, m.Signed, m.Clock)
	}
	for _, mp := range d.Modports() {
		fmt.Fprintln(w, "modport", mp.Name())
		for _, e := range mp.Entries() {
			fmt.Fprintln(w, "entry", e.Member, e.Dir)
		}
	}
}

func dumpStmts(w io.Writer, stmts []stmt.Stmt, namer expr.Namer) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *stmt.Assign:
			fmt.Fprintln(w, "=", expr.Format(n.Left, namer), expr.Format(n.Value(), namer))
		case *stmt.If:
			fmt.Fprintln(w, "if", expr.Format(n.Cond, namer))
			dumpStmts(w, n.Then, namer)
			if n.Else != nil {
				fmt.Fprintln(w, "else")
				dumpStmts(w, n.Else, namer)
			}
			fmt.Fprintln(w, "endif")
		case *stmt.Switch:
			fmt.Fprintln(w, "case", expr.Format(n.Target, namer))
			for _, c := range n.Cases {
				fmt.Fprintln(w, "item", c.Value.String())
				dumpStmts(w, c.Body, namer)
			}
			if n.HasDefault {
				fmt.Fprintln(w, "default")
				dumpStmts(w, n.Default, namer)
			}
			fmt.Fprintln(w, "endcase")
		}
	}
}
