package facts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

// Tables is the relational fact model of an elaborated design.
// Each slice is a relation (table) with flat rows. Module columns carry
// emitted module names, so uniquified definitions are distinct.
type Tables struct {
	Modules            []ModuleRow            `json:"modules"`
	Ports              []PortRow              `json:"ports"`
	Signals            []SignalRow            `json:"signals"`
	Instances          []InstanceRow          `json:"instances"`
	Bindings           []BindingRow           `json:"bindings"`
	Assigns            []AssignRow            `json:"assigns"`
	Blocks             []BlockRow             `json:"blocks"`
	BlockWrites        []BlockWriteRow        `json:"block_writes"`
	Interfaces         []InterfaceRow         `json:"interfaces"`
	Modports           []ModportRow           `json:"modports"`
	InterfaceInstances []InterfaceInstanceRow `json:"interface_instances"`
}

type ModuleRow struct {
	Name    string `json:"name"`
	Hash    string `json:"hash"`
	Depth   int    `json:"depth"`
	IsTop   bool   `json:"is_top"`
	Comment string `json:"comment"`
}

type PortRow struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
	Width     int    `json:"width"`
	Signed    bool   `json:"signed"`
	Interface string `json:"interface"`
}

// SignalRow counts how a port or variable is used inside its module.
// Reads and Writes include wires to child ports; WireReads is the share of
// Reads that are wires. Trigger lists are counted in Triggers only.
type SignalRow struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Width     int    `json:"width"`
	Signed    bool   `json:"signed"`
	IsPort    bool   `json:"is_port"`
	Reads     int    `json:"reads"`
	WireReads int    `json:"wire_reads"`
	Writes    int    `json:"writes"`
	Triggers  int    `json:"triggers"`
}

type InstanceRow struct {
	Module  string `json:"module"`
	Name    string `json:"name"`
	Target  string `json:"target"`
	Comment string `json:"comment"`
}

type BindingRow struct {
	Module    string `json:"module"`
	Instance  string `json:"instance"`
	Port      string `json:"port"`
	Value     string `json:"value"`
	Open      bool   `json:"open"`
	Interface bool   `json:"interface"`
}

type AssignRow struct {
	Module string `json:"module"`
	Left   string `json:"left"`
	Right  string `json:"right"`
}

type BlockRow struct {
	Module   string `json:"module"`
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Triggers string `json:"triggers"`
}

// BlockWriteRow is a signal written by a block. Partial is set when some
// path through a combinational block leaves the signal unassigned.
type BlockWriteRow struct {
	Module  string `json:"module"`
	Block   int    `json:"block"`
	Signal  string `json:"signal"`
	Partial bool   `json:"partial"`
}

type InterfaceRow struct {
	Name   string `json:"name"`
	Member string `json:"member"`
	Width  int    `json:"width"`
	Signed bool   `json:"signed"`
	Clock  bool   `json:"clock"`
}

type ModportRow struct {
	Interface string `json:"interface"`
	Modport   string `json:"modport"`
	Member    string `json:"member"`
	Direction string `json:"direction"`
}

type InterfaceInstanceRow struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Interface string `json:"interface"`
	Modport   string `json:"modport"`
	IsPort    bool   `json:"is_port"`
}

// BuildTables flattens an elaborated design into relations. Only emitted
// units are listed; duplicates share their canonical unit's rows.
func BuildTables(d *module.Design) Tables {
	tables := emptyTables()

	for _, def := range d.Interfaces {
		for _, mem := range def.Members() {
			tables.Interfaces = append(tables.Interfaces, InterfaceRow{
				Name:   def.Name(),
				Member: mem.Name,
				Width:  mem.Width,
				Signed: mem.Signed,
				Clock:  mem.Clock,
			})
		}
		for _, mp := range def.Modports() {
			for _, e := range mp.Entries() {
				tables.Modports = append(tables.Modports, ModportRow{
					Interface: def.Name(),
					Modport:   mp.Name(),
					Member:    e.Member,
					Direction: e.Dir.String(),
				})
			}
		}
	}

	for _, u := range d.Units {
		addUnit(&tables, u, u == d.Top.Canonical())
	}

	sort.Slice(tables.Modules, func(i, j int) bool { return tables.Modules[i].Name < tables.Modules[j].Name })

	return tables
}

func addUnit(tables *Tables, u *module.Unit, isTop bool) {
	m := u.Module
	namer := u.Namer()

	tables.Modules = append(tables.Modules, ModuleRow{
		Name:    u.Name,
		Hash:    fmt.Sprintf("%016x", u.Hash),
		Depth:   u.Depth,
		IsTop:   isTop,
		Comment: m.Comment(),
	})

	for _, decl := range m.PortList() {
		if ii := decl.Interface; ii != nil {
			tables.Ports = append(tables.Ports, PortRow{
				Module:    u.Name,
				Name:      ii.Name(),
				Direction: "interface",
				Kind:      "interface",
				Interface: ii.TypeName(),
			})
			continue
		}
		s := decl.Signal
		tables.Ports = append(tables.Ports, PortRow{
			Module:    u.Name,
			Name:      s.Name(),
			Direction: s.Dir().String(),
			Kind:      s.Kind().String(),
			Width:     s.Width(),
			Signed:    s.Signed(),
		})
	}

	use := countUses(m)
	for _, s := range m.Signals() {
		c := use[s]
		tables.Signals = append(tables.Signals, SignalRow{
			Module:    u.Name,
			Name:      s.Name(),
			Kind:      s.Kind().String(),
			Width:     s.Width(),
			Signed:    s.Signed(),
			IsPort:    s.IsPort(),
			Reads:     c.reads,
			WireReads: c.wireReads,
			Writes:    c.writes,
			Triggers:  c.triggers,
		})
	}

	for _, ii := range m.Interfaces() {
		row := InterfaceInstanceRow{
			Module:    u.Name,
			Name:      ii.Name(),
			Interface: ii.Definition().Name(),
			IsPort:    ii.IsPort(),
		}
		if mp := ii.Modport(); mp != nil {
			row.Modport = mp.Name()
		}
		tables.InterfaceInstances = append(tables.InterfaceInstances, row)
	}

	for _, inst := range u.Instances {
		tables.Instances = append(tables.Instances, InstanceRow{
			Module:  u.Name,
			Name:    inst.Name,
			Target:  inst.ModuleName(),
			Comment: inst.Comment,
		})
		for _, b := range inst.Bindings {
			tables.Bindings = append(tables.Bindings, BindingRow{
				Module:    u.Name,
				Instance:  inst.Name,
				Port:      b.Port,
				Value:     b.Text,
				Open:      b.Open,
				Interface: b.Interface,
			})
		}
	}

	for _, a := range u.Assigns {
		tables.Assigns = append(tables.Assigns, AssignRow{
			Module: u.Name,
			Left:   expr.Format(a.Left, namer),
			Right:  expr.Format(a.Right, namer),
		})
	}

	for i, blk := range m.Blocks() {
		var triggers []string
		for _, t := range blk.Triggers {
			triggers = append(triggers, t.Edge.String()+" "+namer(t.Signal))
		}
		tables.Blocks = append(tables.Blocks, BlockRow{
			Module:   u.Name,
			Index:    i,
			Kind:     blk.Kind.String(),
			Label:    blk.Label,
			Triggers: strings.Join(triggers, ", "),
		})

		partial := map[*expr.Signal]bool{}
		if blk.Kind == stmt.Combinational {
			for _, s := range blk.PartiallyAssigned() {
				partial[s] = true
			}
		}
		for _, s := range blk.WrittenSignals() {
			tables.BlockWrites = append(tables.BlockWrites, BlockWriteRow{
				Module:  u.Name,
				Block:   i,
				Signal:  namer(s),
				Partial: partial[s],
			})
		}
	}
}

type usage struct {
	reads, wireReads, writes, triggers int
}

// countUses tallies reads and writes of m's own signals across
// connections, assigns and blocks.
func countUses(m *module.Module) map[*expr.Signal]*usage {
	use := map[*expr.Signal]*usage{}
	for _, s := range m.Signals() {
		use[s] = &usage{}
	}
	read := func(e expr.Expr) {
		for _, s := range expr.Signals(e) {
			if c, ok := use[s]; ok {
				c.reads++
			}
		}
	}
	write := func(e expr.Expr) {
		targets, err := expr.Targets(e)
		if err != nil {
			read(e)
			return
		}
		for _, t := range targets {
			if c, ok := use[t.Signal]; ok {
				c.writes++
			}
		}
	}

	for _, c := range m.Connections() {
		write(c.Dst)
		read(c.Src)
		for _, s := range expr.Signals(c.Src) {
			if u, ok := use[s]; ok {
				u.wireReads++
			}
		}
	}
	for _, a := range m.Assigns() {
		write(a.Left)
		read(a.Right)
	}
	for _, blk := range m.Blocks() {
		for _, t := range blk.Triggers {
			if c, ok := use[t.Signal]; ok {
				c.triggers++
			}
		}
		stmt.Walk(blk.Stmts, func(s stmt.Stmt) {
			switch n := s.(type) {
			case *stmt.Assign:
				write(n.Left)
				read(n.Right)
			case *stmt.If:
				read(n.Cond)
			case *stmt.Switch:
				read(n.Target)
			}
		})
	}
	return use
}
