package module

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/iface"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

func configBus(t *testing.T) *iface.Definition {
	t.Helper()
	b := iface.Define("Config").
		Var("read_data", 8).
		Var("write_data", 8).
		Var("r_en", 1).
		Var("w_en", 1).
		Clock("clk")
	b.Modport("Master").
		Input("clk", "read_data").
		Output("write_data", "r_en", "w_en")
	b.Complement("Slave", "Master")
	def, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return def
}

type busDesign struct {
	top, master, slave *Module
	busTop             *InterfaceInstance
}

func modportDesign(t *testing.T) busDesign {
	t.Helper()
	def := configBus(t)

	master := MustNew("Master")
	mbus, err := master.Interface(def.MustModport("Master"), "bus", true)
	if err != nil {
		t.Fatal(err)
	}
	counter, err := master.Var("counter", 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := master.Wire(mbus.MustMember("write_data"), counter); err != nil {
		t.Fatal(err)
	}
	rEn, wEn := mbus.MustMember("r_en"), mbus.MustMember("w_en")
	phase := expr.Mod(counter, expr.Int(4))
	_, err = master.Sequential(stmt.Posedge, mbus.MustMember("clk"), func(b *stmt.Builder) {
		b.If(expr.Eq(phase, expr.Int(0)), func(b *stmt.Builder) {
			b.Assign(rEn, expr.Int(1))
			b.Assign(wEn, expr.Int(0))
		}).ElseIf(expr.Eq(phase, expr.Int(1)), func(b *stmt.Builder) {
			b.Assign(rEn, expr.Int(0))
			b.Assign(wEn, expr.Int(1))
		}).Else(func(b *stmt.Builder) {
			b.Assign(rEn, expr.Int(0))
			b.Assign(wEn, expr.Int(0))
		})
		b.Assign(counter, expr.Add(counter, expr.Int(1)))
	})
	if err != nil {
		t.Fatal(err)
	}

	slave := MustNew("Slave")
	sbus, err := slave.Interface(def.MustModport("Slave"), "bus", true)
	if err != nil {
		t.Fatal(err)
	}
	value, err := slave.Var("value", 8)
	if err != nil {
		t.Fatal(err)
	}
	_, err = slave.Sequential(stmt.Posedge, sbus.MustMember("clk"), func(b *stmt.Builder) {
		b.If(sbus.MustMember("r_en"), func(b *stmt.Builder) {
			b.Assign(value, sbus.MustMember("write_data"))
		}).ElseIf(sbus.MustMember("w_en"), func(b *stmt.Builder) {
			b.Assign(sbus.MustMember("read_data"), value)
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	top := MustNew("Top")
	if err := top.AddChild("master", master); err != nil {
		t.Fatal(err)
	}
	if err := top.AddChild("slave", slave); err != nil {
		t.Fatal(err)
	}
	clk, err := top.Clock("clk")
	if err != nil {
		t.Fatal(err)
	}
	bus, err := top.Interface(def, "bus_top", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := top.Wire(bus.MustMember("clk"), clk); err != nil {
		t.Fatal(err)
	}
	if err := top.WireInterface(mbus, bus); err != nil {
		t.Fatal(err)
	}
	if err := top.WireInterface(sbus, bus); err != nil {
		t.Fatal(err)
	}
	return busDesign{top: top, master: master, slave: slave, busTop: bus}
}

func TestRegistryErrors(t *testing.T) {
	m := MustNew("mod")
	if _, err := m.Var("a", 4); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		err    error
		target interface{}
	}{
		{"duplicate", func() error { _, err := m.Input("a", 1); return err }(), new(*rtlerr.DuplicateNameError)},
		{"keyword", func() error { _, err := m.Var("module", 1); return err }(), new(*rtlerr.InvalidNameError)},
		{"bad identifier", func() error { _, err := m.Var("1x", 1); return err }(), new(*rtlerr.InvalidNameError)},
		{"zero width", func() error { _, err := m.Var("z", 0); return err }(), new(*rtlerr.WidthMismatchError)},
		{"unknown", func() error { _, err := m.Signal("b"); return err }(), new(*rtlerr.UnknownNameError)},
		{"not a port", func() error { _, err := m.PortNamed("a"); return err }(), new(*rtlerr.UnknownNameError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("expected an error")
			}
			if !errors.As(tt.err, tt.target) {
				t.Fatalf("got %T (%v)", errors.Cause(tt.err), tt.err)
			}
		})
	}
	if got := len(m.Signals()); got != 1 {
		t.Fatalf("failed declarations changed the registry: %d signals", got)
	}
}

func TestUnknownNameSuggestion(t *testing.T) {
	m := MustNew("mod")
	if _, err := m.Var("counter", 8); err != nil {
		t.Fatal(err)
	}
	_, err := m.Signal("countr")
	var un *rtlerr.UnknownNameError
	if !errors.As(err, &un) {
		t.Fatalf("got %v", err)
	}
	if un.Suggestion != "counter" {
		t.Fatalf("suggestion = %q, want counter", un.Suggestion)
	}
}

func TestPortsAndDeclarations(t *testing.T) {
	m := MustNew("mod")
	if _, err := m.Input("a", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Var("v", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Output("b", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Clock("clk"); err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, d := range m.PortList() {
		names = append(names, d.Name())
	}
	if got := len(names); got != 3 || names[0] != "a" || names[1] != "b" || names[2] != "clk" {
		t.Fatalf("ports = %v", names)
	}
	if len(m.Vars()) != 1 || len(m.Clocks()) != 1 {
		t.Fatalf("vars = %d clocks = %d", len(m.Vars()), len(m.Clocks()))
	}
}

func TestWireDirections(t *testing.T) {
	parent := MustNew("parent")
	child := MustNew("child")
	cin, err := child.Input("in", 4)
	if err != nil {
		t.Fatal(err)
	}
	cout, err := child.Output("out", 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := parent.AddChild("c", child); err != nil {
		t.Fatal(err)
	}
	pin, err := parent.Input("pin", 4)
	if err != nil {
		t.Fatal(err)
	}
	pout, err := parent.Output("pout", 4)
	if err != nil {
		t.Fatal(err)
	}
	narrow, err := parent.Var("narrow", 2)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("flexible order", func(t *testing.T) {
		if err := parent.Wire(pin, cin); err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(cout, pout); err != nil {
			t.Fatal(err)
		}
		conns := parent.Connections()
		if conns[0].Dst != expr.Expr(cin) || conns[1].Dst != expr.Expr(pout) {
			t.Fatalf("destinations = %v, %v", conns[0].Dst, conns[1].Dst)
		}
	})

	tests := []struct {
		name   string
		a, b   expr.Expr
		target interface{}
	}{
		{"two sources", pin, cout, new(*rtlerr.DirectionConflictError)},
		{"two sinks", pout, cin, new(*rtlerr.DirectionConflictError)},
		{"width", narrow, pin, new(*rtlerr.WidthMismatchError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parent.Wire(tt.a, tt.b)
			if !errors.As(err, tt.target) {
				t.Fatalf("got %v", err)
			}
		})
	}

	t.Run("own input in block", func(t *testing.T) {
		_, err := parent.Combinational(func(b *stmt.Builder) {
			b.Assign(pin, expr.Int(0))
		})
		var dc *rtlerr.DirectionConflictError
		if !errors.As(err, &dc) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("assign to child output", func(t *testing.T) {
		before := len(parent.Connections())
		err := parent.Assign(cout, pin)
		var dc *rtlerr.DirectionConflictError
		if !errors.As(err, &dc) {
			t.Fatalf("got %v", err)
		}
		if len(parent.Connections()) != before {
			t.Fatal("rejected assign was recorded")
		}
	})

	t.Run("assign to child input", func(t *testing.T) {
		if err := parent.Assign(cin, expr.Int(5)); err != nil {
			t.Fatal(err)
		}
		conns := parent.Connections()
		last := conns[len(conns)-1]
		if last.Dst != expr.Expr(cin) {
			t.Fatalf("destination = %v", last.Dst)
		}
		if lit, ok := last.Src.(*expr.Literal); !ok || lit.Value() != 5 {
			t.Fatalf("source = %v", last.Src)
		}
	})

	t.Run("unrelated module", func(t *testing.T) {
		other := MustNew("other")
		v, err := other.Var("v", 4)
		if err != nil {
			t.Fatal(err)
		}
		err = parent.Assign(pout, v)
		var se *rtlerr.ScopeError
		if !errors.As(err, &se) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestAssignKeepsIdentities(t *testing.T) {
	m := MustNew("mod")
	a, err := m.Var("a", 8)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Var("b", 8)
	if err != nil {
		t.Fatal(err)
	}
	sum := expr.Add(a, b)
	if err := m.Assign(a, sum); err != nil {
		t.Fatal(err)
	}
	got := m.Assigns()[0]
	if got.Left != expr.Expr(a) || got.Right != expr.Expr(sum) {
		t.Fatal("assign does not carry the given expressions")
	}
}

func TestHierarchyErrors(t *testing.T) {
	a, b, c := MustNew("A"), MustNew("B"), MustNew("C")
	if err := a.AddChild("b", b); err != nil {
		t.Fatal(err)
	}
	if err := b.AddChild("c", c); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		err    error
		target interface{}
	}{
		{"duplicate instance", a.AddChild("b", MustNew("D")), new(*rtlerr.DuplicateInstanceError)},
		{"self", a.AddChild("me", a), new(*rtlerr.HierarchyError)},
		{"cycle", c.AddChild("top", a), new(*rtlerr.HierarchyError)},
		{"second parent", a.AddChild("c2", c), new(*rtlerr.HierarchyError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.As(tt.err, tt.target) {
				t.Fatalf("got %v", tt.err)
			}
		})
	}
}

func TestRemoveAndReplaceChild(t *testing.T) {
	parent := MustNew("parent")
	pin, err := parent.Input("pin", 4)
	if err != nil {
		t.Fatal(err)
	}
	pout, err := parent.Output("pout", 4)
	if err != nil {
		t.Fatal(err)
	}

	mk := func(name string) *Module {
		m := MustNew(name)
		in, err := m.Input("in", 4)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.Output("out", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(out, in); err != nil {
			t.Fatal(err)
		}
		return m
	}
	old := mk("stage")
	if err := parent.AddChild("u", old); err != nil {
		t.Fatal(err)
	}
	if err := parent.Wire(old.MustSignal("in"), pin); err != nil {
		t.Fatal(err)
	}
	if err := parent.Wire(pout, old.MustSignal("out")); err != nil {
		t.Fatal(err)
	}

	repl := mk("stage2")
	if err := parent.ReplaceChild("u", repl); err != nil {
		t.Fatal(err)
	}
	if old.Parent() != nil || repl.Parent() == nil {
		t.Fatal("parent links not moved")
	}
	d, err := Elaborate(parent, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	ri := d.Top.Instances[0]
	if ri.ModuleName() != "stage2" || ri.Bindings[0].Text != "pin" || ri.Bindings[1].Text != "pout" {
		t.Fatalf("instance = %s %+v", ri.ModuleName(), ri.Bindings)
	}

	if err := parent.RemoveChild("u"); err != nil {
		t.Fatal(err)
	}
	if len(parent.Connections()) != 0 || len(parent.Children()) != 0 {
		t.Fatal("connections survived RemoveChild")
	}
}

func TestElaborateModportDesign(t *testing.T) {
	bd := modportDesign(t)
	d, err := Elaborate(bd.top, DefaultPolicy())
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	if len(d.Units) != 3 {
		t.Fatalf("units = %d, want 3", len(d.Units))
	}
	if d.Units[2].Name != "Top" || d.Units[0].Depth != 1 {
		t.Fatalf("order = %s %s %s", d.Units[0].Name, d.Units[1].Name, d.Units[2].Name)
	}
	if len(d.Interfaces) != 1 || d.Interfaces[0].Name() != "Config" {
		t.Fatalf("interfaces = %v", d.Interfaces)
	}

	want := map[string]string{"master": "bus_top.Master", "slave": "bus_top.Slave"}
	for _, ri := range d.Top.Instances {
		if len(ri.Bindings) != 1 || !ri.Bindings[0].Interface {
			t.Fatalf("%s bindings = %+v", ri.Name, ri.Bindings)
		}
		if got := ri.Bindings[0].Text; got != want[ri.Name] {
			t.Errorf("%s.bus = %q, want %q", ri.Name, got, want[ri.Name])
		}
	}

	namer := d.Top.Namer()
	if len(d.Top.Assigns) != 1 {
		t.Fatalf("top assigns = %d", len(d.Top.Assigns))
	}
	a := d.Top.Assigns[0]
	if got := expr.Format(a.Left, namer) + " = " + expr.Format(a.Right, namer); got != "bus_top.clk = clk" {
		t.Fatalf("assign = %q", got)
	}
	master := d.UnitOf(bd.master)
	if got := expr.Format(master.Assigns[0].Left, master.Namer()); got != "bus.write_data" {
		t.Fatalf("master assign = %q", got)
	}
}

func TestElaborateDrivers(t *testing.T) {
	t.Run("two assigns", func(t *testing.T) {
		m := MustNew("m")
		v, err := m.Var("v", 4)
		if err != nil {
			t.Fatal(err)
		}
		in, err := m.Input("in", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(v, in); err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(expr.MustSlice(v, 1, 0), expr.Int(0)); err != nil {
			t.Fatal(err)
		}
		_, err = Elaborate(m, DefaultPolicy())
		var md *rtlerr.MultipleDriverError
		if !errors.As(err, &md) || md.Signal != "v" || md.Bit != 0 {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("disjoint slices", func(t *testing.T) {
		m := MustNew("m")
		out, err := m.Output("out", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(expr.MustSlice(out, 3, 2), expr.Int(1)); err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(expr.MustSlice(out, 1, 0), expr.Int(2)); err != nil {
			t.Fatal(err)
		}
		if _, err := Elaborate(m, DefaultPolicy()); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("block and assign", func(t *testing.T) {
		m := MustNew("m")
		out, err := m.Output("out", 1)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(out, expr.Int(1)); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Combinational(func(b *stmt.Builder) { b.Assign(out, expr.Int(0)) }); err != nil {
			t.Fatal(err)
		}
		_, err = Elaborate(m, DefaultPolicy())
		var md *rtlerr.MultipleDriverError
		if !errors.As(err, &md) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("one block many writes", func(t *testing.T) {
		m := MustNew("m")
		sel, err := m.Input("sel", 1)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.Output("out", 1)
		if err != nil {
			t.Fatal(err)
		}
		_, err = m.Combinational(func(b *stmt.Builder) {
			b.Assign(out, expr.Int(0))
			b.If(sel, func(b *stmt.Builder) { b.Assign(out, expr.Int(1)) })
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Elaborate(m, DefaultPolicy()); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("undriven output", func(t *testing.T) {
		m := MustNew("m")
		if _, err := m.Output("out", 2); err != nil {
			t.Fatal(err)
		}
		_, err := Elaborate(m, DefaultPolicy())
		var up *rtlerr.UnconnectedPortError
		if !errors.As(err, &up) || up.Port != "out" {
			t.Fatalf("got %v", err)
		}
		if _, err := Elaborate(m, Policy{AllowUndrivenOutputs: true}); err != nil {
			t.Fatal(err)
		}
	})
}

func TestElaborateChildPorts(t *testing.T) {
	build := func(t *testing.T) (*Module, *Module) {
		parent := MustNew("parent")
		child := MustNew("child")
		in, err := child.Input("in", 4)
		if err != nil {
			t.Fatal(err)
		}
		out, err := child.Output("out", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := child.Assign(out, in); err != nil {
			t.Fatal(err)
		}
		if err := parent.AddChild("c", child); err != nil {
			t.Fatal(err)
		}
		return parent, child
	}

	t.Run("unconnected input", func(t *testing.T) {
		parent, _ := build(t)
		_, err := Elaborate(parent, DefaultPolicy())
		var up *rtlerr.UnconnectedPortError
		if !errors.As(err, &up) || up.Port != "c.in" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("left open", func(t *testing.T) {
		parent, child := build(t)
		if err := parent.LeaveOpen(child.MustSignal("in")); err != nil {
			t.Fatal(err)
		}
		d, err := Elaborate(parent, DefaultPolicy())
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range d.Top.Instances[0].Bindings {
			if !b.Open {
				t.Errorf("%s bound to %q", b.Port, b.Text)
			}
		}
		if _, err := Elaborate(parent, Policy{}); err == nil {
			t.Fatal("open output accepted without AllowOpenOutputs")
		}
	})

	t.Run("two drivers", func(t *testing.T) {
		parent, child := build(t)
		a, err := parent.Input("a", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(child.MustSignal("in"), a); err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(child.MustSignal("in"), expr.Int(3)); err != nil {
			t.Fatal(err)
		}
		_, err = Elaborate(parent, DefaultPolicy())
		var md *rtlerr.MultipleDriverError
		if !errors.As(err, &md) || md.Signal != "c.in" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("output used in expression", func(t *testing.T) {
		parent, child := build(t)
		a, err := parent.Input("a", 4)
		if err != nil {
			t.Fatal(err)
		}
		y, err := parent.Output("y", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(child.MustSignal("in"), expr.Add(a, expr.Int(1))); err != nil {
			t.Fatal(err)
		}
		if err := parent.Assign(y, expr.Xor(child.MustSignal("out"), a)); err != nil {
			t.Fatal(err)
		}
		d, err := Elaborate(parent, DefaultPolicy())
		if err != nil {
			t.Fatal(err)
		}
		u := d.Top
		if len(u.Nets) != 1 || u.Nets[0].Name != "c_out" {
			t.Fatalf("nets = %+v", u.Nets)
		}
		b := u.Instances[0].Bindings
		if b[0].Text != "a + 4'h1" || b[1].Text != "c_out" {
			t.Fatalf("bindings = %+v", b)
		}
		if got := expr.Format(u.Assigns[0].Right, u.Namer()); got != "c_out ^ a" {
			t.Fatalf("assign = %q", got)
		}
	})

	t.Run("output bound directly", func(t *testing.T) {
		parent, child := build(t)
		a, err := parent.Input("a", 4)
		if err != nil {
			t.Fatal(err)
		}
		y, err := parent.Output("y", 4)
		if err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(child.MustSignal("in"), a); err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(y, child.MustSignal("out")); err != nil {
			t.Fatal(err)
		}
		d, err := Elaborate(parent, DefaultPolicy())
		if err != nil {
			t.Fatal(err)
		}
		if len(d.Top.Nets) != 0 || len(d.Top.Assigns) != 0 {
			t.Fatalf("nets = %v assigns = %v", d.Top.Nets, d.Top.Assigns)
		}
		if got := d.Top.Instances[0].Bindings[1].Text; got != "y" {
			t.Fatalf("out bound to %q", got)
		}
	})

	t.Run("grandchild port", func(t *testing.T) {
		parent, child := build(t)
		grand := MustNew("grand")
		gin, err := grand.Input("gin", 1)
		if err != nil {
			t.Fatal(err)
		}
		if err := child.AddChild("g", grand); err != nil {
			t.Fatal(err)
		}
		if err := child.LeaveOpen(gin); err != nil {
			t.Fatal(err)
		}
		if err := parent.LeaveOpen(child.MustSignal("in")); err != nil {
			t.Fatal(err)
		}
		v, err := parent.Var("v", 1)
		if err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(gin, v); err != nil {
			t.Fatal(err)
		}
		_, err = Elaborate(parent, DefaultPolicy())
		var se *rtlerr.ScopeError
		if !errors.As(err, &se) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestElaborateInoutPort(t *testing.T) {
	for _, padFirst := range []bool{true, false} {
		name := "var first"
		if padFirst {
			name = "pad first"
		}
		t.Run(name, func(t *testing.T) {
			parent := MustNew("parent")
			child := MustNew("child")
			pad, err := child.Inout("pad", 1)
			if err != nil {
				t.Fatal(err)
			}
			if err := parent.AddChild("c", child); err != nil {
				t.Fatal(err)
			}
			v, err := parent.Var("v", 1)
			if err != nil {
				t.Fatal(err)
			}
			if padFirst {
				err = parent.Wire(pad, v)
			} else {
				err = parent.Wire(v, pad)
			}
			if err != nil {
				t.Fatal(err)
			}
			d, err := Elaborate(parent, DefaultPolicy())
			if err != nil {
				t.Fatalf("Elaborate: %v", err)
			}
			if b := d.Top.Instances[0].Bindings[0]; b.Open || b.Text == "" {
				t.Fatalf("pad binding = %+v", b)
			}
		})
	}

	t.Run("untouched", func(t *testing.T) {
		parent := MustNew("parent")
		child := MustNew("child")
		if _, err := child.Inout("pad", 1); err != nil {
			t.Fatal(err)
		}
		if err := parent.AddChild("c", child); err != nil {
			t.Fatal(err)
		}
		_, err := Elaborate(parent, DefaultPolicy())
		var up *rtlerr.UnconnectedPortError
		if !errors.As(err, &up) || up.Port != "c.pad" {
			t.Fatalf("got %v", err)
		}
	})
}

func TestElaborateInterfaceBinding(t *testing.T) {
	def := configBus(t)
	mk := func(name, modport string) (*Module, *InterfaceInstance) {
		m := MustNew(name)
		port, err := m.Interface(def.MustModport(modport), "bus", true)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range def.MustModport(modport).Entries() {
			if e.Dir == expr.DirOutput {
				if err := m.Assign(port.MustMember(e.Member), expr.Int(0)); err != nil {
					t.Fatal(err)
				}
			}
		}
		return m, port
	}

	t.Run("child to child", func(t *testing.T) {
		top := MustNew("Top")
		m, mp := mk("M", "Master")
		s, sp := mk("S", "Slave")
		if err := top.AddChild("m", m); err != nil {
			t.Fatal(err)
		}
		if err := top.AddChild("s", s); err != nil {
			t.Fatal(err)
		}
		if err := top.WireInterface(mp, sp); err != nil {
			t.Fatal(err)
		}
		d, err := Elaborate(top, DefaultPolicy())
		if err != nil {
			t.Fatal(err)
		}
		if len(d.Top.AutoInterfaces) != 1 || d.Top.AutoInterfaces[0].Name != "m_bus" {
			t.Fatalf("auto interfaces = %+v", d.Top.AutoInterfaces)
		}
		if got := d.Top.Instances[1].Bindings[0].Text; got != "m_bus.Slave" {
			t.Fatalf("slave bus = %q", got)
		}
	})

	t.Run("same modport rejected", func(t *testing.T) {
		top := MustNew("Top")
		a, ap := mk("A", "Master")
		b, bp := mk("B", "Master")
		if err := top.AddChild("a", a); err != nil {
			t.Fatal(err)
		}
		if err := top.AddChild("b", b); err != nil {
			t.Fatal(err)
		}
		var dc *rtlerr.DirectionConflictError
		if err := top.WireInterface(ap, bp); !errors.As(err, &dc) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("unbound", func(t *testing.T) {
		top := MustNew("Top")
		m, _ := mk("M", "Master")
		if err := top.AddChild("m", m); err != nil {
			t.Fatal(err)
		}
		_, err := Elaborate(top, DefaultPolicy())
		var up *rtlerr.UnconnectedPortError
		if !errors.As(err, &up) || up.Port != "m.bus" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("view", func(t *testing.T) {
		top := MustNew("Top")
		m, mp := mk("M", "Master")
		if err := top.AddChild("m", m); err != nil {
			t.Fatal(err)
		}
		bus, err := top.Interface(def, "bus_top", false)
		if err != nil {
			t.Fatal(err)
		}
		if err := top.WireInterface(mp, bus.MustProject("Master")); err != nil {
			t.Fatal(err)
		}
		d, err := Elaborate(top, DefaultPolicy())
		if err != nil {
			t.Fatal(err)
		}
		if got := d.Top.Instances[0].Bindings[0].Text; got != "bus_top.Master" {
			t.Fatalf("bus = %q", got)
		}
		var dc *rtlerr.DirectionConflictError
		if err := top.WireInterface(mp, bus.MustProject("Slave")); !errors.As(err, &dc) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("definition mismatch", func(t *testing.T) {
		other := iface.Define("Other").Var("x", 1).MustBuild()
		top := MustNew("Top")
		m, mp := mk("M", "Master")
		if err := top.AddChild("m", m); err != nil {
			t.Fatal(err)
		}
		o, err := top.Interface(other, "o", false)
		if err != nil {
			t.Fatal(err)
		}
		var im *rtlerr.InterfaceMismatchError
		if err := top.WireInterface(mp, o); !errors.As(err, &im) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestUniquify(t *testing.T) {
	mk := func(width int) *Module {
		m := MustNew("child")
		in, err := m.Input("in", width)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.Output("out", width)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Assign(out, in); err != nil {
			t.Fatal(err)
		}
		return m
	}
	build := func(w1, w2 int) *Module {
		top := MustNew("top")
		for i, w := range []int{w1, w2} {
			c := mk(w)
			name := []string{"a", "b"}[i]
			if err := top.AddChild(name, c); err != nil {
				t.Fatal(err)
			}
			if err := top.LeaveOpen(c.MustSignal("in")); err != nil {
				t.Fatal(err)
			}
		}
		return top
	}

	d, err := Elaborate(build(4, 8), DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Units) != 3 || d.Units[0].Name != "child" || d.Units[1].Name != "child_unq0" {
		t.Fatalf("units = %v", unitNames(d))
	}
	if d.Top.Instances[1].ModuleName() != "child_unq0" {
		t.Fatalf("b instantiates %s", d.Top.Instances[1].ModuleName())
	}

	d, err = Elaborate(build(4, 4), DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Units) != 2 || len(d.AllUnits()) != 3 {
		t.Fatalf("units = %v", unitNames(d))
	}
	if d.Top.Instances[0].ModuleName() != "child" || d.Top.Instances[1].ModuleName() != "child" {
		t.Fatal("equal definitions were not shared")
	}
}

func unitNames(d *Design) []string {
	var out []string
	for _, u := range d.Units {
		out = append(out, u.Name)
	}
	return out
}

func TestRegisterHelpers(t *testing.T) {
	m := MustNew("m")
	d, err := m.Input("d", 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.RegNext("q", d); err == nil {
		t.Fatal("RegNext without a clock succeeded")
	}
	if _, err := m.Clock("clk"); err != nil {
		t.Fatal(err)
	}
	q, err := m.RegNext("q", d)
	if err != nil {
		t.Fatal(err)
	}
	if q.Width() != 4 || len(m.Blocks()) != 1 {
		t.Fatalf("q width %d, blocks %d", q.Width(), len(m.Blocks()))
	}
	en, err := m.Input("en", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.RegEnable("qe", d, en); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RegInit("qi", d); err == nil {
		t.Fatal("RegInit without a reset succeeded")
	}
	if _, err := m.Reset("rst"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RegInit("qi", d); err != nil {
		t.Fatal(err)
	}
	blk := m.Blocks()[2]
	if len(blk.Triggers) != 2 || blk.Kind != stmt.Sequential {
		t.Fatalf("RegInit block = %+v", blk)
	}
}
