// Package designs holds small reference circuits used by the CLI demos and
// by end-to-end tests.
package designs

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/iface"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

// Factory builds a fresh top module.
type Factory func() (*module.Module, error)

var registry = map[string]Factory{
	"modport_bus": ModportBus,
	"async_reg":   func() (*module.Module, error) { return AsyncReg(8) },
	"passthrough": PassThroughTop,
	"fanout":      FanoutTop,
}

// Names lists the registered designs in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build constructs a registered design by name.
func Build(name string) (*module.Module, error) {
	f, ok := registry[name]
	if !ok {
		return nil, rtlerr.UnknownName("designs", name, rtlerr.Suggest(name, Names()))
	}
	return f()
}

func named(name string, m *module.Module, err error) (*module.Module, error) {
	if err != nil {
		return nil, errors.Wrapf(err, "design %s", name)
	}
	return m, nil
}

// ConfigInterface is the read/write bus shared by Master and Slave.
func ConfigInterface() (*iface.Definition, error) {
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
	return b.Build()
}

// ModportBus is a master and a slave talking through one Config instance.
// The master cycles read and write enables off a counter; the slave latches
// write data and returns it on read.
func ModportBus() (*module.Module, error) {
	m, err := modportBus()
	return named("modport_bus", m, err)
}

func modportBus() (*module.Module, error) {
	def, err := ConfigInterface()
	if err != nil {
		return nil, err
	}
	master, mbus, err := busMaster(def)
	if err != nil {
		return nil, err
	}
	slave, sbus, err := busSlave(def)
	if err != nil {
		return nil, err
	}

	top := module.MustNew("Top")
	if err := top.AddChild("master", master); err != nil {
		return nil, err
	}
	if err := top.AddChild("slave", slave); err != nil {
		return nil, err
	}
	clk, err := top.Clock("clk")
	if err != nil {
		return nil, err
	}
	bus, err := top.Interface(def, "bus_top", false)
	if err != nil {
		return nil, err
	}
	if err := top.Wire(bus.MustMember("clk"), clk); err != nil {
		return nil, err
	}
	if err := top.WireInterface(mbus, bus); err != nil {
		return nil, err
	}
	if err := top.WireInterface(sbus, bus); err != nil {
		return nil, err
	}
	return top, nil
}

func busMaster(def *iface.Definition) (*module.Module, *module.InterfaceInstance, error) {
	master := module.MustNew("Master")
	mbus, err := master.Interface(def.MustModport("Master"), "bus", true)
	if err != nil {
		return nil, nil, err
	}
	counter, err := master.Var("counter", 8)
	if err != nil {
		return nil, nil, err
	}
	if err := master.Wire(mbus.MustMember("write_data"), counter); err != nil {
		return nil, nil, err
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
		return nil, nil, err
	}
	return master, mbus, nil
}

func busSlave(def *iface.Definition) (*module.Module, *module.InterfaceInstance, error) {
	slave := module.MustNew("Slave")
	sbus, err := slave.Interface(def.MustModport("Slave"), "bus", true)
	if err != nil {
		return nil, nil, err
	}
	value, err := slave.Var("value", 8)
	if err != nil {
		return nil, nil, err
	}
	_, err = slave.Sequential(stmt.Posedge, sbus.MustMember("clk"), func(b *stmt.Builder) {
		b.If(sbus.MustMember("r_en"), func(b *stmt.Builder) {
			b.Assign(value, sbus.MustMember("write_data"))
		}).ElseIf(sbus.MustMember("w_en"), func(b *stmt.Builder) {
			b.Assign(sbus.MustMember("read_data"), value)
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return slave, sbus, nil
}

// AsyncReg is a register with an asynchronous active-high reset.
func AsyncReg(width int) (*module.Module, error) {
	m, err := asyncReg(width)
	return named("async_reg", m, err)
}

func asyncReg(width int) (*module.Module, error) {
	m := module.MustNew("AsyncReg")
	m.SetComment("Register with asynchronous reset to zero.")
	if _, err := m.Clock("clk"); err != nil {
		return nil, err
	}
	if _, err := m.Reset("rst"); err != nil {
		return nil, err
	}
	d, err := m.Input("d", width)
	if err != nil {
		return nil, err
	}
	q, err := m.Output("q", width)
	if err != nil {
		return nil, err
	}
	r, err := m.RegInit("r", d)
	if err != nil {
		return nil, err
	}
	if err := m.Assign(q, r); err != nil {
		return nil, err
	}
	return m, nil
}

func passThrough(name string, width int) (*module.Module, error) {
	m := module.MustNew(name)
	in, err := m.Input("in", width)
	if err != nil {
		return nil, err
	}
	out, err := m.Output("out", width)
	if err != nil {
		return nil, err
	}
	if err := m.Assign(out, in); err != nil {
		return nil, err
	}
	return m, nil
}

// PassThroughTop wires a pass-through child between the top ports.
func PassThroughTop() (*module.Module, error) {
	m, err := passThroughTop()
	return named("passthrough", m, err)
}

func passThroughTop() (*module.Module, error) {
	top := module.MustNew("top")
	in, err := top.Input("in", 16)
	if err != nil {
		return nil, err
	}
	out, err := top.Output("out", 16)
	if err != nil {
		return nil, err
	}
	child, err := passThrough("PassThrough", 16)
	if err != nil {
		return nil, err
	}
	if err := top.AddChildWithComment("pass", child, "Forwards in to out unchanged."); err != nil {
		return nil, err
	}
	if err := top.Wire(child.MustSignal("in"), in); err != nil {
		return nil, err
	}
	if err := top.Wire(out, child.MustSignal("out")); err != nil {
		return nil, err
	}
	return top, nil
}

// FanoutTop instantiates equal and differing pass-through children. Equal
// ones share a definition; the wider one is emitted as PassThrough_unq0.
func FanoutTop() (*module.Module, error) {
	m, err := fanoutTop()
	return named("fanout", m, err)
}

func fanoutTop() (*module.Module, error) {
	top := module.MustNew("fanout")
	if _, err := top.Clock("clk"); err != nil {
		return nil, err
	}
	ports := map[string]*expr.Signal{}
	for _, p := range []struct {
		name   string
		width  int
		output bool
	}{
		{"a", 4, false}, {"wide", 8, false}, {"sel", 2, false},
		{"y", 4, true}, {"z", 8, true},
	} {
		var s *expr.Signal
		var err error
		if p.output {
			s, err = top.Output(p.name, p.width)
		} else {
			s, err = top.Input(p.name, p.width)
		}
		if err != nil {
			return nil, err
		}
		ports[p.name] = s
	}

	var kids [3]*module.Module
	for i, w := range []int{4, 4, 8} {
		c, err := passThrough("PassThrough", w)
		if err != nil {
			return nil, err
		}
		if err := top.AddChild(fmt.Sprintf("p%d", i), c); err != nil {
			return nil, err
		}
		kids[i] = c
	}
	p0, p1, p2 := kids[0], kids[1], kids[2]
	a := ports["a"]
	wires := [][2]expr.Expr{
		{p0.MustSignal("in"), a},
		{p1.MustSignal("in"), expr.Inv(a)},
		{p2.MustSignal("in"), ports["wide"]},
		{ports["z"], p2.MustSignal("out")},
	}
	for _, w := range wires {
		if err := top.Wire(w[0], w[1]); err != nil {
			return nil, err
		}
	}

	mixed, err := top.Var("mixed", 4)
	if err != nil {
		return nil, err
	}
	_, err = top.Combinational(func(b *stmt.Builder) {
		b.Switch(ports["sel"]).
			Case(expr.MustConst(0, 2), func(b *stmt.Builder) {
				b.Assign(mixed, p0.MustSignal("out"))
			}).
			Case(expr.MustConst(1, 2), func(b *stmt.Builder) {
				b.Assign(mixed, p1.MustSignal("out"))
			}).
			Default(func(b *stmt.Builder) {
				b.Assign(mixed, expr.Xor(p0.MustSignal("out"), p1.MustSignal("out")))
			})
	})
	if err != nil {
		return nil, err
	}
	held, err := top.RegNext("held", mixed)
	if err != nil {
		return nil, err
	}
	if err := top.Assign(ports["y"], held); err != nil {
		return nil, err
	}
	return top, nil
}
