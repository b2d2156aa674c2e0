package module

import (
	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
	"github.com/robert-at-pretension-io/rtlgen/internal/stmt"
)

func (m *Module) defaultClock() (*expr.Signal, error) {
	clocks := m.Clocks()
	if len(clocks) == 0 {
		return nil, rtlerr.UnknownName(m.name, "clock", "")
	}
	return clocks[0], nil
}

func (m *Module) register(name string, src expr.Expr) (*expr.Signal, error) {
	if src.Signed() {
		return m.SignedVar(name, src.Width())
	}
	return m.Var(name, src.Width())
}

// RegNext declares a register that samples src on every rising edge of the
// module's first clock.
func (m *Module) RegNext(name string, src expr.Expr) (*expr.Signal, error) {
	clk, err := m.defaultClock()
	if err != nil {
		return nil, err
	}
	if err := m.scopeCheck(src); err != nil {
		return nil, err
	}
	q, err := m.register(name, src)
	if err != nil {
		return nil, err
	}
	_, err = m.Sequential(stmt.Posedge, clk, func(b *stmt.Builder) {
		b.Assign(q, src)
	})
	return q, err
}

// RegEnable is RegNext gated by en.
func (m *Module) RegEnable(name string, src, en expr.Expr) (*expr.Signal, error) {
	clk, err := m.defaultClock()
	if err != nil {
		return nil, err
	}
	if err := m.scopeCheck(src); err != nil {
		return nil, err
	}
	q, err := m.register(name, src)
	if err != nil {
		return nil, err
	}
	_, err = m.Sequential(stmt.Posedge, clk, func(b *stmt.Builder) {
		b.If(en, func(b *stmt.Builder) {
			b.Assign(q, src)
		})
	})
	return q, err
}

// RegInit is RegNext with an asynchronous active-high reset to zero on the
// module's first reset input.
func (m *Module) RegInit(name string, src expr.Expr) (*expr.Signal, error) {
	clk, err := m.defaultClock()
	if err != nil {
		return nil, err
	}
	resets := m.Resets()
	if len(resets) == 0 {
		return nil, rtlerr.UnknownName(m.name, "reset", "")
	}
	rst := resets[0]
	if err := m.scopeCheck(src); err != nil {
		return nil, err
	}
	q, err := m.register(name, src)
	if err != nil {
		return nil, err
	}
	triggers := []stmt.Trigger{stmt.OnPosedge(clk), stmt.OnPosedge(rst)}
	_, err = m.SequentialOn(triggers, func(b *stmt.Builder) {
		b.If(rst, func(b *stmt.Builder) {
			b.Assign(q, expr.Int(0))
		}).Else(func(b *stmt.Builder) {
			b.Assign(q, src)
		})
	})
	return q, err
}
