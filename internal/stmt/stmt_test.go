package stmt

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

type scope string

func (s scope) ScopeName() string { return string(s) }

func sig(name string, width int, kind expr.Kind) *expr.Signal {
	dir := expr.DirNone
	if kind == expr.KindClock || kind == expr.KindReset {
		dir = expr.DirInput
	}
	return expr.NewSignal(scope("m"), expr.SignalSpec{Name: name, Width: width, Kind: kind, Dir: dir})
}

func TestAssignKeepsOperands(t *testing.T) {
	a := sig("a", 4, expr.KindVar)
	b := sig("b", 4, expr.KindVar)

	blk, err := NewCombinational(func(b2 *Builder) {
		b2.Assign(a, b)
	})
	if err != nil {
		t.Fatal(err)
	}
	as := blk.Assigns()
	if len(as) != 1 || as[0].Left != expr.Expr(a) || as[0].Right != expr.Expr(b) {
		t.Fatalf("assignment should keep the given operands: %+v", as)
	}
}

func TestAssignWidthRules(t *testing.T) {
	a := sig("a", 4, expr.KindVar)
	wide := sig("wide", 8, expr.KindVar)

	tests := []struct {
		name    string
		src     expr.Expr
		wantErr bool
	}{
		{"same width signal", sig("b", 4, expr.KindVar), false},
		{"wider signal", wide, true},
		{"unsized literal resized", expr.Int(9), false},
		{"unsized literal too big", expr.Int(16), true},
		{"sized literal mismatch", expr.MustConst(1, 1), true},
		{"operator expression context sized", expr.Add(wide, wide), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCombinational(func(b *Builder) { b.Assign(a, tt.src) })
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	_, err := NewCombinational(func(b *Builder) { b.Assign(a, wide) })
	var wm *rtlerr.WidthMismatchError
	if !errors.As(err, &wm) || wm.Want != 4 || wm.Got != 8 {
		t.Errorf("expected WidthMismatchError 4/8, got %v", err)
	}
}

func TestAssignRejectsExpressionTarget(t *testing.T) {
	a := sig("a", 4, expr.KindVar)
	_, err := NewCombinational(func(b *Builder) { b.Assign(expr.Add(a, a), a) })
	var at *rtlerr.AssignTargetError
	if !errors.As(err, &at) {
		t.Fatalf("expected AssignTargetError, got %v", err)
	}
}

func TestSequentialTriggers(t *testing.T) {
	clk := sig("clk", 1, expr.KindClock)
	rst := sig("rst", 1, expr.KindReset)
	data := sig("data", 1, expr.KindVar)
	q := sig("q", 1, expr.KindVar)

	blk, err := NewSequential([]Trigger{OnPosedge(clk), OnNegedge(rst)}, func(b *Builder) {
		b.If(expr.LNot(rst), func(b *Builder) {
			b.Assign(q, expr.Int(0))
		}).Else(func(b *Builder) {
			b.Assign(q, data)
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if blk.Kind != Sequential || len(blk.Triggers) != 2 {
		t.Errorf("unexpected block %+v", blk)
	}

	_, err = NewEdgeTriggered(Posedge, data, func(b *Builder) {})
	var te *rtlerr.TriggerError
	if !errors.As(err, &te) {
		t.Fatalf("expected TriggerError, got %v", err)
	}
}

func TestBuilderRunsOnce(t *testing.T) {
	calls := 0
	_, err := NewCombinational(func(b *Builder) { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("builder invoked %d times", calls)
	}
}

func TestFirstErrorIsSticky(t *testing.T) {
	a := sig("a", 4, expr.KindVar)
	wide := sig("wide", 8, expr.KindVar)
	_, err := NewCombinational(func(b *Builder) {
		b.If(a, func(b *Builder) {
			b.Assign(a, wide)
		})
		b.Assign(expr.Add(a, a), a)
	})
	var wm *rtlerr.WidthMismatchError
	if !errors.As(err, &wm) {
		t.Fatalf("expected first error to be reported, got %v", err)
	}
}

func TestSensitivityAndLatchRisk(t *testing.T) {
	sel := sig("sel", 2, expr.KindVar)
	a := sig("a", 4, expr.KindVar)
	b := sig("b", 4, expr.KindVar)
	x := sig("x", 4, expr.KindVar)
	y := sig("y", 4, expr.KindVar)

	blk, err := NewCombinational(func(bb *Builder) {
		bb.Switch(sel).
			Case(expr.Int(0), func(bb *Builder) {
				bb.Assign(x, a)
				bb.Assign(y, a)
			}).
			Case(expr.Int(1), func(bb *Builder) {
				bb.Assign(x, b)
			}).
			Default(func(bb *Builder) {
				bb.Assign(x, expr.Int(0))
			})
	})
	if err != nil {
		t.Fatal(err)
	}

	sens := blk.Sensitivity()
	if len(sens) != 3 || sens[0] != sel || sens[1] != a || sens[2] != b {
		t.Errorf("sensitivity = %v", sens)
	}
	partial := blk.PartiallyAssigned()
	if len(partial) != 1 || partial[0] != y {
		t.Errorf("partially assigned = %v, want [y]", partial)
	}
}

func TestElseIfChain(t *testing.T) {
	a := sig("a", 1, expr.KindVar)
	b := sig("b", 1, expr.KindVar)
	q := sig("q", 2, expr.KindVar)

	blk, err := NewCombinational(func(bb *Builder) {
		bb.If(a, func(bb *Builder) { bb.Assign(q, expr.Int(1)) }).
			ElseIf(b, func(bb *Builder) { bb.Assign(q, expr.Int(2)) }).
			Else(func(bb *Builder) { bb.Assign(q, expr.Int(3)) })
	})
	if err != nil {
		t.Fatal(err)
	}
	top, ok := blk.Stmts[0].(*If)
	if !ok || len(top.Else) != 1 {
		t.Fatalf("unexpected shape %+v", blk.Stmts)
	}
	inner, ok := top.Else[0].(*If)
	if !ok || len(inner.Else) != 1 {
		t.Fatalf("else-if should nest as an If in the else branch")
	}
	if len(blk.PartiallyAssigned()) != 0 {
		t.Errorf("q is assigned on every path")
	}
}

func TestDuplicateCaseItem(t *testing.T) {
	sel := sig("sel", 2, expr.KindVar)
	_, err := NewCombinational(func(bb *Builder) {
		bb.Switch(sel).Case(expr.Int(1), nil).Case(expr.Int(1), nil)
	})
	if err == nil {
		t.Fatal("expected duplicate case error")
	}
}

func TestBlockRefit(t *testing.T) {
	p, err := expr.NewParam(scope("m"), "P", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	v := expr.NewSignal(scope("m"), expr.SignalSpec{Name: "v", Kind: expr.KindVar, WidthParam: p})
	sel := expr.NewSignal(scope("m"), expr.SignalSpec{Name: "sel", Kind: expr.KindVar, WidthParam: p})
	fixed := sig("fixed", 4, expr.KindVar)

	build := func(t *testing.T, src expr.Expr) *Block {
		t.Helper()
		if err := p.SetValue(4); err != nil {
			t.Fatal(err)
		}
		blk, err := NewCombinational(func(b *Builder) {
			b.Switch(sel).Case(expr.Int(3), func(b *Builder) {
				b.Assign(v, src)
			})
		})
		if err != nil {
			t.Fatal(err)
		}
		return blk
	}

	t.Run("resized", func(t *testing.T) {
		blk := build(t, expr.Int(1))
		if err := p.SetValue(2); err != nil {
			t.Fatal(err)
		}
		if err := blk.Refit(); err != nil {
			t.Fatal(err)
		}
		sw := blk.Stmts[0].(*Switch)
		if got := sw.Cases[0].Value.String(); got != "2'h3" {
			t.Errorf("case item = %s", got)
		}
		if got := blk.Assigns()[0].Value().String(); got != "2'h1" {
			t.Errorf("assign value = %s", got)
		}
	})

	t.Run("fixed source", func(t *testing.T) {
		blk := build(t, fixed)
		if err := p.SetValue(2); err != nil {
			t.Fatal(err)
		}
		var wm *rtlerr.WidthMismatchError
		if err := blk.Refit(); !errors.As(err, &wm) {
			t.Fatalf("got %v", err)
		}
	})
}
