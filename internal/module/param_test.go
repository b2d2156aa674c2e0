package module

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

func TestParameterWidths(t *testing.T) {
	m := MustNew("mod")
	p, err := m.Parameter("P", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := m.Parameter("P2", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	in, err := m.ParamPort(expr.DirInput, "in", p, false)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.ParamPort(expr.DirOutput, "out", p2, false)
	if err != nil {
		t.Fatal(err)
	}
	v, err := m.ParamVar("v", p)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Wire(v, in); err != nil {
		t.Fatal(err)
	}
	if err := m.Wire(out, v); err != nil {
		t.Fatal(err)
	}
	if _, err := Elaborate(m, DefaultPolicy()); err != nil {
		t.Fatalf("Elaborate: %v", err)
	}

	if err := p.SetValue(2); err != nil {
		t.Fatal(err)
	}
	if in.Width() != 2 || out.Width() != 4 {
		t.Fatalf("widths = %d, %d", in.Width(), out.Width())
	}
	_, err = Elaborate(m, DefaultPolicy())
	var wm *rtlerr.WidthMismatchError
	if !errors.As(err, &wm) {
		t.Fatalf("got %v, want width mismatch", err)
	}

	if err := p.SetValue(4); err != nil {
		t.Fatal(err)
	}
	if _, err := Elaborate(m, DefaultPolicy()); err != nil {
		t.Fatalf("Elaborate after restoring P: %v", err)
	}
}

func TestParameterErrors(t *testing.T) {
	m := MustNew("mod")
	p, err := m.Parameter("P", 4, 4)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("name taken", func(t *testing.T) {
		if _, err := m.Var("P", 1); err == nil {
			t.Fatal("variable shadowed a parameter")
		}
		if _, err := m.Parameter("P", 4, 1); err == nil {
			t.Fatal("duplicate parameter accepted")
		}
	})

	t.Run("value out of range", func(t *testing.T) {
		if _, err := m.Parameter("Q", 2, 8); err == nil {
			t.Fatal("8 accepted for a 2-bit parameter")
		}
		if err := p.SetValue(16); err == nil {
			t.Fatal("16 accepted for a 4-bit parameter")
		}
	})

	t.Run("zero width signal", func(t *testing.T) {
		z, err := m.Parameter("Z", 4, 0)
		if err != nil {
			t.Fatal(err)
		}
		_, err = m.ParamVar("z", z)
		var wm *rtlerr.WidthMismatchError
		if !errors.As(err, &wm) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("foreign parameter", func(t *testing.T) {
		other := MustNew("other")
		_, err := other.ParamVar("x", p)
		var se *rtlerr.ScopeError
		if !errors.As(err, &se) {
			t.Fatalf("ParamVar: got %v", err)
		}
		x, err := other.Var("x", 4)
		if err != nil {
			t.Fatal(err)
		}
		err = other.Wire(x, p)
		if !errors.As(err, &se) {
			t.Fatalf("Wire: got %v", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		got, err := m.Param("P")
		if err != nil || got != p {
			t.Fatalf("Param(P) = %v, %v", got, err)
		}
		if _, err := m.Param("PP"); err == nil {
			t.Fatal("unknown parameter found")
		}
	})
}

func TestParameterBinding(t *testing.T) {
	build := func(t *testing.T) (*Module, *Module, *expr.Param, *expr.Param) {
		parent := MustNew("parent")
		child := MustNew("child")
		p, err := parent.Parameter("P", 4, 4)
		if err != nil {
			t.Fatal(err)
		}
		p2, err := child.Parameter("P2", 4, 4)
		if err != nil {
			t.Fatal(err)
		}
		in, err := parent.ParamPort(expr.DirInput, "in", p, false)
		if err != nil {
			t.Fatal(err)
		}
		cin, err := child.ParamPort(expr.DirInput, "in", p2, false)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := child.ParamPort(expr.DirOutput, "out", p2, false); err != nil {
			t.Fatal(err)
		}
		if err := child.Wire(child.MustSignal("out"), cin); err != nil {
			t.Fatal(err)
		}
		if err := parent.AddChild("c", child); err != nil {
			t.Fatal(err)
		}
		if err := parent.Wire(cin, in); err != nil {
			t.Fatal(err)
		}
		return parent, child, p, p2
	}

	t.Run("follows parent", func(t *testing.T) {
		parent, _, p, p2 := build(t)
		if err := p2.Bind(p); err != nil {
			t.Fatal(err)
		}
		if err := p.SetValue(2); err != nil {
			t.Fatal(err)
		}
		if p2.Value() != 2 || p2.Default() != 4 {
			t.Fatalf("P2 value %d default %d", p2.Value(), p2.Default())
		}
		d, err := Elaborate(parent, DefaultPolicy())
		if err != nil {
			t.Fatalf("Elaborate: %v", err)
		}
		ps := d.Top.Instances[0].Params
		if len(ps) != 1 || ps[0].Param != "P2" || ps[0].Text != "P" {
			t.Fatalf("overrides = %+v", ps)
		}
	})

	t.Run("unbound mismatch", func(t *testing.T) {
		parent, _, p, _ := build(t)
		if err := p.SetValue(2); err != nil {
			t.Fatal(err)
		}
		_, err := Elaborate(parent, DefaultPolicy())
		var wm *rtlerr.WidthMismatchError
		if !errors.As(err, &wm) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("bound outside parent", func(t *testing.T) {
		_, _, p, _ := build(t)
		lone := MustNew("lone")
		q, err := lone.Parameter("Q", 4, 1)
		if err != nil {
			t.Fatal(err)
		}
		if err := q.Bind(p); err != nil {
			t.Fatal(err)
		}
		_, err = Elaborate(lone, DefaultPolicy())
		var se *rtlerr.ScopeError
		if !errors.As(err, &se) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		_, _, p, p2 := build(t)
		if err := p2.Bind(p); err != nil {
			t.Fatal(err)
		}
		if err := p.Bind(p2); err == nil {
			t.Fatal("binding cycle accepted")
		}
	})
}

func TestParameterRefitsLiterals(t *testing.T) {
	m := MustNew("mod")
	p, err := m.Parameter("P", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	in, err := m.ParamPort(expr.DirInput, "in", p, false)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.ParamPort(expr.DirOutput, "out", p, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(out, expr.Add(in, expr.Int(1))); err != nil {
		t.Fatal(err)
	}
	if err := p.SetValue(2); err != nil {
		t.Fatal(err)
	}
	d, err := Elaborate(m, DefaultPolicy())
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	got := expr.Format(d.Top.Assigns[0].Right, d.Top.Namer())
	if !strings.Contains(got, "2'h1") {
		t.Fatalf("right side = %q", got)
	}
}
