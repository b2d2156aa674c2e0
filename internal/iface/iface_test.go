package iface

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/rtlgen/internal/expr"
	"github.com/robert-at-pretension-io/rtlgen/internal/rtlerr"
)

func configBus(t *testing.T) *Definition {
	t.Helper()
	b := Define("Config").
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
		t.Fatalf("Build: %v", err)
	}
	return def
}

func TestDefinition(t *testing.T) {
	def := configBus(t)

	if len(def.Members()) != 5 {
		t.Fatalf("members = %d, want 5", len(def.Members()))
	}
	slave, err := def.Modport("Slave")
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string]expr.Direction{
		"clk":        expr.DirInput,
		"read_data":  expr.DirOutput,
		"write_data": expr.DirInput,
		"r_en":       expr.DirInput,
	}
	for m, want := range checks {
		got, ok := slave.Direction(m)
		if !ok || got != want {
			t.Errorf("Slave.%s = %v, want %v", m, got, want)
		}
	}
	if slave.QualifiedName() != "Config.Slave" {
		t.Errorf("qualified name = %q", slave.QualifiedName())
	}
	if err := def.CheckComplementary(def.MustModport("Master"), slave); err != nil {
		t.Errorf("Master/Slave should be complementary: %v", err)
	}
}

func TestCheckComplementaryRejectsSameDirection(t *testing.T) {
	b := Define("Bus").Var("d", 4)
	b.Modport("A").Output("d")
	b.Modport("B").Output("d")
	def := b.MustBuild()

	err := def.CheckComplementary(def.MustModport("A"), def.MustModport("B"))
	var dc *rtlerr.DirectionConflictError
	if !errors.As(err, &dc) {
		t.Fatalf("expected DirectionConflictError, got %v", err)
	}
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		check func(error) bool
	}{
		{
			name:  "duplicate member",
			build: func() *Builder { return Define("I").Var("a", 1).Var("a", 2) },
			check: func(err error) bool { var e *rtlerr.DuplicateNameError; return errors.As(err, &e) },
		},
		{
			name: "conflicting direction",
			build: func() *Builder {
				b := Define("I").Var("a", 1)
				b.Modport("M").Input("a").Output("a")
				return b
			},
			check: func(err error) bool { var e *rtlerr.DirectionConflictError; return errors.As(err, &e) },
		},
		{
			name: "unknown member",
			build: func() *Builder {
				b := Define("I").Var("data", 1)
				b.Modport("M").Input("dta")
				return b
			},
			check: func(err error) bool {
				var e *rtlerr.UnknownNameError
				return errors.As(err, &e) && e.Suggestion == "data"
			},
		},
		{
			name: "clock output",
			build: func() *Builder {
				b := Define("I").Clock("clk")
				b.Modport("M").Output("clk")
				return b
			},
			check: func(err error) bool { var e *rtlerr.DirectionConflictError; return errors.As(err, &e) },
		},
		{
			name:  "keyword name",
			build: func() *Builder { return Define("I").Var("wire", 1) },
			check: func(err error) bool { var e *rtlerr.InvalidNameError; return errors.As(err, &e) },
		},
		{
			name: "duplicate modport",
			build: func() *Builder {
				b := Define("I").Var("a", 1)
				b.Modport("M").Input("a")
				b.Modport("M").Output("a")
				return b
			},
			check: func(err error) bool { var e *rtlerr.DuplicateNameError; return errors.As(err, &e) },
		},
		{
			name:  "complement of unknown modport",
			build: func() *Builder { return Define("I").Var("a", 1).Complement("S", "M") },
			check: func(err error) bool { var e *rtlerr.UnknownNameError; return errors.As(err, &e) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error kind: %T %v", errors.Cause(err), err)
			}
		})
	}
}

func TestBuildSnapshots(t *testing.T) {
	b := Define("Bus").Var("x", 1)
	b.Modport("M").Input("x")

	first, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Modports()) != 1 || len(second.Modports()) != 1 {
		t.Fatalf("modports = %d, %d, want 1", len(first.Modports()), len(second.Modports()))
	}
	if first.MustModport("M").Definition() != first {
		t.Fatal("modport does not point at its definition")
	}

	b.Var("y", 2)
	if len(first.Members()) != 1 {
		t.Fatalf("built definition changed: %d members", len(first.Members()))
	}
	if _, err := first.Member("y"); err == nil {
		t.Fatal("member added after Build is visible")
	}
	third, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(third.Members()) != 2 {
		t.Fatalf("rebuilt members = %d, want 2", len(third.Members()))
	}
}

func TestDefineKeyword(t *testing.T) {
	_, err := Define("module").Var("a", 1).Build()
	var e *rtlerr.InvalidNameError
	if !errors.As(err, &e) || e.Reason != "reserved keyword" {
		t.Fatalf("got %v", err)
	}
}
