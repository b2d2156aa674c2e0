package facts

import (
	"reflect"
	"testing"
)

func TestImpactExpansion(t *testing.T) {
	tables := Tables{
		Instances: []InstanceRow{
			{Module: "mid_a", Name: "u0", Target: "leaf"},
			{Module: "mid_b", Name: "u0", Target: "leaf"},
			{Module: "top", Name: "a", Target: "mid_a"},
			{Module: "top", Name: "b", Target: "mid_b"},
			{Module: "top", Name: "c", Target: "leaf"},
		},
	}

	report := ComputeImpact("leaf", BuildDependentsGraph(tables))
	want := [][]string{{"mid_a", "mid_b", "top"}}
	if !reflect.DeepEqual(report.Levels, want) {
		t.Fatalf("levels = %v, want %v", report.Levels, want)
	}

	report = ComputeImpact("mid_a", BuildDependentsGraph(tables))
	if !reflect.DeepEqual(report.Flatten(), []string{"top"}) {
		t.Fatalf("flatten = %v", report.Flatten())
	}
	if report.String() == "" {
		t.Fatal("empty report text")
	}

	if got := ComputeImpact("top", BuildDependentsGraph(tables)); len(got.Levels) != 0 {
		t.Fatalf("top should have no dependents: %v", got.Levels)
	}
}

func TestChangedModules(t *testing.T) {
	next := Tables{
		InterfaceInstances: []InterfaceInstanceRow{
			{Module: "master", Name: "bus", Interface: "cfg", Modport: "m", IsPort: true},
			{Module: "top", Name: "bus_top", Interface: "cfg"},
		},
	}
	delta := Delta{
		Added: Tables{
			Signals: []SignalRow{{Module: "leaf", Name: "x", Kind: "var", Width: 2}},
			Modports: []ModportRow{{Interface: "cfg", Modport: "m", Member: "en", Direction: "output"}},
		},
		Removed: Tables{
			Assigns: []AssignRow{{Module: "mid", Left: "y", Right: "x"}},
		},
	}
	got := ChangedModules(delta, next)
	want := []string{"leaf", "master", "mid", "top"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChangedModules = %v, want %v", got, want)
	}
	if len(ChangedModules(Delta{}, next)) != 0 {
		t.Fatal("empty delta reported changes")
	}
}
