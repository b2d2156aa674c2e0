package validator

import (
	"encoding/json"
	"testing"

	"github.com/robert-at-pretension-io/rtlgen/internal/config"
	"github.com/robert-at-pretension-io/rtlgen/internal/designs"
	"github.com/robert-at-pretension-io/rtlgen/internal/facts"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
)

func designTables(t *testing.T, name string) facts.Tables {
	t.Helper()
	top, err := designs.Build(name)
	if err != nil {
		t.Fatalf("build %s: %v", name, err)
	}
	d, err := module.Elaborate(top, module.DefaultPolicy())
	if err != nil {
		t.Fatalf("elaborate %s: %v", name, err)
	}
	return facts.BuildTables(d)
}

func TestFactsValidatorAcceptsDesigns(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}
	for _, name := range designs.Names() {
		t.Run(name, func(t *testing.T) {
			tables := designTables(t, name)
			if err := v.Validate(tables); err != nil {
				t.Fatalf("expected valid tables, got error: %v", err)
			}
			delta := facts.ComputeDelta(facts.Tables{}, tables)
			if err := v.ValidateDelta(delta); err != nil {
				t.Fatalf("expected valid delta, got error: %v", err)
			}
		})
	}
}

func TestFactsValidatorRejectsInvalidTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*facts.Tables)
	}{
		{"zero width signal", func(tb *facts.Tables) { tb.Signals[0].Width = 0 }},
		{"bad kind", func(tb *facts.Tables) { tb.Signals[0].Kind = "wire" }},
		{"bad hash", func(tb *facts.Tables) { tb.Modules[0].Hash = "xyz" }},
		{"wire reads exceed reads", func(tb *facts.Tables) { tb.Signals[0].WireReads = tb.Signals[0].Reads + 1 }},
		{"comb block with triggers", func(tb *facts.Tables) {
			for i := range tb.Blocks {
				if tb.Blocks[i].Kind == "combinational" {
					tb.Blocks[i].Triggers = "posedge clk"
				}
			}
		}},
		{"invalid identifier", func(tb *facts.Tables) { tb.Instances[0].Name = "2bad" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := designTables(t, "fanout")
			tt.mutate(&tables)
			if err := v.Validate(tables); err == nil {
				t.Fatalf("expected validation error, got nil")
			}
			if errs := v.ValidationErrors(tables); len(errs) == 0 {
				t.Fatalf("expected detailed errors")
			}
		})
	}
}

func TestFactsValidatorRejectsUnknownColumn(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}
	data := []byte(`{"modules": [{"name": "a", "hash": "0123456789abcdef", "depth": 0, "is_top": true, "comment": "", "file": "a.sv"}]}`)
	if err := v.ValidateJSON(data); err == nil {
		t.Fatal("expected closed row to reject unknown column")
	}
}

func TestConfigValidator(t *testing.T) {
	v, err := NewConfigValidator()
	if err != nil {
		t.Fatalf("new config validator: %v", err)
	}

	if err := v.Validate(config.DefaultConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"empty", `{}`, false},
		{"rules", `{"lint": {"rules": {"latch_risk": "error", "unused_signal": "off"}}}`, false},
		{"bad severity", `{"lint": {"rules": {"latch_risk": "loud"}}}`, true},
		{"bad standard", `{"standard": "2005"}`, true},
		{"unknown field", `{"emit": {"outputDirectory": "rtl"}}`, true},
		{"negative indent", `{"emit": {"indent": -1}}`, true},
		{"bad log format", `{"telemetry": {"logFormat": "xml"}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(tt.data), &data); err != nil {
				t.Fatal(err)
			}
			err := v.Validate(data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOutputValidator(t *testing.T) {
	v, err := NewOutputValidator()
	if err != nil {
		t.Fatalf("new output validator: %v", err)
	}
	valid := map[string]interface{}{
		"violations": []interface{}{
			map[string]interface{}{
				"rule": "unused_signal", "severity": "warning",
				"module": "top", "name": "spare", "message": "variable spare is never used",
			},
		},
		"summary": map[string]interface{}{
			"total_violations": 1, "errors": 0, "warnings": 1, "info": 0,
		},
	}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("expected valid output, got %v", err)
	}

	invalid := map[string]interface{}{
		"violations": []interface{}{
			map[string]interface{}{
				"rule": "unused_signal", "severity": "off",
				"module": "top", "name": "spare", "message": "x",
			},
		},
		"summary": map[string]interface{}{
			"total_violations": 1, "errors": 0, "warnings": 0, "info": 0,
		},
	}
	if err := v.Validate(invalid); err == nil {
		t.Fatal("expected severity off to be rejected")
	}
}
