// Package policy evaluates rego lint rules against design fact tables.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/rtlgen/internal/config"
	"github.com/robert-at-pretension-io/rtlgen/internal/facts"
)

//go:embed lint.rego
var builtinPolicy string

// Rules lists the built-in rule names.
var Rules = []string{"unused_signal", "undriven_var", "clock_as_data", "latch_risk", "naming_instance"}

// Engine evaluates OPA policies against design facts
type Engine struct {
	queries     map[string]rego.PreparedEvalQuery
	fingerprint string
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Module   string `json:"module"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// HasErrors reports whether any violation has error severity.
func (r *Result) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the data structure passed to OPA: the fact relations plus the
// rule severities from configuration.
type Input struct {
	facts.Tables
	Config InputConfig `json:"config"`
}

// InputConfig carries per-rule severity overrides ("off" disables a rule).
type InputConfig struct {
	Rules map[string]string `json:"rules"`
}

// NewInput prepares policy input. Modules matching lint.ignoreModules are
// dropped from the tables.
func NewInput(tables facts.Tables, cfg *config.Config) Input {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rules := make(map[string]string, len(cfg.Lint.Rules))
	for k, v := range cfg.Lint.Rules {
		rules[k] = v
	}

	if len(cfg.Lint.IgnoreModules) > 0 {
		keep := make(map[string]bool)
		for _, m := range tables.Modules {
			if !cfg.ShouldIgnoreModule(m.Name) {
				keep[m.Name] = true
			}
		}
		tables = facts.FilterTablesByModules(tables, keep)
	}

	return Input{Tables: tables, Config: InputConfig{Rules: rules}}
}

// New creates a policy engine with the built-in rules only.
func New(ctx context.Context) (*Engine, error) {
	return NewWithDir(ctx, "")
}

// NewWithDir creates a policy engine with the built-in rules plus every
// .rego file in policyDir. Extra rules report through the set
// data.rtlgen.custom.violations.
func NewWithDir(ctx context.Context, policyDir string) (*Engine, error) {
	engine := &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
	}

	modules := []func(*rego.Rego){rego.Module("lint.rego", builtinPolicy)}
	h := xxhash.New()
	_, _ = h.WriteString(builtinPolicy)
	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no policy files found in %s", policyDir)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
			_, _ = h.WriteString(filepath.Base(f))
			_, _ = h.Write(content)
		}
	}

	for name, query := range map[string]string{
		"violations": "data.rtlgen.lint.all_violations",
		"summary":    "data.rtlgen.lint.summary",
	} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(query))
		prepared, err := rego.New(opts...).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = prepared
	}
	engine.fingerprint = fmt.Sprintf("%016x", h.Sum64())

	return engine, nil
}

// Fingerprint identifies the loaded rule sources.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

// Evaluate runs the policies against the input data. Violations are sorted
// by module, rule and name.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	if input.Config.Rules == nil {
		input.Config.Rules = map[string]string{}
	}

	// Convert input to map for OPA
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Violations: []Violation{}}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}

	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					Module:   getString(vmap, "module"),
					Name:     getString(vmap, "name"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sort.Slice(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Name < b.Name
	})

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}

	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
