// Package validator checks data crossing package boundaries against
// embedded CUE contracts: fact tables before they reach the lint policies,
// configuration after loading, and lint output before it is reported.
//
// A failed validation is a bug in the producer. Fix the producer or the
// schema; never suppress the error.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed facts_schema.cue config_schema.cue output_schema.cue
var schemaFS embed.FS

// schema is one compiled CUE file and the definition data is checked against.
type schema struct {
	ctx  *cue.Context
	file string
	def  cue.Value
}

func load(file, definition string) (*schema, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	compiled := ctx.CompileBytes(schemaBytes, cue.Filename(file))
	if compiled.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, compiled.Err())
	}

	def := compiled.LookupPath(cue.ParsePath(definition))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", definition, def.Err())
	}

	return &schema{ctx: ctx, file: file, def: def}, nil
}

func (s *schema) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling data as CUE: %w", dataValue.Err())
	}
	return s.def.Unify(dataValue), nil
}

func (s *schema) validateJSON(jsonBytes []byte, what string) error {
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", what, err)
	}
	return nil
}

func (s *schema) validate(data interface{}, what string) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s to JSON: %w", what, err)
	}
	return s.validateJSON(jsonBytes, what)
}

// errorList flattens every validation error, one line per failed path.
func (s *schema) errorList(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}
	unified, err := s.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate()
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	tables *schema
	delta  *schema
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	tables, err := load("facts_schema.cue", "#FactTables")
	if err != nil {
		return nil, err
	}
	delta, err := load("facts_schema.cue", "#FactDelta")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{tables: tables, delta: delta}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data interface{}) error {
	return v.tables.validate(data, "facts")
}

// ValidateJSON validates serialized fact tables.
func (v *FactsValidator) ValidateJSON(jsonBytes []byte) error {
	return v.tables.validateJSON(jsonBytes, "facts")
}

// ValidateDelta checks an added/removed pair of fact tables.
func (v *FactsValidator) ValidateDelta(data interface{}) error {
	return v.delta.validate(data, "facts delta")
}

// ValidationErrors returns detailed information about all validation errors
func (v *FactsValidator) ValidationErrors(data interface{}) []string {
	return v.tables.errorList(data)
}

// ConfigValidator validates loaded configuration.
type ConfigValidator struct {
	schema *schema
}

// NewConfigValidator creates a validator for rtlgen configuration.
func NewConfigValidator() (*ConfigValidator, error) {
	s, err := load("config_schema.cue", "#Config")
	if err != nil {
		return nil, err
	}
	return &ConfigValidator{schema: s}, nil
}

// Validate checks a configuration value.
func (v *ConfigValidator) Validate(cfg interface{}) error {
	return v.schema.validate(cfg, "config")
}

// ValidationErrors returns one line per invalid configuration field.
func (v *ConfigValidator) ValidationErrors(cfg interface{}) []string {
	return v.schema.errorList(cfg)
}

// OutputValidator validates linter output against the output schema
type OutputValidator struct {
	schema *schema
}

// NewOutputValidator creates a validator for linter output
func NewOutputValidator() (*OutputValidator, error) {
	s, err := load("output_schema.cue", "#LintOutput")
	if err != nil {
		return nil, err
	}
	return &OutputValidator{schema: s}, nil
}

// Validate checks that the output data conforms to the output schema
func (v *OutputValidator) Validate(data interface{}) error {
	return v.schema.validate(data, "output")
}
