package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"sigs.k8s.io/yaml"
)

// Config is the top-level configuration for rtlgen
type Config struct {
	// Standard is the SystemVerilog revision targeted: "2012", "2017", "2023"
	Standard string `json:"standard,omitempty"`

	// Emit controls how text is rendered and written
	Emit EmitConfig `json:"emit,omitempty"`

	// Elaborate relaxes connection checks
	Elaborate ElaborateConfig `json:"elaborate,omitempty"`

	// Lint contains lint rule configuration
	Lint LintConfig `json:"lint,omitempty"`

	// Check lists the SystemVerilog files checked by `rtlgen check`
	Check CheckConfig `json:"check,omitempty"`

	// Track records generated definitions across runs
	Track TrackConfig `json:"track,omitempty"`

	// Telemetry controls logging, timing and metrics output
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// EmitConfig controls emission
type EmitConfig struct {
	OutputDir   string `json:"outputDir,omitempty"`
	Extension   string `json:"extension,omitempty"`
	Indent      int    `json:"indent,omitempty"`
	Header      string `json:"header,omitempty"`
	SplitFiles  *bool  `json:"splitFiles,omitempty"`
	Validate    *bool  `json:"validate,omitempty"`
	MaxParallel int    `json:"maxParallel,omitempty"`
}

// ElaborateConfig mirrors the elaboration policy
type ElaborateConfig struct {
	AllowOpenOutputs     *bool `json:"allowOpenOutputs,omitempty"`
	AllowUndrivenOutputs bool  `json:"allowUndrivenOutputs,omitempty"`
}

// LintConfig contains linting configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// IgnoreModules is a list of glob patterns for module names to skip
	IgnoreModules []string `json:"ignoreModules,omitempty"`
}

// CheckConfig selects files for the standalone syntax checker
type CheckConfig struct {
	Files   []string `json:"files,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// TrackConfig controls the generated-definition manifest
type TrackConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// TelemetryConfig controls observability output
type TelemetryConfig struct {
	TimingPath  string `json:"timingPath,omitempty"`
	MetricsPath string `json:"metricsPath,omitempty"`
	LogLevel    string `json:"logLevel,omitempty"`
	LogFormat   string `json:"logFormat,omitempty"`
}

// Names of the configuration files searched by Load
var fileNames = []string{"rtlgen.json", ".rtlgen.json", "rtlgen.yaml", "rtlgen.yml", "rtlgen.toml"}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Standard: "2017",
		Emit: EmitConfig{
			OutputDir:   "rtl",
			Extension:   ".sv",
			Indent:      2,
			SplitFiles:  boolPtr(true),
			Validate:    boolPtr(true),
			MaxParallel: 0, // auto
		},
		Elaborate: ElaborateConfig{
			AllowOpenOutputs: boolPtr(true),
		},
		Lint: LintConfig{
			Rules:         map[string]string{},
			IgnoreModules: []string{},
		},
		Check: CheckConfig{
			Files:   []string{"**.sv", "**.svh"},
			Exclude: []string{},
		},
		Track: TrackConfig{
			Path: ".rtlgen_manifest.json",
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./rtlgen.{json,yaml,yml,toml} and ./.rtlgen.json (current working directory)
//  2. the same names under <rootPath> (if different from cwd)
//  3. ~/.config/rtlgen/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range fileNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range fileNames {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "rtlgen", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. The format follows
// the extension: .yaml/.yml, .toml, anything else is JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := decode(path, data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch formatOf(path) {
	case "yaml":
		return yaml.Unmarshal(data, cfg)
	case "toml":
		// TOML keys follow the json tags: decode generically, then re-encode.
		var raw map[string]interface{}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
		js, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		return json.Unmarshal(js, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return "json"
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Standard == "" {
		c.Standard = def.Standard
	}

	if c.Emit.OutputDir == "" {
		c.Emit.OutputDir = def.Emit.OutputDir
	}
	if c.Emit.Extension == "" {
		c.Emit.Extension = def.Emit.Extension
	}
	if c.Emit.Indent == 0 {
		c.Emit.Indent = def.Emit.Indent
	}
	if c.Emit.SplitFiles == nil {
		c.Emit.SplitFiles = boolPtr(true)
	}
	if c.Emit.Validate == nil {
		c.Emit.Validate = boolPtr(true)
	}
	if c.Elaborate.AllowOpenOutputs == nil {
		c.Elaborate.AllowOpenOutputs = boolPtr(true)
	}

	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if len(c.Check.Files) == 0 {
		c.Check.Files = def.Check.Files
	}

	if c.Track.Path == "" {
		c.Track.Path = def.Track.Path
	}
	if c.Telemetry.LogLevel == "" {
		c.Telemetry.LogLevel = def.Telemetry.LogLevel
	}
	if c.Telemetry.LogFormat == "" {
		c.Telemetry.LogFormat = def.Telemetry.LogFormat
	}
}

// Save writes the configuration to a file in the format of its extension
func (c *Config) Save(path string) error {
	data, err := c.encode(formatOf(path))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func (c *Config) encode(format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(c)
	case "toml":
		js, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(js, &raw); err != nil {
			return nil, err
		}
		return toml.Marshal(raw)
	}
	return json.MarshalIndent(c, "", "  ")
}

// Indent returns the indentation unit used in emitted text
func (c *Config) Indent() string {
	return strings.Repeat(" ", c.Emit.Indent)
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}
