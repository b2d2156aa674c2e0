// Package pipeline runs a top module through elaboration, fact extraction,
// schema validation, lint, emission and tracking, recording timing, metrics
// and structured logs along the way.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/rtlgen/internal/codegen"
	"github.com/robert-at-pretension-io/rtlgen/internal/config"
	"github.com/robert-at-pretension-io/rtlgen/internal/facts"
	"github.com/robert-at-pretension-io/rtlgen/internal/manifest"
	"github.com/robert-at-pretension-io/rtlgen/internal/module"
	"github.com/robert-at-pretension-io/rtlgen/internal/policy"
	"github.com/robert-at-pretension-io/rtlgen/internal/validator"
)

// Runner owns the configuration and telemetry shared by successive runs.
type Runner struct {
	Config   *config.Config
	Log      *logrus.Logger
	Registry *prometheus.Registry

	// PolicyDir adds the .rego files it contains to the built-in rules.
	PolicyDir string

	// Write stores emitted files, the manifest and the facts snapshot
	// under Config.Emit.OutputDir. Without it a run stays in memory.
	Write bool

	// NoCache evaluates lint rules even when a stored result matches.
	NoCache bool

	metrics *metrics
	engine  *policy.Engine
	schema  *validator.FactsValidator
}

// Report is everything a run produced.
type Report struct {
	Top      string
	Design   *module.Design
	Output   *codegen.Output
	Tables   facts.Tables
	Delta    *facts.Delta // nil without a previous snapshot
	Impact   []facts.ImpactReport
	Lint     *policy.Result
	// LintCached is set when Lint was reused from the previous run.
	LintCached bool
	Files    []string
	Warnings []manifest.Warning
}

// New validates cfg and prepares a runner logging to stderr. A nil cfg
// means DefaultConfig.
func New(cfg *config.Config) (*Runner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cv, err := validator.NewConfigValidator()
	if err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	if err := cv.Validate(cfg); err != nil {
		return nil, err
	}
	log, err := NewLogger(cfg.Telemetry, os.Stderr)
	if err != nil {
		return nil, err
	}
	fv, err := validator.NewFactsValidator()
	if err != nil {
		return nil, fmt.Errorf("facts schema: %w", err)
	}
	reg := prometheus.NewRegistry()
	return &Runner{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		metrics:  newMetrics(reg),
		schema:   fv,
	}, nil
}

// NewLogger builds a logrus logger from the telemetry settings.
func NewLogger(t config.TelemetryConfig, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	levelName := t.LogLevel
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)
	switch t.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", t.LogFormat)
	}
	return log, nil
}

// Policy is the elaboration policy selected by configuration.
func (r *Runner) Policy() module.Policy {
	p := module.DefaultPolicy()
	if v := r.Config.Elaborate.AllowOpenOutputs; v != nil {
		p.AllowOpenOutputs = *v
	}
	p.AllowUndrivenOutputs = r.Config.Elaborate.AllowUndrivenOutputs
	return p
}

// Options are the emission options selected by configuration.
func (r *Runner) Options() codegen.Options {
	opts := codegen.DefaultOptions()
	opts.Policy = r.Policy()
	if v := r.Config.Emit.Validate; v != nil {
		opts.Validate = *v
	}
	if r.Config.Emit.Indent > 0 {
		opts.Indent = r.Config.Indent()
	}
	if r.Config.Emit.MaxParallel > 0 {
		opts.MaxParallel = r.Config.Emit.MaxParallel
	}
	opts.Header = r.Config.Emit.Header
	return opts
}

func (r *Runner) splitFiles() bool {
	return r.Config.Emit.SplitFiles == nil || *r.Config.Emit.SplitFiles
}

func (r *Runner) trackPath() string {
	path := r.Config.Track.Path
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.Config.Emit.OutputDir, path)
}

func (r *Runner) lintEngine(ctx context.Context) (*policy.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	e, err := policy.NewWithDir(ctx, r.PolicyDir)
	if err != nil {
		return nil, err
	}
	r.engine = e
	return e, nil
}

// Run executes every stage for top. Elaboration, validation and emission
// failures stop the run. Lint errors and tracking failures are collected
// and returned together with the report once emission has finished.
func (r *Runner) Run(ctx context.Context, top *module.Module) (*Report, error) {
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}
	timing := newTimingRecorder(runStart, resolveTimingPath(r.Config))
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()
	defer func() {
		if err := r.writeMetrics(); err != nil {
			r.Log.WithError(err).Warn("metrics output failed")
		}
	}()

	log := r.Log.WithField("top", top.Name())
	status := ""
	stage := func(name string, fn func() error) error {
		start := time.Now()
		status = ""
		err := fn()
		elapsed := time.Since(start)
		if err != nil {
			status = "error"
		}
		timing.RecordStage(name, start, elapsed, status)
		r.metrics.stageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		entry := log.WithFields(logrus.Fields{"stage": name, "duration_ms": durationToMS(elapsed)})
		if err != nil {
			entry.WithError(err).Error("stage failed")
			return fmt.Errorf("%s: %w", name, err)
		}
		entry.Debug("stage done")
		return nil
	}

	report := &Report{Top: top.Name()}
	outDir := r.Config.Emit.OutputDir
	snapshots := r.Write && r.Config.Track.Enabled

	if err := stage("elaborate", func() error {
		d, err := module.Elaborate(top, r.Policy())
		report.Design = d
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage("facts", func() error {
		report.Tables = facts.BuildTables(report.Design)
		if !snapshots {
			return nil
		}
		prev, ok, err := loadSnapshot(outDir, top.Name())
		if err != nil {
			recordPipelineErr(err)
			return nil
		}
		if !ok {
			return nil
		}
		delta := facts.ComputeDelta(prev, report.Tables)
		report.Delta = &delta
		if delta.Empty() {
			return nil
		}
		graph := facts.BuildDependentsGraph(report.Tables)
		for _, name := range facts.ChangedModules(delta, report.Tables) {
			impact := facts.ComputeImpact(name, graph)
			report.Impact = append(report.Impact, impact)
			log.WithFields(logrus.Fields{
				"module":   name,
				"impacted": strings.Join(impact.Flatten(), ","),
			}).Info("module changed since last run")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage("validate", func() error {
		if err := r.schema.Validate(report.Tables); err != nil {
			return err
		}
		if report.Delta != nil {
			return r.schema.ValidateDelta(*report.Delta)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage("lint", func() error {
		engine, err := r.lintEngine(ctx)
		if err != nil {
			return err
		}
		input := policy.NewInput(report.Tables, r.Config)
		res, cached, err := r.evaluate(ctx, engine, input, top.Name())
		if err != nil {
			return err
		}
		if cached {
			status = "cached"
		}
		report.Lint = res
		report.LintCached = cached
		for _, v := range res.Violations {
			r.metrics.violations.WithLabelValues(v.Severity).Inc()
			entry := log.WithFields(logrus.Fields{"module": v.Module, "rule": v.Rule, "name": v.Name})
			switch v.Severity {
			case "error":
				entry.Error(v.Message)
			case "warning":
				entry.Warn(v.Message)
			default:
				entry.Info(v.Message)
			}
		}
		if res.HasErrors() {
			recordPipelineErr(fmt.Errorf("lint: %d error(s)", res.Summary.Errors))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := stage("emit", func() error {
		opts := r.Options()
		opts.Observe = func(name string, start time.Time, elapsed time.Duration, err error) {
			status := ""
			if err != nil {
				status = "error"
			}
			timing.RecordModule("emit", name, status, start, elapsed)
		}
		out, err := codegen.EmitDesign(ctx, report.Design, opts)
		if err != nil {
			return err
		}
		report.Output = out
		r.metrics.modulesEmitted.Add(float64(len(out.Modules)))
		for _, m := range out.Modules {
			log.WithFields(logrus.Fields{"module": m.Name, "hash": fmt.Sprintf("%016x", m.Hash)}).Debug("emitted")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if r.Write {
		if err := stage("write", func() error {
			files, err := r.write(report.Output)
			report.Files = files
			return err
		}); err != nil {
			return report, err
		}
	}

	if r.Write && r.Config.Track.Enabled {
		_ = stage("track", func() error {
			warnings, err := manifest.Track(r.trackPath(), report.Design, report.Output)
			report.Warnings = warnings
			for _, w := range warnings {
				log.WithField("module", w.Module).Warn(w.String())
			}
			if err != nil {
				recordPipelineErr(err)
			}
			if err := saveSnapshot(outDir, top.Name(), report.Tables); err != nil {
				recordPipelineErr(err)
			}
			return nil
		})
	}

	timing.RecordStage("total", runStart, time.Since(runStart), "")
	log.WithField("duration_ms", durationToMS(time.Since(runStart))).Info("run complete")

	if len(pipelineErrs) > 0 {
		return report, fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return report, nil
}

// evaluate returns the stored lint result when the input is unchanged,
// otherwise runs the engine and stores the result.
func (r *Runner) evaluate(ctx context.Context, engine *policy.Engine, input policy.Input, top string) (*policy.Result, bool, error) {
	useCache := r.Write && !r.NoCache
	dir := r.Config.Emit.OutputDir
	var hash string
	if useCache {
		h, err := lintInputHash(input, engine.Fingerprint())
		if err != nil {
			return nil, false, err
		}
		hash = h
		if res, ok, err := loadLintCache(dir, top, hash); err != nil {
			r.Log.WithError(err).Warn("lint cache ignored")
		} else if ok {
			return res, true, nil
		}
	}
	res, err := engine.Evaluate(ctx, input)
	if err != nil {
		return nil, false, err
	}
	if useCache {
		if err := saveLintCache(dir, top, hash, res); err != nil {
			r.Log.WithError(err).Warn("lint cache not saved")
		}
	}
	return res, false, nil
}

func (r *Runner) write(out *codegen.Output) ([]string, error) {
	dir := r.Config.Emit.OutputDir
	ext := r.Config.Emit.Extension
	if r.splitFiles() {
		return out.WriteDir(dir, ext)
	}
	if ext == "" {
		ext = ".sv"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, out.Top+ext)
	if err := os.WriteFile(path, []byte(out.Text()), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return []string{path}, nil
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}
