package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	modulesEmitted prometheus.Counter
	violations     *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		modulesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtlgen_modules_emitted_total",
			Help: "Module definitions rendered.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtlgen_lint_violations_total",
			Help: "Lint violations by severity.",
		}, []string{"severity"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtlgen_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"stage"}),
	}
	reg.MustRegister(m.modulesEmitted, m.violations, m.stageDuration)
	return m
}

// writeMetrics dumps the registry in the node-exporter textfile format.
func (r *Runner) writeMetrics() error {
	path := r.Config.Telemetry.MetricsPath
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.Registry)
}
