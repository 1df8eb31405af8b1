// Package instrument exports engine diagnostics to Prometheus and
// OpenTelemetry. The metrics side consumes the debug record stream as a
// synapse.Sink; the tracing side wraps effect bodies and resource fetchers
// in spans.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

// MetricsConfig configures the Prometheus metrics sink.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "synapse").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for retry delays.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics sink.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the retry delay histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "synapse",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// MetricsSink is a synapse.Sink that turns the diagnostic record stream
// into Prometheus metrics. Register it (alone or inside a MultiSink) and
// enable debug mode:
//
//	sink := instrument.NewMetricsSink(instrument.WithNamespace("myapp"))
//	synapse.SetSink(sink)
//	synapse.SetDebugMode(true)
//
//	http.Handle("/metrics", promhttp.Handler())
//
// Labels stay low-cardinality on purpose: signal and effect names are not
// labels, only operation outcomes are.
type MetricsSink struct {
	signalReads     prometheus.Counter
	signalWrites    *prometheus.CounterVec
	effectRuns      prometheus.Counter
	effectRetries   prometheus.Counter
	effectExhausted prometheus.Counter
	effectDisposals prometheus.Counter
	retryDelay      prometheus.Histogram
	resourceFetches prometheus.Counter
}

// NewMetricsSink creates the metric set on the configured registry.
func NewMetricsSink(opts ...MetricsOption) *MetricsSink {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &MetricsSink{
		signalReads: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_reads_total",
			Help:        "Total number of signal reads",
			ConstLabels: config.ConstLabels,
		}),

		signalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_writes_total",
			Help:        "Total number of signal writes by change outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of successful effect runs",
			ConstLabels: config.ConstLabels,
		}),

		effectRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_retries_total",
			Help:        "Total number of scheduled effect retries",
			ConstLabels: config.ConstLabels,
		}),

		effectExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_retries_exhausted_total",
			Help:        "Total number of effects that spent their retry budget",
			ConstLabels: config.ConstLabels,
		}),

		effectDisposals: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_disposals_total",
			Help:        "Total number of effect disposals",
			ConstLabels: config.ConstLabels,
		}),

		retryDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_retry_delay_seconds",
			Help:        "Back-off delay of scheduled effect retries in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		resourceFetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resource_fetches_total",
			Help:        "Total number of resource fetches started",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Emit implements synapse.Sink.
func (m *MetricsSink) Emit(r synapse.Record) {
	switch r.Op {
	case synapse.OpRead:
		m.signalReads.Inc()
	case synapse.OpWrite:
		result := "suppressed"
		if r.Changed {
			result = "changed"
		}
		m.signalWrites.WithLabelValues(result).Inc()
	case synapse.OpEffectRun:
		m.effectRuns.Inc()
	case synapse.OpEffectRetry:
		m.effectRetries.Inc()
		m.retryDelay.Observe(r.Delay.Seconds())
	case synapse.OpEffectExhausted:
		m.effectExhausted.Inc()
	case synapse.OpEffectDispose:
		m.effectDisposals.Inc()
	case synapse.OpResourceFetch:
		m.resourceFetches.Inc()
	}
}
