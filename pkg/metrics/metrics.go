// Package metrics exposes Prometheus metrics for the cell engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the engine metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "gorbie").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for compute duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the engine metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace: "gorbie",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Engine collects metrics for computed-cell workers. It implements
// reactive.Observer, so it plugs straight into a notebook:
//
//	eng := metrics.NewEngine(metrics.WithRegistry(reg))
//	nb := notebook.New(notebook.WithObserver(eng))
type Engine struct {
	computationsTotal *prometheus.CounterVec
	computeDuration   *prometheus.HistogramVec
	workersInFlight   prometheus.Gauge
	generation        *prometheus.GaugeVec
	repaintsTotal     prometheus.Counter
}

// NewEngine creates the engine metrics and registers them with the
// configured registry.
func NewEngine(opts ...Option) *Engine {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Engine{
		computationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cell_computations_total",
			Help:        "Total cell computations by cell and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"cell", "outcome"}),

		computeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cell_compute_duration_seconds",
			Help:        "Cell computation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"cell"}),

		workersInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cell_workers_in_flight",
			Help:        "Number of cell computations currently running",
			ConstLabels: config.ConstLabels,
		}),

		generation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cell_generation",
			Help:        "Current generation of each computed cell",
			ConstLabels: config.ConstLabels,
		}, []string{"cell"}),

		repaintsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "repaint_requests_total",
			Help:        "Total repaint requests issued to the host",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// JobStarted implements reactive.Observer.
func (e *Engine) JobStarted(cell string) {
	e.workersInFlight.Inc()
}

// JobFinished implements reactive.Observer.
func (e *Engine) JobFinished(cell string, elapsed time.Duration, err error) {
	e.workersInFlight.Dec()
	e.computeDuration.WithLabelValues(cell).Observe(elapsed.Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.computationsTotal.WithLabelValues(cell, outcome).Inc()
}

// GenerationAdvanced implements reactive.Observer.
func (e *Engine) GenerationAdvanced(cell string, gen uint64) {
	e.generation.WithLabelValues(cell).Set(float64(gen))
}

// RepaintRequested implements reactive.Observer.
func (e *Engine) RepaintRequested() {
	e.repaintsTotal.Inc()
}
