package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for sweep execution.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Experiment metrics
	experimentsExecuted *prometheus.CounterVec
	experimentDuration  *prometheus.HistogramVec
	jobsDispatched      prometheus.Counter

	// Grid metrics
	cellsByStatus *prometheus.GaugeVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// System metrics
	activeWorkers prometheus.Gauge
	queuedJobs    prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Run metrics
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of sweep runs started",
			},
			[]string{"mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of sweep runs completed",
			},
			[]string{"mode"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of whole sweep runs in seconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),

		// Experiment metrics
		experimentsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "experiments_executed_total",
				Help:      "Total number of experiments executed",
			},
			[]string{"status"},
		),
		experimentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "experiment_duration_seconds",
				Help:      "Duration of single experiments in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		jobsDispatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_dispatched_total",
				Help:      "Total number of jobs dispatched to workers",
			},
		),

		// Grid metrics
		cellsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cells_by_status",
				Help:      "Current number of grid cells per status",
			},
			[]string{"status"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		// System metrics
		activeWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workers",
				Help:      "Current number of busy workers",
			},
		),
		queuedJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_jobs",
				Help:      "Current number of jobs waiting for a worker",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.experimentsExecuted,
		m.experimentDuration,
		m.jobsDispatched,
		m.cellsByStatus,
		m.errorsByClass,
		m.activeWorkers,
		m.queuedJobs,
	)

	return m, nil
}

// NopMetrics returns a disabled metrics instance whose record methods are
// no-ops.
func NopMetrics() *Metrics {
	return &Metrics{}
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(mode string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
}

// RecordRunCompleted records a completed run with its duration.
func (m *Metrics) RecordRunCompleted(mode string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(mode).Inc()
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// Experiment Metrics

// RecordExperiment records one finished experiment with its status symbol
// and duration.
func (m *Metrics) RecordExperiment(status string, duration time.Duration) {
	if m.experimentsExecuted == nil {
		return
	}
	m.experimentsExecuted.WithLabelValues(status).Inc()
	m.experimentDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDispatch records one job handed to a worker.
func (m *Metrics) RecordDispatch() {
	if m.jobsDispatched == nil {
		return
	}
	m.jobsDispatched.Inc()
}

// Grid Metrics

// SetCellCount sets the current number of cells with the given status.
func (m *Metrics) SetCellCount(status string, count float64) {
	if m.cellsByStatus == nil {
		return
	}
	m.cellsByStatus.WithLabelValues(status).Set(count)
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// System Metrics

// SetActiveWorkers sets the current number of busy workers.
func (m *Metrics) SetActiveWorkers(count float64) {
	if m.activeWorkers == nil {
		return
	}
	m.activeWorkers.Set(count)
}

// SetQueuedJobs sets the current number of queued jobs.
func (m *Metrics) SetQueuedJobs(count float64) {
	if m.queuedJobs == nil {
		return
	}
	m.queuedJobs.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
