// Package telemetry provides observability instrumentation for sweepgrid.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified
// system for monitoring sweep execution.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with stdout/OTLP exporters
//  3. Metrics Collection - Prometheus metrics for experiment throughput
//  4. Event Publishing - Async event system for sweep lifecycle notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "sweepgrid"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with sweep fields:
//
//	logger := tel.Logger.NewComponentLogger("scheduler")
//	logger = logger.WithSweepID("sweep-123").WithIndex([]int{2, 0})
//	logger.Info("experiment dispatched")
//	logger.WithError(err).Warn("experiment failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Metrics
//
// Counters and histograms cover runs, individual experiments, dispatches,
// and per-status cell gauges; an optional HTTP endpoint serves them in
// Prometheus format.
//
// # Events
//
// The event publisher emits run and experiment lifecycle events to
// registered subscribers, filtered by level, type, or sweep id.
package telemetry
