package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/sweepgrid/sweepgrid/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "sweepgrid"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("sweep starting")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("scheduler")

	// Add sweep fields
	logger = logger.WithSweepID("sweep-123").WithIndex([]int{2, 0})

	// Log at different levels
	logger.Debug("dispatching experiment")
	logger.Info("experiment completed")

	// Log with error
	err := fmt.Errorf("experiment diverged")
	logger.WithError(err).Warn("experiment failed")

	// Output varies, no output specified
}

// Example_events demonstrates the event publishing system.
func Example_events() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false // synchronous for the example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to failure events only
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("event: %s\n", event.Type)
	}, telemetry.FilterByType(telemetry.EventTypeExperimentFailed))

	_ = tel.Events.PublishExperimentFailed("sweep-123", []int{1}, "diverged")
	_ = tel.Events.PublishExperimentCompleted("sweep-123", []int{2}, 1500*time.Millisecond)

	// Subscribers run asynchronously; give them a beat in examples only.
	time.Sleep(10 * time.Millisecond)

	// Output varies, no output specified
}
