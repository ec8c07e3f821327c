package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/runner"
	"github.com/sweepgrid/sweepgrid/pkg/store"
	"github.com/sweepgrid/sweepgrid/pkg/telemetry"
)

// Kwargs is the resolved keyword-argument map for one cell.
type Kwargs = map[string]interface{}

// Results maps declared return-value names to values.
type Results = map[string]interface{}

// ExperimentFunc is the user function executed once per selected cell. Any
// error return or panic marks the cell Failed; it never aborts the run.
type ExperimentFunc func(ctx context.Context, kwargs Kwargs) (Results, error)

// Sweep drives experiment execution over a grid.
type Sweep struct {
	id   string
	grid *grid.Grid
	fn   ExperimentFunc

	savePath string
	autoSave bool

	log     *telemetry.Logger
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher
	tracer  *telemetry.Tracer
}

// Option configures a Sweep.
type Option func(*Sweep)

// WithSavePath sets the dataset path used by Save and auto-saving.
func WithSavePath(path string) Option {
	return func(s *Sweep) { s.savePath = path }
}

// WithAutoSave flushes the whole grid to the save path after every finished
// job. Trades throughput for crash-resilience of partial progress.
func WithAutoSave() Option {
	return func(s *Sweep) { s.autoSave = true }
}

// WithLogger sets the logger.
func WithLogger(log *telemetry.Logger) Option {
	return func(s *Sweep) { s.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sweep) { s.metrics = m }
}

// WithEvents sets the event publisher.
func WithEvents(ep *telemetry.EventPublisher) Option {
	return func(s *Sweep) { s.events = ep }
}

// WithTracer enables tracing: one span per run, one child span per
// experiment.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Sweep) { s.tracer = t }
}

// New creates a sweep over an existing grid.
func New(g *grid.Grid, fn ExperimentFunc, opts ...Option) (*Sweep, error) {
	if g == nil {
		return nil, grid.NewConfigurationError("a grid is required")
	}
	if fn == nil {
		return nil, grid.NewConfigurationError("an experiment function is required")
	}
	s := &Sweep{
		id:      uuid.NewString(),
		grid:    g,
		fn:      fn,
		log:     telemetry.NopLogger(),
		metrics: telemetry.NopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithSweepID(s.id)
	if s.autoSave && s.savePath == "" {
		return nil, grid.NewConfigurationError("auto-save requires a save path")
	}
	return s, nil
}

// Resume creates a sweep from a previously saved dataset, validating the
// loaded axes and return values against the declared configuration.
func Resume(ctx context.Context, path string, parameters []grid.Parameter, returnValues []grid.ReturnValue, fn ExperimentFunc, opts ...Option) (*Sweep, error) {
	snap, err := store.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	g, err := grid.Restore(snap, parameters, returnValues)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithSavePath(path)}, opts...)
	return New(g, fn, opts...)
}

// ID returns the sweep's identifier, used in logs and events.
func (s *Sweep) ID() string { return s.id }

// Grid returns the underlying grid for configuration and inspection.
func (s *Sweep) Grid() *grid.Grid { return s.grid }

// Save flushes the whole grid to the configured save path, replacing prior
// content.
func (s *Sweep) Save(ctx context.Context) error {
	if s.savePath == "" {
		return grid.NewConfigurationError("no save path configured")
	}
	return store.Save(ctx, s.grid.Snapshot(), s.savePath, true)
}

// Run executes every cell matching the status filter sequentially, in
// priority order. The default filter is NotStarted. Experiment failures are
// recorded per-cell and never returned; Run only fails on selection,
// persistence, or context errors.
func (s *Sweep) Run(ctx context.Context, statuses ...grid.Status) error {
	if len(statuses) == 0 {
		statuses = []grid.Status{grid.StatusNotStarted}
	}
	indices, err := s.grid.SelectIndices(statuses...)
	if err != nil {
		return err
	}
	indices = s.grid.SortByPriority(indices)

	s.log.Infof("running %d experiments sequentially", len(indices))
	s.metrics.RecordRunStarted("sequential")
	if s.events != nil {
		_ = s.events.PublishRunStarted(s.id, "sequential", len(indices))
	}
	runStart := time.Now()

	runCtx := ctx
	if s.tracer != nil {
		var runSpan trace.Span
		runCtx, runSpan = s.tracer.StartRunSpan(ctx, s.id, "sequential")
		defer runSpan.End()
	}

	for i, index := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}

		kwargs, err := s.grid.KwargsAt(index)
		if err != nil {
			return err
		}

		expCtx := runCtx
		var span trace.Span
		if s.tracer != nil {
			expCtx, span = s.tracer.StartExperimentSpan(runCtx, fmt.Sprintf("job-%d", i+1), index)
		}

		start := time.Now()
		returns, expErr := s.runExperiment(expCtx, kwargs)
		elapsed := time.Since(start)

		if span != nil {
			if expErr != nil {
				telemetry.RecordError(span, expErr)
			} else {
				telemetry.RecordSuccess(span)
			}
			span.End()
		}

		duration := math.NaN()
		if s.grid.TimingEnabled() {
			duration = elapsed.Seconds()
		}

		status := grid.StatusCompleted
		if expErr != nil {
			status = grid.StatusFailed
			returns = nil
			s.log.WithIndex(index).WithError(expErr).Warn("experiment failed")
		}
		if err := s.grid.SetCell(index, status, returns, duration); err != nil {
			return err
		}

		s.metrics.RecordExperiment(string(status), elapsed)
		if s.events != nil {
			if expErr != nil {
				_ = s.events.PublishExperimentFailed(s.id, index, expErr.Error())
			} else {
				_ = s.events.PublishExperimentCompleted(s.id, index, elapsed)
			}
		}

		if s.autoSave {
			if err := s.Save(ctx); err != nil {
				return fmt.Errorf("auto-save failed: %w", err)
			}
		}
	}

	s.metrics.RecordRunCompleted("sequential", time.Since(runStart))
	if s.events != nil {
		_ = s.events.PublishRunCompleted(s.id, "sequential", time.Since(runStart))
	}
	s.updateCellGauges()
	return nil
}

// runExperiment invokes the user function under the failure boundary: a
// panic is converted to an error, which the caller maps to a Failed cell.
func (s *Sweep) runExperiment(ctx context.Context, kwargs Kwargs) (returns Results, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("experiment panicked: %v", r)
		}
	}()
	return s.fn(ctx, kwargs)
}

func (s *Sweep) updateCellGauges() {
	for status, count := range s.grid.CountByStatus() {
		s.metrics.SetCellCount(string(status), float64(count))
	}
}

// workerFn adapts the sweep's experiment function to the runner package.
func (s *Sweep) workerFn() runner.ExperimentFunc {
	return runner.ExperimentFunc(s.fn)
}
