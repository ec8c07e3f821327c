package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/runner"
	"github.com/sweepgrid/sweepgrid/pkg/runner/protocol"
	"github.com/sweepgrid/sweepgrid/pkg/telemetry"
)

// Role selects a participant's side of a distributed run. It is always
// passed explicitly, never read from ambient environment.
type Role string

const (
	// RoleManager owns the grid, dispatches jobs, and applies results.
	RoleManager Role = "manager"
	// RoleWorker executes jobs received on its input stream.
	RoleWorker Role = "worker"
)

// pollInterval is how long the manager sleeps when no dispatch or result
// application was possible in one loop iteration.
const pollInterval = 50 * time.Millisecond

// DistributedOptions configures RunDistributed.
type DistributedOptions struct {
	// Workers is the number of worker processes the manager spawns. The
	// run has Workers+1 participants; fewer than 2 total is a
	// configuration error.
	Workers int

	// Spawner starts the workers. Required for the manager role.
	Spawner runner.Spawner

	// WorkerID identifies this participant in the worker role.
	WorkerID int

	// Input and Output are the worker's message streams. They default to
	// stdin and stdout, matching ExecSpawner's wiring.
	Input  io.Reader
	Output io.Writer

	// Statuses is the cell selection filter; default NotStarted.
	Statuses []grid.Status
}

// RunDistributed executes the sweep across a fixed pool of workers. The
// manager stays the grid's sole writer; workers are pure functions of their
// kwargs. Each selected index is dispatched exactly once, with no retry and
// no per-job timeout.
func (s *Sweep) RunDistributed(ctx context.Context, role Role, opts DistributedOptions) error {
	switch role {
	case RoleWorker:
		return s.runWorker(ctx, opts)
	case RoleManager:
		return s.runManager(ctx, opts)
	default:
		return grid.NewConfigurationError(fmt.Sprintf("unknown role %q", role))
	}
}

func (s *Sweep) runWorker(ctx context.Context, opts DistributedOptions) error {
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	worker := runner.NewWorker(opts.WorkerID, in, out, s.workerFn(), s.log.Zerolog())
	return worker.Serve(ctx)
}

// inFlight tracks one dispatched, unanswered job.
type inFlight struct {
	index    []int
	workerID int
	span     trace.Span
}

func (s *Sweep) runManager(ctx context.Context, opts DistributedOptions) error {
	// 1 manager + at least 1 worker.
	if opts.Workers < 1 {
		return grid.NewConfigurationError(
			fmt.Sprintf("a distributed run needs at least 2 participants, got %d", opts.Workers+1))
	}
	if opts.Spawner == nil {
		return grid.NewConfigurationError("the manager role requires a spawner")
	}
	// Object-kind values have no wire encoding. Fail here, before any worker
	// spawns or any cell runs, rather than mid-run at the first dispatch.
	if names := s.grid.ObjectNames(); len(names) > 0 {
		return grid.NewConfigurationError(fmt.Sprintf(
			"object-kind values cannot travel to workers: %s (use the sequential scheduler)",
			strings.Join(names, ", ")))
	}

	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = []grid.Status{grid.StatusNotStarted}
	}
	indices, err := s.grid.SelectIndices(statuses...)
	if err != nil {
		return err
	}
	queue := s.grid.SortByPriority(indices)

	pool, err := runner.NewPool(ctx, opts.Spawner, opts.Workers, s.log.Zerolog())
	if err != nil {
		return err
	}
	defer pool.Stop("sweep drained")

	s.log.Infof("running %d experiments across %d workers", len(queue), pool.Size())
	s.metrics.RecordRunStarted("distributed")
	if s.events != nil {
		_ = s.events.PublishRunStarted(s.id, "distributed", len(queue))
	}
	runStart := time.Now()

	runCtx := ctx
	if s.tracer != nil {
		var runSpan trace.Span
		runCtx, runSpan = s.tracer.StartRunSpan(ctx, s.id, "distributed")
		defer runSpan.End()
	}

	free := make([]int, 0, pool.Size())
	for id := 1; id <= pool.Size(); id++ {
		free = append(free, id)
	}
	pending := make(map[string]inFlight, pool.Size())
	jobSeq := 0

	for len(queue) > 0 || len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress := false

		// Feed every free worker while jobs remain.
		for len(free) > 0 && len(queue) > 0 {
			index := queue[0]
			queue = queue[1:]
			workerID := free[0]
			free = free[1:]

			jobSeq++
			jobID := fmt.Sprintf("job-%d", jobSeq)
			var span trace.Span
			if s.tracer != nil {
				_, span = s.tracer.StartExperimentSpan(runCtx, jobID, index)
			}
			if err := s.dispatch(pool, workerID, jobID, index); err != nil {
				if span != nil {
					span.End()
				}
				return err
			}
			pending[jobID] = inFlight{index: index, workerID: workerID, span: span}
			progress = true
		}
		s.metrics.SetQueuedJobs(float64(len(queue)))
		s.metrics.SetActiveWorkers(float64(len(pending)))

		// Collect every finished result that is already waiting; the
		// drain-then-apply shape keeps result application separate from
		// the channel poll.
		for {
			result, ok := pool.TryRecv()
			if !ok {
				break
			}
			job, known := pending[result.ID]
			if !known {
				s.log.Warnf("discarding result for unknown job %s", result.ID)
				continue
			}
			delete(pending, result.ID)
			applyErr := s.applyResult(ctx, job.index, result)
			if job.span != nil {
				switch {
				case applyErr != nil:
					telemetry.RecordError(job.span, applyErr)
				case result.Status == grid.StatusFailed:
					telemetry.RecordError(job.span, errors.New(result.Error))
				default:
					telemetry.RecordSuccess(job.span)
				}
				job.span.End()
			}
			if applyErr != nil {
				return applyErr
			}
			free = append(free, job.workerID)
			progress = true
		}

		// A broken worker stream is logged; the job it held stays pending
		// forever, matching the no-crash-recovery contract.
		if failure, ok := pool.TryFailure(); ok {
			s.log.WithWorkerID(failure.WorkerID).WithError(failure.Err).Error("worker stream broke")
			if s.events != nil {
				_ = s.events.PublishWorkerLost(s.id, failure.WorkerID, failure.Err.Error())
			}
		}

		if !progress {
			time.Sleep(pollInterval)
		}
	}

	pool.Stop("sweep drained")
	s.metrics.RecordRunCompleted("distributed", time.Since(runStart))
	if s.events != nil {
		_ = s.events.PublishRunCompleted(s.id, "distributed", time.Since(runStart))
	}
	s.updateCellGauges()
	return nil
}

// dispatch resolves one cell's kwargs and sends them to a worker.
func (s *Sweep) dispatch(pool *runner.Pool, workerID int, jobID string, index []int) error {
	kwargs, err := s.grid.KwargsAt(index)
	if err != nil {
		return err
	}
	encoded, err := protocol.EncodeKwargs(kwargs)
	if err != nil {
		return err
	}
	if err := pool.Dispatch(workerID, &protocol.JobMessage{ID: jobID, Index: index, Kwargs: encoded}); err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", jobID, err)
	}
	s.metrics.RecordDispatch()
	if s.events != nil {
		_ = s.events.PublishJobDispatched(s.id, jobID, index, workerID)
	}
	s.log.WithIndex(index).WithWorkerID(workerID).Debugf("dispatched %s", jobID)
	return nil
}

// applyResult is the only place worker outcomes touch the grid.
func (s *Sweep) applyResult(ctx context.Context, index []int, result *protocol.ResultMessage) error {
	returns, err := protocol.DecodeKwargs(result.Returns)
	if err != nil {
		return err
	}

	duration := math.NaN()
	if s.grid.TimingEnabled() {
		duration = result.Duration
	}
	if err := s.grid.SetCell(index, result.Status, returns, duration); err != nil {
		return err
	}

	elapsed := time.Duration(result.Duration * float64(time.Second))
	s.metrics.RecordExperiment(string(result.Status), elapsed)
	if result.Status == grid.StatusFailed {
		s.log.WithIndex(index).Warnf("experiment failed: %s", result.Error)
		if s.events != nil {
			_ = s.events.PublishExperimentFailed(s.id, index, result.Error)
		}
	} else if s.events != nil {
		_ = s.events.PublishExperimentCompleted(s.id, index, elapsed)
	}

	if s.autoSave {
		if err := s.Save(ctx); err != nil {
			return fmt.Errorf("auto-save failed: %w", err)
		}
	}
	return nil
}
