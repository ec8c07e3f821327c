package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/runner/protocol"
)

// ExperimentFunc is one experiment: it receives the resolved keyword
// arguments of a cell and returns its named results.
type ExperimentFunc func(ctx context.Context, kwargs map[string]interface{}) (map[string]interface{}, error)

// Worker executes jobs received on its input stream and reports results on
// its output stream.
type Worker struct {
	id  int
	enc *protocol.Encoder
	dec *protocol.Decoder
	fn  ExperimentFunc
	log zerolog.Logger
}

// NewWorker creates a worker that reads jobs from in and writes results to
// out.
func NewWorker(id int, in io.Reader, out io.Writer, fn ExperimentFunc, log zerolog.Logger) *Worker {
	return &Worker{
		id:  id,
		enc: protocol.NewEncoder(out),
		dec: protocol.NewDecoder(in),
		fn:  fn,
		log: log.With().Int("worker_id", id).Logger(),
	}
}

// Serve announces readiness and answers jobs until STOP arrives or the input
// closes. Job failures are reported as RESULT messages, not as serve errors;
// Serve only fails on protocol or stream problems.
func (w *Worker) Serve(ctx context.Context) error {
	if err := w.enc.EncodeReady(&protocol.ReadyMessage{
		WorkerID: w.id,
		PID:      os.Getpid(),
	}); err != nil {
		return fmt.Errorf("failed to announce readiness: %w", err)
	}
	w.log.Debug().Msg("worker ready")

	for {
		msg, err := w.dec.Decode()
		if errors.Is(err, io.EOF) {
			w.log.Debug().Msg("input closed, worker exiting")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		switch msg.Type {
		case protocol.MessageTypeStop:
			var stop protocol.StopMessage
			_ = protocol.ParseData(msg.Data, &stop)
			w.log.Debug().Str("reason", stop.Reason).Msg("stop received, worker exiting")
			return nil

		case protocol.MessageTypeJob:
			var job protocol.JobMessage
			if err := protocol.ParseData(msg.Data, &job); err != nil {
				return fmt.Errorf("failed to parse job: %w", err)
			}
			result := w.execute(ctx, &job)
			if err := w.enc.EncodeResult(result); err != nil {
				return fmt.Errorf("failed to send result: %w", err)
			}

		default:
			return fmt.Errorf("unexpected message type: %s", msg.Type)
		}
	}
}

// execute runs one job under a failure boundary: an error return or a panic
// marks the cell failed instead of killing the worker.
func (w *Worker) execute(ctx context.Context, job *protocol.JobMessage) *protocol.ResultMessage {
	result := &protocol.ResultMessage{
		ID:    job.ID,
		Index: job.Index,
	}

	kwargs, err := protocol.DecodeKwargs(job.Kwargs)
	if err != nil {
		result.Status = grid.StatusFailed
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	returns, err := w.runExperiment(ctx, kwargs)
	result.Duration = time.Since(start).Seconds()

	if err != nil {
		w.log.Warn().Str("job_id", job.ID).Ints("index", job.Index).Err(err).Msg("experiment failed")
		result.Status = grid.StatusFailed
		result.Error = err.Error()
		return result
	}

	encoded, err := protocol.EncodeKwargs(returns)
	if err != nil {
		result.Status = grid.StatusFailed
		result.Error = err.Error()
		return result
	}
	result.Status = grid.StatusCompleted
	result.Returns = encoded
	return result
}

func (w *Worker) runExperiment(ctx context.Context, kwargs map[string]interface{}) (returns map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("experiment panicked: %v", r)
		}
	}()
	return w.fn(ctx, kwargs)
}
