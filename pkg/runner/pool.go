package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
	"github.com/sweepgrid/sweepgrid/pkg/runner/protocol"
)

// Conn is one spawned worker's endpoints as seen by the manager.
type Conn struct {
	ID     int
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	// Wait blocks until the worker process has exited. Optional; in-process
	// spawners may leave it nil.
	Wait func() error
}

// Spawner starts worker processes. ExecSpawner runs real OS processes; tests
// use in-process pipe spawners.
type Spawner interface {
	Spawn(ctx context.Context, id int) (*Conn, error)
}

// ExecSpawner spawns workers as OS processes running the given command. The
// worker id is appended to Args via the --worker-id flag.
type ExecSpawner struct {
	Path string
	Args []string
	Env  []string
}

// Spawn starts one worker process wired up via stdin/stdout pipes. The
// worker's stderr passes through to the manager's stderr.
func (s *ExecSpawner) Spawn(ctx context.Context, id int) (*Conn, error) {
	args := append(append([]string(nil), s.Args...), "--worker-id", fmt.Sprint(id))
	cmd := exec.CommandContext(ctx, s.Path, args...)
	if s.Env != nil {
		cmd.Env = s.Env
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %d: %w", id, err)
	}
	return &Conn{ID: id, Stdin: stdin, Stdout: stdout, Wait: cmd.Wait}, nil
}

// WorkerFailure reports a worker whose stream broke outside the normal
// job/result exchange.
type WorkerFailure struct {
	WorkerID int
	Err      error
}

// Pool is the manager's set of live workers. One reader goroutine per worker
// feeds a merged result channel, so the scheduling loop can poll without
// blocking on any single worker.
type Pool struct {
	conns    map[int]*Conn
	encoders map[int]*protocol.Encoder

	results  chan *protocol.ResultMessage
	failures chan WorkerFailure

	log zerolog.Logger
	wg  sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewPool spawns count workers and waits for each one's READY message. The
// startup timeout covers the whole handshake.
func NewPool(ctx context.Context, spawner Spawner, count int, log zerolog.Logger) (*Pool, error) {
	if count < 1 {
		return nil, grid.NewConfigurationError("worker count must be at least 1")
	}

	p := &Pool{
		conns:    make(map[int]*Conn, count),
		encoders: make(map[int]*protocol.Encoder, count),
		results:  make(chan *protocol.ResultMessage, count),
		failures: make(chan WorkerFailure, count),
		log:      log,
	}

	for id := 1; id <= count; id++ {
		conn, err := spawner.Spawn(ctx, id)
		if err != nil {
			p.Stop("spawn failed")
			return nil, fmt.Errorf("failed to spawn worker %d: %w", id, err)
		}
		p.conns[id] = conn
		p.encoders[id] = protocol.NewEncoder(conn.Stdin)

		p.wg.Add(1)
		go p.read(conn)
	}

	return p, nil
}

// read is the per-worker reader goroutine. It consumes the READY handshake,
// then forwards results until the stream ends.
func (p *Pool) read(conn *Conn) {
	defer p.wg.Done()

	dec := protocol.NewDecoder(conn.Stdout)
	ready, err := dec.DecodeReady()
	if err != nil {
		p.failures <- WorkerFailure{WorkerID: conn.ID, Err: fmt.Errorf("handshake failed: %w", err)}
		return
	}
	p.log.Debug().Int("worker_id", conn.ID).Int("pid", ready.PID).Msg("worker ready")

	for {
		result, err := dec.DecodeResult()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			p.failures <- WorkerFailure{WorkerID: conn.ID, Err: err}
			return
		}
		p.results <- result
	}
}

// Size returns the number of spawned workers.
func (p *Pool) Size() int {
	return len(p.conns)
}

// Dispatch sends one job to one worker.
func (p *Pool) Dispatch(workerID int, job *protocol.JobMessage) error {
	enc, ok := p.encoders[workerID]
	if !ok {
		return grid.NewConfigurationError(fmt.Sprintf("unknown worker %d", workerID))
	}
	return enc.EncodeJob(job)
}

// TryRecv returns a finished result if one is waiting, without blocking.
func (p *Pool) TryRecv() (*protocol.ResultMessage, bool) {
	select {
	case result := <-p.results:
		return result, true
	default:
		return nil, false
	}
}

// TryFailure returns a broken worker if one is waiting, without blocking.
func (p *Pool) TryFailure() (WorkerFailure, bool) {
	select {
	case failure := <-p.failures:
		return failure, true
	default:
		return WorkerFailure{}, false
	}
}

// Stop tells every worker to exit, closes their inputs, and waits for the
// reader goroutines and processes to finish. Safe to call more than once.
func (p *Pool) Stop(reason string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	for id, enc := range p.encoders {
		if err := enc.EncodeStop(&protocol.StopMessage{Reason: reason}); err != nil {
			p.log.Debug().Int("worker_id", id).Err(err).Msg("stop message not delivered")
		}
	}
	for _, conn := range p.conns {
		_ = conn.Stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		p.log.Warn().Msg("timed out waiting for worker streams to close")
	}

	for id, conn := range p.conns {
		if conn.Wait != nil {
			if err := conn.Wait(); err != nil {
				p.log.Debug().Int("worker_id", id).Err(err).Msg("worker exited with error")
			}
		}
	}
}
