package runner

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// PipeSpawner runs workers as in-process goroutines connected over io.Pipe
// pairs. It serves single-process setups and tests, where spawning separate
// worker binaries would be overkill.
type PipeSpawner struct {
	Fn  ExperimentFunc
	Log zerolog.Logger
}

// Spawn starts one in-process worker goroutine.
func (s *PipeSpawner) Spawn(ctx context.Context, id int) (*Conn, error) {
	jobReader, jobWriter := io.Pipe()
	resultReader, resultWriter := io.Pipe()

	worker := NewWorker(id, jobReader, resultWriter, s.Fn, s.Log)
	done := make(chan error, 1)
	go func() {
		err := worker.Serve(ctx)
		_ = resultWriter.Close()
		_ = jobReader.Close()
		done <- err
	}()

	return &Conn{
		ID:     id,
		Stdin:  jobWriter,
		Stdout: resultReader,
		Wait:   func() error { return <-done },
	}, nil
}
