// Package protocol defines the JSON-over-stdio message protocol between the
// sweep manager and its worker processes.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady indicates the worker is up and waiting for jobs
	MessageTypeReady MessageType = "READY"
	// MessageTypeJob carries one cell's experiment job to a worker
	MessageTypeJob MessageType = "JOB"
	// MessageTypeResult carries a finished job's outcome back to the manager
	MessageTypeResult MessageType = "RESULT"
	// MessageTypeStop tells a worker to exit its serve loop
	MessageTypeStop MessageType = "STOP"
)

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeJob, MessageTypeResult, MessageTypeStop:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Message is the base structure for all protocol messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage is sent once by a worker after startup.
type ReadyMessage struct {
	WorkerID int    `json:"worker_id"`
	PID      int    `json:"pid"`
	Version  string `json:"version,omitempty"`
}

// Value is one kwarg or return value on the wire. Values are string-encoded
// with their kind so NaN and complex numbers survive JSON.
type Value struct {
	Kind grid.Kind `json:"kind"`
	Raw  string    `json:"raw"`
}

// EncodeValue converts a cell value to its wire form.
func EncodeValue(kind grid.Kind, v interface{}) (Value, error) {
	raw, err := grid.EncodeScalar(kind, v)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: kind, Raw: raw}, nil
}

// Decode converts a wire value back to a cell value.
func (v Value) Decode() (interface{}, error) {
	return grid.DecodeScalar(v.Kind, v.Raw)
}

// EncodeKwargs converts a resolved kwarg map to wire form. Each value's kind
// is classified individually.
func EncodeKwargs(kwargs map[string]interface{}) (map[string]Value, error) {
	out := make(map[string]Value, len(kwargs))
	for name, v := range kwargs {
		kind := grid.Classify([]interface{}{v})
		encoded, err := EncodeValue(kind, kind.Coerce(v))
		if err != nil {
			return nil, grid.NewFormatError("kwarg cannot travel to a worker").WithName(name).WithErr(err)
		}
		out[name] = encoded
	}
	return out, nil
}

// DecodeKwargs converts wire kwargs back to a kwarg map.
func DecodeKwargs(kwargs map[string]Value) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(kwargs))
	for name, v := range kwargs {
		decoded, err := v.Decode()
		if err != nil {
			return nil, grid.NewFormatError("invalid kwarg on the wire").WithName(name).WithErr(err)
		}
		out[name] = decoded
	}
	return out, nil
}

// JobMessage carries one cell's experiment to a worker.
type JobMessage struct {
	ID     string           `json:"id"`
	Index  []int            `json:"index"`
	Kwargs map[string]Value `json:"kwargs"`
}

// Validate checks if the job message is valid.
func (j *JobMessage) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if len(j.Index) == 0 {
		return fmt.Errorf("job index is required")
	}
	return nil
}

// ResultMessage carries a finished job's outcome back to the manager.
type ResultMessage struct {
	ID      string           `json:"id"`
	Index   []int            `json:"index"`
	Status  grid.Status      `json:"status"`
	Returns map[string]Value `json:"returns,omitempty"`
	// Duration is the experiment wall time in seconds.
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// Validate checks if the result message is valid.
func (r *ResultMessage) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("result ID is required")
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	return nil
}

// StopMessage tells a worker to exit its serve loop.
type StopMessage struct {
	Reason string `json:"reason,omitempty"`
}
