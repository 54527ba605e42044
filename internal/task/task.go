package task

import (
	"context"
	"encoding/json"

	"github.com/aescanero/dago-node-template/internal/inventory"
	"go.uber.org/zap"
)

// Task is the per-host execution context handed to a task function
type Task struct {
	Name   string
	Host   *inventory.Host
	Logger *zap.Logger
}

// New creates a task for host. A nil logger is replaced by a no-op logger.
func New(name string, host *inventory.Host, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		Name:   name,
		Host:   host,
		Logger: logger,
	}
}

// Func is a unit of work run once per host
type Func func(ctx context.Context, t *Task) (*Result, error)

// Result pairs a host with the output of a task run against it
type Result struct {
	host   *inventory.Host
	result string
	err    error
}

// NewResult creates a successful result
func NewResult(host *inventory.Host, result string) *Result {
	return &Result{host: host, result: result}
}

// NewFailedResult creates a result for a task that returned err
func NewFailedResult(host *inventory.Host, err error) *Result {
	return &Result{host: host, err: err}
}

// Host returns the host the task ran against
func (r *Result) Host() *inventory.Host {
	return r.host
}

// Result returns the task output
func (r *Result) Result() string {
	return r.result
}

// Failed reports whether the task returned an error
func (r *Result) Failed() bool {
	return r.err != nil
}

// Err returns the task error, if any
func (r *Result) Err() error {
	return r.err
}

type resultJSON struct {
	Host   string `json:"host"`
	Result string `json:"result"`
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Result: r.result,
		Failed: r.Failed(),
	}
	if r.host != nil {
		out.Host = r.host.Name
	}
	if r.err != nil {
		out.Error = r.err.Error()
	}
	return json.Marshal(out)
}
