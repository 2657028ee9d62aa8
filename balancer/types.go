package balancer

import (
	"context"
	"time"
)

// Task is a unit of work dispatched to a worker. Execute runs on the
// worker's goroutine; a returned error or a panic marks the task failed.
type Task interface {
	Execute(ctx context.Context) (any, error)
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context) (any, error)

func (f TaskFunc) Execute(ctx context.Context) (any, error) { return f(ctx) }

// Weighted is implemented by tasks that declare their expected cost.
// Policies that account load use it before any caller supplied weight.
type Weighted interface {
	EstimatedWeight() float64
}

// Named is implemented by tasks that carry a descriptive name. The name
// keys the weight table given with WithWeights.
type Named interface {
	TaskName() string
}

type namedTask struct {
	name   string
	weight float64
	fn     TaskFunc
}

// NewTask wraps fn as a Task that is both Named and Weighted.
// A weight <= 0 means no declared weight.
func NewTask(name string, weight float64, fn TaskFunc) Task {
	return &namedTask{name: name, weight: weight, fn: fn}
}

func (t *namedTask) Execute(ctx context.Context) (any, error) { return t.fn(ctx) }

func (t *namedTask) TaskName() string { return t.name }

func (t *namedTask) EstimatedWeight() float64 { return t.weight }

// Status is the fate of a task at assignment time.
type Status int

const (
	// Dispatched tasks were handed to a worker.
	Dispatched Status = iota
	// Rejected tasks were turned away by the policy.
	Rejected
	// StartFailed tasks had a worker picked but could not be started.
	StartFailed
)

func (s Status) String() string {
	switch s {
	case Dispatched:
		return "dispatched"
	case Rejected:
		return "rejected"
	case StartFailed:
		return "start-failed"
	default:
		return "unknown"
	}
}

// Assignment is one entry of the trace: the decision taken for a task.
// Worker is -1 when no worker was chosen.
type Assignment struct {
	TaskIndex   int
	Worker      int
	Strategy    string
	Estimate    float64
	HasEstimate bool
	Status      Status
	Reason      string
}

// Outcome is what the worker harness recorded for one executed task.
type Outcome struct {
	TaskIndex int
	Worker    int
	Success   bool
	Value     any
	Err       error
	Duration  time.Duration
}
