package balancer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/utkarsh5026/balancesim/internal/cpu"
)

// execute runs one task on behalf of worker and reports what happened.
// Failures, panics included, are captured in the Outcome and never reach
// the caller.
func (e *engine) execute(ctx context.Context, worker, index int, task Task) Outcome {
	if e.cfg.pinCPU {
		unpin := cpu.Pin(worker)
		defer unpin()
	}
	if e.cfg.beforeTaskStart != nil {
		e.cfg.beforeTaskStart(worker, index)
	}

	start := time.Now()
	value, err := executeWithRecovery(ctx, task)
	return Outcome{
		TaskIndex: index,
		Worker:    worker,
		Success:   err == nil,
		Value:     value,
		Err:       err,
		Duration:  time.Since(start),
	}
}

// executeWithRecovery converts a panic inside the task into an error
// carrying the stack of the panicking goroutine.
func executeWithRecovery(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			value = nil
			err = fmt.Errorf("task panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return task.Execute(ctx)
}
