package balancer

import "errors"

var (
	// ErrInvalidConfig is returned for construction parameters that can never
	// produce a valid dispatch, and for unknown policy names.
	ErrInvalidConfig = errors.New("balancer: invalid configuration")

	// ErrNilTask marks a nil entry in the task list. The task is recorded as a
	// start failure.
	ErrNilTask = errors.New("balancer: nil task")
)
