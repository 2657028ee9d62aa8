package cluster

import "errors"

var (
	// ErrSaturated is returned when a server is at capacity. No latency is
	// simulated for a rejected request.
	ErrSaturated = errors.New("server saturated, request rejected")

	// ErrServerNotFound is returned by Route for an out-of-range server id.
	ErrServerNotFound = errors.New("server not found")

	// ErrInvalidConfig reports construction parameters that cannot work.
	ErrInvalidConfig = errors.New("invalid cluster configuration")
)
