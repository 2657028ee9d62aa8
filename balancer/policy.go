package balancer

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
)

// Policy assigns a batch of tasks to workers and runs them.
type Policy interface {
	Name() string
	Run(ctx context.Context, tasks []Task) (*Report, error)
}

// Policy names accepted by New.
const (
	RoundRobinName  = "round-robin"
	DistributedName = "distributed"
	AdaptiveName    = "adaptive"
	PredictiveName  = "predictive"
	ReactiveName    = "reactive"
)

// ValidPolicies lists the names accepted by New.
var ValidPolicies = []string{
	RoundRobinName,
	DistributedName,
	AdaptiveName,
	PredictiveName,
	ReactiveName,
}

// IsValidPolicy reports whether name is accepted by New.
func IsValidPolicy(name string) bool {
	return slices.Contains(ValidPolicies, name)
}

// New builds the policy registered under name.
func New(name string, numWorkers int, opts ...Option) (Policy, error) {
	var (
		p   Policy
		err error
	)
	switch name {
	case RoundRobinName:
		p, err = NewRoundRobin(numWorkers, opts...)
	case DistributedName:
		p, err = NewDistributed(numWorkers, opts...)
	case AdaptiveName:
		p, err = NewAdaptive(numWorkers, opts...)
	case PredictiveName:
		p, err = NewPredictive(numWorkers, opts...)
	case ReactiveName:
		p, err = NewReactive(numWorkers, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown policy %q, valid: %s",
			ErrInvalidConfig, name, strings.Join(ValidPolicies, ", "))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// argmin returns the index of the smallest value, the lowest index on ties.
func argmin[T int | float64](values []T) int {
	best := 0
	for i, v := range values[1:] {
		if v < values[best] {
			best = i + 1
		}
	}
	return best
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
