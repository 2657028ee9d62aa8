// Package algorithms holds the retry backoff strategies used when a
// server-bound task is turned away by a saturated server.
package algorithms

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// maxShift prevents overflow of the 1<<attempt factor.
const maxShift = 62

// BackoffType selects the retry delay algorithm.
type BackoffType int

const (
	// BackoffExponential doubles the delay on every attempt (default).
	BackoffExponential BackoffType = iota
	// BackoffJittered spreads the exponential delay by ±jitterFactor.
	BackoffJittered
	// BackoffDecorrelated picks random(initial, 3*previous) capped at max.
	BackoffDecorrelated
)

var backoffNames = map[BackoffType]string{
	BackoffExponential:  "exponential",
	BackoffJittered:     "jittered",
	BackoffDecorrelated: "decorrelated",
}

func (t BackoffType) String() string {
	if name, ok := backoffNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseBackoff returns the BackoffType named name.
func ParseBackoff(name string) (BackoffType, error) {
	for t, n := range backoffNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown backoff %q", name)
}

// BackoffStrategy computes the wait before the next admission attempt.
// attempt is 0-indexed: 0 is the wait after the first rejection.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
	Reset()
}

// NewBackoffStrategy builds the strategy for backoffType. A nil rng is
// replaced by one seeded from the wall clock.
func NewBackoffStrategy(backoffType BackoffType, initialDelay, maxDelay time.Duration, jitterFactor float64, rng *rand.Rand) BackoffStrategy {
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- jitter only
	}

	switch backoffType {
	case BackoffJittered:
		return &jitteredBackoff{
			initialDelay: initialDelay,
			maxDelay:     maxDelay,
			jitterFactor: clamp(jitterFactor, 0, 1),
			rng:          rng,
		}
	case BackoffDecorrelated:
		return &decorrelatedBackoff{
			initialDelay: initialDelay,
			maxDelay:     maxDelay,
			prevDelay:    initialDelay,
			rng:          rng,
		}
	default:
		return exponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay}
	}
}

type exponentialBackoff struct {
	initialDelay, maxDelay time.Duration
}

func (b exponentialBackoff) NextDelay(attempt int) time.Duration {
	return exponentialDelay(attempt, b.initialDelay, b.maxDelay)
}

func (exponentialBackoff) Reset() {}

// jitteredBackoff multiplies the exponential delay by 1 ± jitterFactor.
type jitteredBackoff struct {
	initialDelay, maxDelay time.Duration
	jitterFactor           float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (b *jitteredBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	base := exponentialDelay(attempt, b.initialDelay, b.maxDelay)

	b.mu.Lock()
	factor := 1.0 + (b.rng.Float64()*2-1)*b.jitterFactor
	b.mu.Unlock()

	return clamp(time.Duration(float64(base)*factor), 0, b.maxDelay)
}

func (b *jitteredBackoff) Reset() {}

// decorrelatedBackoff: sleep = min(max, random(initial, prev*3)).
type decorrelatedBackoff struct {
	initialDelay, maxDelay time.Duration

	mu        sync.Mutex
	prevDelay time.Duration
	rng       *rand.Rand
}

func (b *decorrelatedBackoff) NextDelay(attempt int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if attempt <= 0 {
		b.prevDelay = b.initialDelay
		return b.initialDelay
	}

	upper := min(b.prevDelay*3, b.maxDelay)
	span := upper - b.initialDelay
	if span <= 0 {
		b.prevDelay = b.initialDelay
		return b.initialDelay
	}

	delay := b.initialDelay + time.Duration(b.rng.Int63n(int64(span)))
	b.prevDelay = delay
	return delay
}

func (b *decorrelatedBackoff) Reset() {
	b.mu.Lock()
	b.prevDelay = b.initialDelay
	b.mu.Unlock()
}

func exponentialDelay(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt >= maxShift {
		return maxDelay
	}

	delay := time.Duration(int64(1)<<uint(attempt)) * initialDelay
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}

func clamp[T ~int64 | ~float64](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
