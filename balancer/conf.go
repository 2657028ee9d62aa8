package balancer

import (
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultCapacityMin   = 1
	DefaultCapacityMax   = 3
	DefaultThreshold     = 2.5
	DefaultWeight        = 1.5
	DefaultLimit         = 2
	DefaultPredictionMin = 3.0
	DefaultPredictionMax = 10.0
	DefaultIncrementMin  = 2.0
	DefaultIncrementMax  = 5.0
)

// Option is a functional option for configuring a policy.
type Option func(*config)

type config struct {
	seed   int64
	seeded bool

	ratePerSecond float64
	rateBurst     int
	rateSet       bool

	pinCPU          bool
	beforeTaskStart func(worker, index int)
	onTaskEnd       func(Outcome)

	capacityMin int
	capacityMax int
	capacities  []int

	threshold     float64
	defaultWeight float64
	weights       map[string]float64

	limit int

	predictionMin float64
	predictionMax float64
	incrementMin  float64
	incrementMax  float64
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		capacityMin:   DefaultCapacityMin,
		capacityMax:   DefaultCapacityMax,
		threshold:     DefaultThreshold,
		defaultWeight: DefaultWeight,
		limit:         DefaultLimit,
		predictionMin: DefaultPredictionMin,
		predictionMax: DefaultPredictionMax,
		incrementMin:  DefaultIncrementMin,
		incrementMax:  DefaultIncrementMax,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.seeded {
		cfg.seed = time.Now().UnixNano()
	}
	return cfg
}

// validate rejects parameters that can never produce a valid dispatch.
func (cfg *config) validate(numWorkers int) error {
	switch {
	case numWorkers < 1:
		return fmt.Errorf("%w: need at least one worker, got %d", ErrInvalidConfig, numWorkers)
	case cfg.rateSet && (cfg.ratePerSecond <= 0 || cfg.rateBurst < 1):
		return fmt.Errorf("%w: rate limit %.2f/s burst %d", ErrInvalidConfig, cfg.ratePerSecond, cfg.rateBurst)
	case cfg.capacities == nil && (cfg.capacityMin < 1 || cfg.capacityMax < cfg.capacityMin):
		return fmt.Errorf("%w: capacity range [%d, %d]", ErrInvalidConfig, cfg.capacityMin, cfg.capacityMax)
	case cfg.capacities != nil && len(cfg.capacities) != numWorkers:
		return fmt.Errorf("%w: %d capacities for %d workers", ErrInvalidConfig, len(cfg.capacities), numWorkers)
	case cfg.threshold <= 0:
		return fmt.Errorf("%w: threshold must be > 0, got %g", ErrInvalidConfig, cfg.threshold)
	case cfg.defaultWeight < 0:
		return fmt.Errorf("%w: default weight must be >= 0, got %g", ErrInvalidConfig, cfg.defaultWeight)
	case cfg.limit < 1:
		return fmt.Errorf("%w: limit must be >= 1, got %d", ErrInvalidConfig, cfg.limit)
	case cfg.predictionMin < 0 || cfg.predictionMax < cfg.predictionMin:
		return fmt.Errorf("%w: prediction seed range [%g, %g]", ErrInvalidConfig, cfg.predictionMin, cfg.predictionMax)
	case cfg.incrementMin < 0 || cfg.incrementMax < cfg.incrementMin:
		return fmt.Errorf("%w: increment range [%g, %g]", ErrInvalidConfig, cfg.incrementMin, cfg.incrementMax)
	}
	for i, c := range cfg.capacities {
		if c < 1 {
			return fmt.Errorf("%w: worker %d capacity must be >= 1, got %d", ErrInvalidConfig, i, c)
		}
	}
	for name, w := range cfg.weights {
		if w < 0 {
			return fmt.Errorf("%w: weight for %q must be >= 0, got %g", ErrInvalidConfig, name, w)
		}
	}
	return nil
}

func (cfg *config) newRand() *rand.Rand {
	return rand.New(rand.NewSource(cfg.seed)) // #nosec G404 -- simulation only
}

func (cfg *config) newLimiter() *rate.Limiter {
	if !cfg.rateSet {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.ratePerSecond), cfg.rateBurst)
}

// WithSeed makes the random draws of a policy reproducible.
// If not specified, the seed is taken from the wall clock.
func WithSeed(seed int64) Option {
	return func(cfg *config) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithRateLimit paces dispatch starts.
// perSecond is the sustained number of task starts per second and burst the
// number that may start back to back. A start that cannot obtain a token
// before the run context ends is recorded as a start failure.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 starts/sec with a burst of 5
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *config) {
		cfg.ratePerSecond = perSecond
		cfg.rateBurst = burst
		cfg.rateSet = true
	}
}

// WithCPUAffinity pins every execution goroutine to the core matching its
// worker id for the duration of the task.
func WithCPUAffinity(enabled bool) Option {
	return func(cfg *config) {
		cfg.pinCPU = enabled
	}
}

// WithBeforeTaskStart sets a hook called on the worker goroutine right
// before a task executes.
func WithBeforeTaskStart(fn func(worker, index int)) Option {
	return func(cfg *config) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd sets a hook called once a task's outcome is recorded and
// the policy has credited the task back.
func WithOnTaskEnd(fn func(Outcome)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}

// WithCapacityRange sets the inclusive range worker capacities are drawn
// from by the distributed policy.
func WithCapacityRange(lo, hi int) Option {
	return func(cfg *config) {
		cfg.capacityMin = lo
		cfg.capacityMax = hi
	}
}

// WithCapacities fixes the capacity of every worker of the distributed
// policy. The slice length must match the worker count.
func WithCapacities(capacities []int) Option {
	return func(cfg *config) {
		cfg.capacities = append([]int{}, capacities...)
	}
}

// WithThreshold sets the load at which the adaptive policy switches to
// least-loaded selection.
func WithThreshold(threshold float64) Option {
	return func(cfg *config) {
		cfg.threshold = threshold
	}
}

// WithDefaultWeight sets the estimate used for tasks with no declared or
// configured weight.
func WithDefaultWeight(weight float64) Option {
	return func(cfg *config) {
		cfg.defaultWeight = weight
	}
}

// WithWeights sets estimated weights by task name.
func WithWeights(weights map[string]float64) Option {
	return func(cfg *config) {
		cfg.weights = make(map[string]float64, len(weights))
		for name, w := range weights {
			cfg.weights[name] = w
		}
	}
}

// WithLimit sets how many tasks the reactive policy gives a worker per run.
func WithLimit(limit int) Option {
	return func(cfg *config) {
		cfg.limit = limit
	}
}

// WithSeedRange sets the range initial predicted completion times are drawn
// from.
func WithSeedRange(lo, hi float64) Option {
	return func(cfg *config) {
		cfg.predictionMin = lo
		cfg.predictionMax = hi
	}
}

// WithIncrementRange sets the range a prediction grows by per assignment.
func WithIncrementRange(lo, hi float64) Option {
	return func(cfg *config) {
		cfg.incrementMin = lo
		cfg.incrementMax = hi
	}
}
