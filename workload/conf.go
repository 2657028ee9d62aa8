package workload

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/utkarsh5026/balancesim/internal/algorithms"
)

// Base complexities of the CPU-bound kernels in the specialised workloads.
const (
	BasePrimes     = 200_000
	BaseMonteCarlo = 8_000_000
	BaseMatrix     = 900

	// TasksPerWorkload is the size of every specialised workload.
	TasksPerWorkload = 8
)

// DefaultWeights are the estimated weights declared by generated tasks.
var DefaultWeights = map[string]float64{
	"db_query":         1.0,
	"calculation":      2.0,
	"image_processing": 3.0,
	NamePrimes:         2.0,
	NameMonteCarlo:     1.5,
	NameMatrix:         3.0,
}

// Option configures a Generator.
type Option func(*config)

type config struct {
	seed   int64
	seeded bool
	scale  float64

	clock         clockwork.Clock
	retryAttempts int
	retryDelay    time.Duration
	retryMaxDelay time.Duration
	backoff       algorithms.BackoffType
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		scale:         1,
		retryAttempts: 1,
		backoff:       algorithms.BackoffJittered,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}
	if !cfg.seeded {
		cfg.seed = time.Now().UnixNano()
	}
	if cfg.retryMaxDelay == 0 {
		cfg.retryMaxDelay = 10 * cfg.retryDelay
	}
	return cfg
}

// WithSeed makes server choice, payloads and kernel inputs reproducible.
func WithSeed(seed int64) Option {
	return func(cfg *config) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithScale multiplies the complexity of the CPU-bound kernels. Values <= 0
// are ignored.
func WithScale(scale float64) Option {
	return func(cfg *config) {
		if scale > 0 {
			cfg.scale = scale
		}
	}
}

// WithRetry retries a server-bound request turned away by a saturated
// server. attempts counts the first try; initialDelay is the wait after the
// first rejection and later waits grow according to the backoff.
func WithRetry(attempts int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		if attempts > 0 {
			cfg.retryAttempts = attempts
		}
		if initialDelay > 0 {
			cfg.retryDelay = initialDelay
		}
	}
}

// WithBackoff selects the retry delay algorithm and its ceiling.
func WithBackoff(backoff algorithms.BackoffType, maxDelay time.Duration) Option {
	return func(cfg *config) {
		cfg.backoff = backoff
		if maxDelay > 0 {
			cfg.retryMaxDelay = maxDelay
		}
	}
}

// WithClock sets the clock used for retry waits.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *config) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}
