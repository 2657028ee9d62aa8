package cluster

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// MinCPULoad and MaxCPULoad bound the simulated cpu load signal.
	MinCPULoad = 0.10
	MaxCPULoad = 0.95

	DefaultLoadIncrement = 0.05
	DefaultDecayStep     = 0.03
	DefaultDecayDelay    = 2 * time.Second
)

// ServerOption configures a single simulated server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	clock         clockwork.Clock
	timeScale     float64
	seed          int64
	seeded        bool
	loadIncrement float64
	decayStep     float64
	decayDelay    time.Duration
}

func newServerConfig(opts ...ServerOption) *serverConfig {
	cfg := &serverConfig{
		timeScale:     1.0,
		loadIncrement: DefaultLoadIncrement,
		decayStep:     DefaultDecayStep,
		decayDelay:    DefaultDecayDelay,
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
	return cfg
}

// WithClock sets the clock used for simulated sleeps and load decay.
func WithClock(clock clockwork.Clock) ServerOption {
	return func(cfg *serverConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithTimeScale multiplies every simulated delay (latency, processing,
// payload work and decay delay). Values <= 0 are ignored.
func WithTimeScale(scale float64) ServerOption {
	return func(cfg *serverConfig) {
		if scale > 0 {
			cfg.timeScale = scale
		}
	}
}

// WithServerSeed makes the server's random draws reproducible.
func WithServerSeed(seed int64) ServerOption {
	return func(cfg *serverConfig) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithLoadIncrement sets how much a completed request raises the cpu load.
func WithLoadIncrement(inc float64) ServerOption {
	return func(cfg *serverConfig) {
		if inc >= 0 {
			cfg.loadIncrement = inc
		}
	}
}

// WithDecay sets the delay after which a load raise is partly undone and
// the size of that decrement.
func WithDecay(delay time.Duration, step float64) ServerOption {
	return func(cfg *serverConfig) {
		if delay >= 0 {
			cfg.decayDelay = delay
		}
		if step >= 0 {
			cfg.decayStep = step
		}
	}
}

// Option configures a Cluster.
type Option func(*clusterConfig)

type clusterConfig struct {
	seed        int64
	seeded      bool
	capacityMin int
	capacityMax int
	latencyMin  time.Duration
	latencyMax  time.Duration
	specs       []ServerSpec
	serverOpts  []ServerOption
}

// ServerSpec fixes the parameters of one server instead of drawing them.
type ServerSpec struct {
	Capacity    int
	BaseLatency time.Duration
}

func newClusterConfig(opts ...Option) *clusterConfig {
	cfg := &clusterConfig{
		capacityMin: 5,
		capacityMax: 15,
		latencyMin:  30 * time.Millisecond,
		latencyMax:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.seeded {
		cfg.seed = time.Now().UnixNano()
	}
	return cfg
}

// WithSeed makes capacity/latency draws and every server's randomness reproducible.
func WithSeed(seed int64) Option {
	return func(cfg *clusterConfig) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithCapacityRange sets the inclusive range server capacities are drawn from.
func WithCapacityRange(lo, hi int) Option {
	return func(cfg *clusterConfig) {
		cfg.capacityMin, cfg.capacityMax = lo, hi
	}
}

// WithCapacity gives every server the same capacity.
func WithCapacity(capacity int) Option {
	return WithCapacityRange(capacity, capacity)
}

// WithLatencyRange sets the range base latencies are drawn from.
func WithLatencyRange(lo, hi time.Duration) Option {
	return func(cfg *clusterConfig) {
		cfg.latencyMin, cfg.latencyMax = lo, hi
	}
}

// WithBaseLatency gives every server the same base latency.
func WithBaseLatency(d time.Duration) Option {
	return WithLatencyRange(d, d)
}

// WithServerSpecs fixes capacity and latency per server. The number of specs
// must match the server count passed to New.
func WithServerSpecs(specs ...ServerSpec) Option {
	return func(cfg *clusterConfig) {
		cfg.specs = specs
	}
}

// WithServerOptions applies opts to every server of the cluster.
func WithServerOptions(opts ...ServerOption) Option {
	return func(cfg *clusterConfig) {
		cfg.serverOpts = append(cfg.serverOpts, opts...)
	}
}
