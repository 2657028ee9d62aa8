package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/cluster"
	"github.com/utkarsh5026/balancesim/internal/algorithms"
	"github.com/utkarsh5026/balancesim/workload"
)

// Workload kinds accepted by --workload.
const (
	WorkloadCPU         = "cpu"
	WorkloadServer      = "server"
	WorkloadSpecialized = "specialized"
)

// ValidWorkloads is the set of recognized workload kinds.
var ValidWorkloads = map[string]bool{WorkloadCPU: true, WorkloadServer: true, WorkloadSpecialized: true}

// Config holds everything a simulation run needs. It can be loaded from a
// YAML file; flags given on the command line take precedence over the file.
type Config struct {
	Policy     string        `yaml:"policy"`
	Workers    int           `yaml:"workers"`
	Tasks      int           `yaml:"tasks"`
	Workload   string        `yaml:"workload"`
	Servers    int           `yaml:"servers"`
	Seed       int64         `yaml:"seed"`
	Rate       float64       `yaml:"rate"`
	Burst      int           `yaml:"burst"`
	PinCPU     bool          `yaml:"pin_cpu"`
	TimeScale  float64       `yaml:"time_scale"`
	Scale      float64       `yaml:"scale"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	RetryMax   time.Duration `yaml:"retry_max_delay"`
	Backoff    string        `yaml:"backoff"`
	MetricsOut string        `yaml:"metrics_out"`

	Params  PolicyParams  `yaml:"params"`
	Cluster ClusterParams `yaml:"cluster"`
}

// PolicyParams tunes individual policies. Nil fields keep the policy
// defaults.
type PolicyParams struct {
	Threshold     *float64           `yaml:"threshold"`
	DefaultWeight *float64           `yaml:"default_weight"`
	Weights       map[string]float64 `yaml:"weights"`
	Limit         *int               `yaml:"limit"`
	CapacityMin   *int               `yaml:"capacity_min"`
	CapacityMax   *int               `yaml:"capacity_max"`
	Capacities    []int              `yaml:"capacities"`
}

// ClusterParams overrides the ranges server parameters are drawn from.
type ClusterParams struct {
	CapacityMin *int           `yaml:"capacity_min"`
	CapacityMax *int           `yaml:"capacity_max"`
	LatencyMin  *time.Duration `yaml:"latency_min"`
	LatencyMax  *time.Duration `yaml:"latency_max"`

	LoadIncrement *float64       `yaml:"load_increment"`
	DecayDelay    *time.Duration `yaml:"decay_delay"`
	DecayStep     *float64       `yaml:"decay_step"`
}

// DefaultConfig returns the configuration used when neither a file nor a
// flag sets a value.
func DefaultConfig() Config {
	return Config{
		Policy:     balancer.RoundRobinName,
		Workers:    3,
		Tasks:      workload.TasksPerWorkload,
		Workload:   WorkloadSpecialized,
		Servers:    3,
		Seed:       42,
		Burst:      1,
		TimeScale:  1,
		Scale:      1,
		Retries:    1,
		RetryDelay: 50 * time.Millisecond,
		Backoff:    algorithms.BackoffJittered.String(),
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate checks names and parameter ranges.
func (c *Config) Validate() error {
	if !balancer.IsValidPolicy(c.Policy) {
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if !ValidWorkloads[c.Workload] {
		return fmt.Errorf("unknown workload %q", c.Workload)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.Tasks < 0 {
		return fmt.Errorf("tasks must be non-negative, got %d", c.Tasks)
	}
	if c.Servers < 1 {
		return fmt.Errorf("servers must be >= 1, got %d", c.Servers)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must be non-negative, got %f", c.Rate)
	}
	if c.Rate > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be >= 1 when rate is set, got %d", c.Burst)
	}
	if c.TimeScale <= 0 {
		return fmt.Errorf("time_scale must be positive, got %f", c.TimeScale)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %f", c.Scale)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be >= 1, got %d", c.Retries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be non-negative, got %v", c.RetryDelay)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max_delay must be non-negative, got %v", c.RetryMax)
	}
	if _, err := algorithms.ParseBackoff(c.Backoff); err != nil {
		return err
	}
	if inc := c.Cluster.LoadIncrement; inc != nil && *inc < 0 {
		return fmt.Errorf("load_increment must be non-negative, got %f", *inc)
	}
	if d := c.Cluster.DecayDelay; d != nil && *d < 0 {
		return fmt.Errorf("decay_delay must be non-negative, got %v", *d)
	}
	if step := c.Cluster.DecayStep; step != nil && *step < 0 {
		return fmt.Errorf("decay_step must be non-negative, got %f", *step)
	}
	if t := c.Params.Threshold; t != nil && *t <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", *t)
	}
	if l := c.Params.Limit; l != nil && *l < 1 {
		return fmt.Errorf("limit must be >= 1, got %d", *l)
	}
	if caps := c.Params.Capacities; caps != nil && len(caps) != c.Workers {
		return fmt.Errorf("%d capacities given for %d workers", len(caps), c.Workers)
	}
	return nil
}

// PolicyOptions translates the configuration into balancer options.
func (c *Config) PolicyOptions() []balancer.Option {
	opts := []balancer.Option{balancer.WithSeed(c.Seed)}
	if c.Rate > 0 {
		opts = append(opts, balancer.WithRateLimit(c.Rate, c.Burst))
	}
	if c.PinCPU {
		opts = append(opts, balancer.WithCPUAffinity(true))
	}

	p := c.Params
	if p.Threshold != nil {
		opts = append(opts, balancer.WithThreshold(*p.Threshold))
	}
	if p.DefaultWeight != nil {
		opts = append(opts, balancer.WithDefaultWeight(*p.DefaultWeight))
	}
	if p.Weights != nil {
		opts = append(opts, balancer.WithWeights(p.Weights))
	}
	if p.Limit != nil {
		opts = append(opts, balancer.WithLimit(*p.Limit))
	}
	if p.CapacityMin != nil || p.CapacityMax != nil {
		lo, hi := balancer.DefaultCapacityMin, balancer.DefaultCapacityMax
		if p.CapacityMin != nil {
			lo = *p.CapacityMin
		}
		if p.CapacityMax != nil {
			hi = *p.CapacityMax
		}
		opts = append(opts, balancer.WithCapacityRange(lo, hi))
	}
	if p.Capacities != nil {
		opts = append(opts, balancer.WithCapacities(p.Capacities))
	}
	return opts
}

// ClusterOptions translates the configuration into cluster options.
func (c *Config) ClusterOptions() []cluster.Option {
	p := c.Cluster
	serverOpts := []cluster.ServerOption{cluster.WithTimeScale(c.TimeScale)}
	if p.LoadIncrement != nil {
		serverOpts = append(serverOpts, cluster.WithLoadIncrement(*p.LoadIncrement))
	}
	if p.DecayDelay != nil || p.DecayStep != nil {
		delay, step := cluster.DefaultDecayDelay, cluster.DefaultDecayStep
		if p.DecayDelay != nil {
			delay = *p.DecayDelay
		}
		if p.DecayStep != nil {
			step = *p.DecayStep
		}
		serverOpts = append(serverOpts, cluster.WithDecay(delay, step))
	}

	opts := []cluster.Option{
		cluster.WithSeed(c.Seed),
		cluster.WithServerOptions(serverOpts...),
	}
	if p.CapacityMin != nil && p.CapacityMax != nil {
		opts = append(opts, cluster.WithCapacityRange(*p.CapacityMin, *p.CapacityMax))
	}
	if p.LatencyMin != nil && p.LatencyMax != nil {
		opts = append(opts, cluster.WithLatencyRange(*p.LatencyMin, *p.LatencyMax))
	}
	return opts
}

// WorkloadOptions translates the configuration into workload options. The
// configuration must have passed Validate.
func (c *Config) WorkloadOptions() []workload.Option {
	opts := []workload.Option{
		workload.WithSeed(c.Seed),
		workload.WithScale(c.Scale),
		workload.WithRetry(c.Retries, c.RetryDelay),
	}
	if backoff, err := algorithms.ParseBackoff(c.Backoff); err == nil {
		opts = append(opts, workload.WithBackoff(backoff, c.RetryMax))
	}
	return opts
}

// bindFlags registers the configuration flags on fs, writing into c.
func bindFlags(fs *pflag.FlagSet, c *Config) {
	def := DefaultConfig()
	fs.StringVar(&c.Policy, "policy", def.Policy, "Dispatch policy (round-robin, distributed, adaptive, predictive, reactive)")
	fs.IntVar(&c.Workers, "workers", def.Workers, "Number of workers")
	fs.IntVar(&c.Tasks, "tasks", def.Tasks, "Number of tasks for the server workload")
	fs.StringVar(&c.Workload, "workload", def.Workload, "Workload kind (cpu, server, specialized)")
	fs.IntVar(&c.Servers, "servers", def.Servers, "Number of simulated servers")
	fs.Int64Var(&c.Seed, "seed", def.Seed, "Seed for every random draw")
	fs.Float64Var(&c.Rate, "rate", def.Rate, "Dispatch starts per second (0 = unlimited)")
	fs.IntVar(&c.Burst, "burst", def.Burst, "Dispatch burst size when --rate is set")
	fs.BoolVar(&c.PinCPU, "pin-cpu", def.PinCPU, "Pin each worker's execution to a CPU core")
	fs.Float64Var(&c.TimeScale, "time-scale", def.TimeScale, "Multiplier for every simulated server delay")
	fs.Float64Var(&c.Scale, "scale", def.Scale, "Multiplier for CPU-bound task complexity")
	fs.IntVar(&c.Retries, "retries", def.Retries, "Attempts per server request, including the first")
	fs.DurationVar(&c.RetryDelay, "retry-delay", def.RetryDelay, "Wait after the first rejection by a saturated server")
	fs.DurationVar(&c.RetryMax, "retry-max-delay", def.RetryMax, "Ceiling for retry waits (0 = 10x --retry-delay)")
	fs.StringVar(&c.Backoff, "backoff", def.Backoff, "Retry backoff (exponential, jittered, decorrelated)")
	fs.StringVar(&c.MetricsOut, "metrics-out", def.MetricsOut, "Write Prometheus metrics to this file after the run")
}

// resolveConfig merges the defaults, the optional file at path and the
// flags that were set explicitly in fs.
func resolveConfig(fs *pflag.FlagSet, path string, flagged *Config) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "policy":
			cfg.Policy = flagged.Policy
		case "workers":
			cfg.Workers = flagged.Workers
		case "tasks":
			cfg.Tasks = flagged.Tasks
		case "workload":
			cfg.Workload = flagged.Workload
		case "servers":
			cfg.Servers = flagged.Servers
		case "seed":
			cfg.Seed = flagged.Seed
		case "rate":
			cfg.Rate = flagged.Rate
		case "burst":
			cfg.Burst = flagged.Burst
		case "pin-cpu":
			cfg.PinCPU = flagged.PinCPU
		case "time-scale":
			cfg.TimeScale = flagged.TimeScale
		case "scale":
			cfg.Scale = flagged.Scale
		case "retries":
			cfg.Retries = flagged.Retries
		case "retry-delay":
			cfg.RetryDelay = flagged.RetryDelay
		case "retry-max-delay":
			cfg.RetryMax = flagged.RetryMax
		case "backoff":
			cfg.Backoff = flagged.Backoff
		case "metrics-out":
			cfg.MetricsOut = flagged.MetricsOut
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
