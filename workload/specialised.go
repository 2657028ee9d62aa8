package workload

import (
	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/cluster"
)

func (g *Generator) scaled(base float64) int {
	return max(1, int(base*g.cfg.scale))
}

func (g *Generator) primes(factor float64) balancer.Task {
	return PrimesTask(g.scaled(BasePrimes * factor))
}

func (g *Generator) monteCarlo(factor float64) balancer.Task {
	return MonteCarloTask(g.scaled(BaseMonteCarlo*factor), g.int63())
}

func (g *Generator) matrix(factor float64) balancer.Task {
	return MatrixTask(g.scaled(BaseMatrix*factor), g.int63())
}

// CPUForPolicy returns the CPU-bound workload designed for the named policy.
// Unknown names get the adaptive workload, which mixes all three kernels.
func (g *Generator) CPUForPolicy(name string) []balancer.Task {
	switch name {
	case balancer.RoundRobinName:
		// homogeneous: prime counts within ±10% of the base
		tasks := make([]balancer.Task, 0, TasksPerWorkload)
		for _, offset := range []float64{10_000, 0, 5_000, -5_000, 15_000, -10_000, 20_000, -15_000} {
			tasks = append(tasks, g.primes((BasePrimes+offset)/BasePrimes))
		}
		return tasks
	case balancer.DistributedName:
		return []balancer.Task{
			g.monteCarlo(0.5), g.primes(0.5), g.matrix(1.3), g.monteCarlo(1),
			g.primes(1), g.matrix(1.5), g.monteCarlo(1.0 / 3), g.primes(1.0 / 3),
		}
	case balancer.PredictiveName:
		tasks := make([]balancer.Task, 0, TasksPerWorkload)
		for range 2 {
			tasks = append(tasks, g.matrix(0.5), g.primes(1), g.monteCarlo(1))
		}
		return append(tasks, g.matrix(0.5), g.primes(1.2))
	case balancer.ReactiveName:
		return []balancer.Task{
			g.primes(0.5), g.monteCarlo(0.5),
			g.matrix(1.4), g.matrix(1.5),
			g.primes(1), g.monteCarlo(1),
			g.matrix(1.2), g.primes(1.0 / 3),
		}
	default:
		// increasing intensity
		return []balancer.Task{
			g.primes(1.0 / 3), g.monteCarlo(0.5), g.primes(0.5), g.monteCarlo(1),
			g.matrix(1), g.primes(1), g.matrix(1.2), g.monteCarlo(1.3),
		}
	}
}

// ForPolicy returns the server-bound workload designed for the named
// policy. Unknown names get a balanced mix of the three request kinds.
func (g *Generator) ForPolicy(name string, c *cluster.Cluster) []balancer.Task {
	repeat := func(n int, build func(*cluster.Cluster, int) balancer.Task) []balancer.Task {
		tasks := make([]balancer.Task, 0, n)
		for range n {
			tasks = append(tasks, build(c, AnyServer))
		}
		return tasks
	}

	switch name {
	case balancer.RoundRobinName:
		return repeat(TasksPerWorkload, g.DBQuery)
	case balancer.DistributedName:
		return concat(repeat(3, g.Calculation), repeat(3, g.DBQuery), repeat(2, g.ImageProcessing))
	case balancer.PredictiveName:
		var tasks []balancer.Task
		for range 2 {
			tasks = append(tasks,
				g.DBQuery(c, AnyServer), g.Calculation(c, AnyServer),
				g.DBQuery(c, AnyServer), g.Calculation(c, AnyServer))
		}
		return tasks
	case balancer.ReactiveName:
		return concat(repeat(2, g.DBQuery), repeat(3, g.ImageProcessing), repeat(1, g.Calculation), repeat(2, g.ImageProcessing))
	default:
		// light to heavy; also the adaptive workload
		return concat(repeat(3, g.DBQuery), repeat(3, g.Calculation), repeat(2, g.ImageProcessing))
	}
}

func concat(parts ...[]balancer.Task) []balancer.Task {
	var tasks []balancer.Task
	for _, p := range parts {
		tasks = append(tasks, p...)
	}
	return tasks
}

var descriptions = map[string]string{
	balancer.RoundRobinName: "homogeneous tasks of similar cost with no load spikes; " +
		"round-robin assignment spreads them evenly",
	balancer.DistributedName: "light and heavy tasks mixed, including large matrix products " +
		"that can fill a worker; exercises capacity limits and rejection",
	balancer.AdaptiveName: "tasks of increasing cost; the load threshold is crossed partway " +
		"through and selection switches from round-robin to least-loaded",
	balancer.PredictiveName: "a repeating sequence of task types with a variation at the end; " +
		"predicted completion times drive the choice",
	balancer.ReactiveName: "normal load interrupted by spikes of heavy tasks; " +
		"shows how the per-worker limit reacts to sudden overload",
}

// Describe returns a short description of the specialised workload for the
// named policy.
func Describe(name string) string {
	if d, ok := descriptions[name]; ok {
		return d
	}
	return "standard mixed workload"
}
