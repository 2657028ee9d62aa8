package balancer

import "math/rand"

// Distributed gives every worker a fixed capacity and probes random workers
// for a free slot. A slot is held until the task completes, so a worker
// never runs more tasks at once than its capacity.
type Distributed struct {
	*engine

	rng        *rand.Rand
	capacities []int
	load       []int
}

// NewDistributed draws worker capacities once, uniformly from the capacity
// range, unless WithCapacities fixes them.
func NewDistributed(numWorkers int, opts ...Option) (*Distributed, error) {
	cfg := newConfig(opts...)
	if err := cfg.validate(numWorkers); err != nil {
		return nil, err
	}

	p := &Distributed{
		engine: newEngine(DistributedName, numWorkers, cfg),
		rng:    cfg.newRand(),
		load:   make([]int, numWorkers),
	}
	if cfg.capacities != nil {
		p.capacities = append([]int{}, cfg.capacities...)
	} else {
		p.capacities = make([]int, numWorkers)
		for i := range p.capacities {
			p.capacities[i] = cfg.capacityMin + p.rng.Intn(cfg.capacityMax-cfg.capacityMin+1)
		}
	}
	p.table = p
	return p, nil
}

// Capacities returns the per-worker capacities.
func (p *Distributed) Capacities() []int {
	return append([]int{}, p.capacities...)
}

// Loads returns the number of tasks each worker is running right now.
func (p *Distributed) Loads() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int{}, p.load...)
}

func (p *Distributed) reset() {}

func (p *Distributed) decide(int, Task) decision {
	for range p.numWorkers {
		w := p.rng.Intn(p.numWorkers)
		if p.load[w] < p.capacities[w] {
			return decision{worker: w, strategy: "capacity"}
		}
	}
	return decision{strategy: "capacity", rejected: true, reason: "all workers at capacity"}
}

func (p *Distributed) commit(d decision) { p.load[d.worker]++ }

func (p *Distributed) release(d decision) { p.load[d.worker]-- }
