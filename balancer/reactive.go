package balancer

// Reactive counts the tasks given to each worker during a run and stops
// assigning to a worker once it reaches the limit. Counts are only reset
// when a new run starts, so a run dispatches at most limit*n tasks.
type Reactive struct {
	*engine

	counts []int
}

// NewReactive returns a reactive policy that admits at most the configured
// limit of tasks per worker in each run.
func NewReactive(numWorkers int, opts ...Option) (*Reactive, error) {
	cfg := newConfig(opts...)
	if err := cfg.validate(numWorkers); err != nil {
		return nil, err
	}
	p := &Reactive{
		engine: newEngine(ReactiveName, numWorkers, cfg),
		counts: make([]int, numWorkers),
	}
	p.table = p
	return p, nil
}

// Counts returns the number of tasks assigned to each worker in the
// current or last run.
func (p *Reactive) Counts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int{}, p.counts...)
}

func (p *Reactive) reset() { clear(p.counts) }

func (p *Reactive) decide(int, Task) decision {
	w := argmin(p.counts)
	if p.counts[w] < p.cfg.limit {
		return decision{worker: w, strategy: "min-load"}
	}
	for j, c := range p.counts {
		if c < p.cfg.limit {
			return decision{worker: j, strategy: "reassigned"}
		}
	}
	return decision{strategy: "min-load", rejected: true, reason: "all workers saturated"}
}

func (p *Reactive) commit(d decision) { p.counts[d.worker]++ }

func (p *Reactive) release(decision) {}
