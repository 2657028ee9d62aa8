package balancer

// RoundRobin sends task i to worker i mod n. It never rejects.
type RoundRobin struct {
	*engine
}

// NewRoundRobin returns a round-robin policy over numWorkers workers.
func NewRoundRobin(numWorkers int, opts ...Option) (*RoundRobin, error) {
	cfg := newConfig(opts...)
	if err := cfg.validate(numWorkers); err != nil {
		return nil, err
	}
	p := &RoundRobin{engine: newEngine(RoundRobinName, numWorkers, cfg)}
	p.table = p
	return p, nil
}

func (p *RoundRobin) reset() {}

func (p *RoundRobin) decide(index int, _ Task) decision {
	return decision{worker: index % p.numWorkers, strategy: "round-robin"}
}

func (p *RoundRobin) commit(decision) {}

func (p *RoundRobin) release(decision) {}
