package balancer

// Adaptive tracks the estimated weight of the tasks each worker is running.
// It cycles through workers until some worker's load reaches the threshold
// and then picks the least loaded worker. A completed task's weight is
// subtracted from its worker.
type Adaptive struct {
	*engine

	loads []float64
}

// NewAdaptive returns an adaptive policy with every worker load at zero.
func NewAdaptive(numWorkers int, opts ...Option) (*Adaptive, error) {
	cfg := newConfig(opts...)
	if err := cfg.validate(numWorkers); err != nil {
		return nil, err
	}
	p := &Adaptive{
		engine: newEngine(AdaptiveName, numWorkers, cfg),
		loads:  make([]float64, numWorkers),
	}
	p.table = p
	return p, nil
}

// Loads returns a consistent snapshot of the running loads.
func (p *Adaptive) Loads() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64{}, p.loads...)
}

// weightOf picks the task's declared weight, then the configured weight for
// its name, then the default.
func (p *Adaptive) weightOf(task Task) float64 {
	if w, ok := task.(Weighted); ok {
		if weight := w.EstimatedWeight(); weight > 0 {
			return weight
		}
	}
	if n, ok := task.(Named); ok {
		if weight, ok := p.cfg.weights[n.TaskName()]; ok {
			return weight
		}
	}
	return p.cfg.defaultWeight
}

func (p *Adaptive) reset() {}

func (p *Adaptive) decide(index int, task Task) decision {
	weight := p.weightOf(task)
	d := decision{estimate: weight, hasEstimate: true, weight: weight}

	peak := p.loads[0]
	for _, l := range p.loads[1:] {
		peak = max(peak, l)
	}
	if peak >= p.cfg.threshold {
		d.worker = argmin(p.loads)
		d.strategy = "min-load"
	} else {
		d.worker = index % p.numWorkers
		d.strategy = "round-robin"
	}
	return d
}

func (p *Adaptive) commit(d decision) { p.loads[d.worker] += d.weight }

func (p *Adaptive) release(d decision) { p.loads[d.worker] -= d.weight }
