package balancer

import "math/rand"

// Predictive keeps a predicted completion time per worker and always picks
// the lowest. Predictions start at random values and grow by a random
// increment per assignment; measured durations are not fed back.
type Predictive struct {
	*engine

	rng       *rand.Rand
	predicted []float64
}

// NewPredictive draws the initial per-worker predictions from the seed range.
func NewPredictive(numWorkers int, opts ...Option) (*Predictive, error) {
	cfg := newConfig(opts...)
	if err := cfg.validate(numWorkers); err != nil {
		return nil, err
	}
	p := &Predictive{
		engine:    newEngine(PredictiveName, numWorkers, cfg),
		rng:       cfg.newRand(),
		predicted: make([]float64, numWorkers),
	}
	for i := range p.predicted {
		p.predicted[i] = uniform(p.rng, cfg.predictionMin, cfg.predictionMax)
	}
	p.table = p
	return p, nil
}

// Predictions returns a snapshot of the predicted completion times.
func (p *Predictive) Predictions() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64{}, p.predicted...)
}

func (p *Predictive) reset() {}

func (p *Predictive) decide(int, Task) decision {
	w := argmin(p.predicted)
	return decision{
		worker:      w,
		strategy:    "predicted",
		estimate:    p.predicted[w],
		hasEstimate: true,
	}
}

func (p *Predictive) commit(d decision) {
	p.predicted[d.worker] += uniform(p.rng, p.cfg.incrementMin, p.cfg.incrementMax)
}

func (p *Predictive) release(decision) {}
