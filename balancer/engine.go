package balancer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/balancesim/internal/metrics"
)

// decision is what a policy's decide step produced for one task. weight is
// the amount the policy will credit back on completion.
type decision struct {
	worker      int
	strategy    string
	estimate    float64
	hasEstimate bool
	weight      float64
	rejected    bool
	reason      string
}

func (d decision) assignment(index int) Assignment {
	a := Assignment{
		TaskIndex:   index,
		Worker:      d.worker,
		Strategy:    d.strategy,
		Estimate:    d.estimate,
		HasEstimate: d.hasEstimate,
		Status:      Dispatched,
	}
	if d.rejected {
		a.Worker = -1
		a.Status = Rejected
		a.Reason = d.reason
	}
	return a
}

// accounting is the per-policy part of the pipeline. All methods are
// called with the engine mutex held.
type accounting interface {
	reset()
	decide(index int, task Task) decision
	commit(d decision)
	release(d decision)
}

// engine drives the assignment pipeline shared by every policy.
type engine struct {
	name       string
	numWorkers int
	cfg        *config
	limiter    *rate.Limiter
	table      accounting

	// runMu serializes Run calls on one policy instance.
	runMu sync.Mutex
	// mu guards the policy's decision tables.
	mu sync.Mutex
}

func newEngine(name string, numWorkers int, cfg *config) *engine {
	return &engine{
		name:       name,
		numWorkers: numWorkers,
		cfg:        cfg,
		limiter:    cfg.newLimiter(),
	}
}

// Name returns the policy name as accepted by New.
func (e *engine) Name() string { return e.name }

// NumWorkers returns the worker count the policy was built for.
func (e *engine) NumWorkers() int { return e.numWorkers }

// Run assigns every task in input order, waits for all dispatched tasks to
// finish and returns the report. Task failures are part of the report and
// do not make Run fail.
func (e *engine) Run(ctx context.Context, tasks []Task) (*Report, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	e.table.reset()
	e.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"policy":  e.name,
		"workers": e.numWorkers,
		"tasks":   len(tasks),
	})
	log.Debug("run started")

	rec := newRecorder(e.numWorkers, len(tasks))
	start := time.Now()

	var g errgroup.Group
	for i, task := range tasks {
		e.mu.Lock()
		d := e.table.decide(i, task)
		e.mu.Unlock()

		a := d.assignment(i)
		if d.rejected {
			e.trace(rec, a)
			continue
		}

		if err := e.start(ctx, task); err != nil {
			a.Status = StartFailed
			a.Reason = err.Error()
			e.trace(rec, a)
			continue
		}

		e.mu.Lock()
		e.table.commit(d)
		e.mu.Unlock()
		e.trace(rec, a)

		g.Go(func() error {
			out := e.execute(ctx, d.worker, i, task)
			rec.record(out)
			e.observe(out)

			e.mu.Lock()
			e.table.release(d)
			e.mu.Unlock()

			if e.cfg.onTaskEnd != nil {
				e.cfg.onTaskEnd(out)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := rec.report(e.name, time.Since(start))
	log.WithFields(logrus.Fields{
		"dispatched": report.Dispatched,
		"rejected":   report.Rejected,
		"failed":     report.Failed,
		"elapsed":    report.Elapsed,
	}).Info("run finished")
	return report, nil
}

// start checks that a task can be handed to its worker.
func (e *engine) start(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}

func (e *engine) trace(rec *recorder, a Assignment) {
	rec.assign(a)
	metrics.DispatchDecisions.WithLabelValues(e.name, a.Strategy, a.Status.String()).Inc()

	fields := logrus.Fields{
		"policy":   e.name,
		"task":     a.TaskIndex,
		"worker":   a.Worker,
		"strategy": a.Strategy,
	}
	if a.HasEstimate {
		fields["estimate"] = a.Estimate
	}
	switch a.Status {
	case Dispatched:
		logrus.WithFields(fields).Debug("task assigned")
	default:
		logrus.WithFields(fields).WithField("reason", a.Reason).Info("task not dispatched")
	}
}

func (e *engine) observe(out Outcome) {
	outcome := "success"
	if !out.Success {
		outcome = "failure"
		logrus.WithFields(logrus.Fields{
			"policy": e.name,
			"task":   out.TaskIndex,
			"worker": out.Worker,
		}).WithError(out.Err).Debug("task failed")
	}
	metrics.TaskDuration.WithLabelValues(e.name, outcome).Observe(out.Duration.Seconds())
}
