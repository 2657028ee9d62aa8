package balancer

import (
	"context"
	"sync"
	"testing"
	"time"
)

func noopTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = TaskFunc(func(context.Context) (any, error) { return i, nil })
	}
	return tasks
}

// gate is a task that blocks until opened.
type gate struct {
	name   string
	weight float64
	open   chan struct{}
}

func newGate(name string, weight float64) *gate {
	return &gate{name: name, weight: weight, open: make(chan struct{})}
}

func (g *gate) Execute(ctx context.Context) (any, error) {
	select {
	case <-g.open:
		return g.name, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gate) TaskName() string { return g.name }

func (g *gate) EstimatedWeight() float64 { return g.weight }

func (g *gate) release() { close(g.open) }

type runResult struct {
	report *Report
	err    error
}

func runAsync(p Policy, tasks []Task) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		r, err := p.Run(context.Background(), tasks)
		done <- runResult{r, err}
	}()
	return done
}

func waitRun(t *testing.T, done <-chan runResult) *Report {
	t.Helper()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run() error = %v", r.err)
		}
		return r.report
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
		return nil
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}
}

func checkConservation(t *testing.T, r *Report, n int) {
	t.Helper()
	if got := r.Dispatched + r.Rejected + r.StartFailures; got != n {
		t.Errorf("dispatched+rejected+start failures = %d, want %d", got, n)
	}
	executed := 0
	for _, w := range r.Workers {
		executed += w.Executed()
		if len(w.Durations) != len(w.Successes) {
			t.Errorf("worker %d: %d durations but %d success flags", w.Worker, len(w.Durations), len(w.Successes))
		}
	}
	if executed != r.Dispatched {
		t.Errorf("executed = %d, want dispatched %d", executed, r.Dispatched)
	}
	if len(r.Trace) != n || len(r.Results) != n {
		t.Errorf("trace/results length = %d/%d, want %d", len(r.Trace), len(r.Results), n)
	}
}
