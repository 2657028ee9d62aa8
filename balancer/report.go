package balancer

import (
	"fmt"
	"sync"
	"time"
)

// WorkerStats aggregates the executions of one worker. Durations and
// Successes are in completion order and always have the same length.
type WorkerStats struct {
	Worker        int
	Completed     int
	Failed        int
	TotalDuration time.Duration
	MeanDuration  time.Duration
	Durations     []time.Duration
	Successes     []bool
}

// Executed returns the number of tasks the worker ran.
func (w WorkerStats) Executed() int { return w.Completed + w.Failed }

// TaskResult is the per-task view of a run. Worker is -1 and Duration zero
// for tasks that were never executed.
type TaskResult struct {
	Index    int
	Worker   int
	Status   Status
	Value    any
	Err      error
	Duration time.Duration
}

// Report is the result of one policy run.
type Report struct {
	Policy  string
	Workers []WorkerStats
	Trace   []Assignment
	Results []TaskResult

	Dispatched    int
	Rejected      int
	StartFailures int
	Completed     int
	Failed        int

	// MeanDuration is the mean of the per-worker means over workers that
	// ran at least one task.
	MeanDuration time.Duration
	Elapsed      time.Duration
}

// Assigned returns the chosen worker of every dispatched task in trace
// order.
func (r *Report) Assigned() []int {
	workers := make([]int, 0, r.Dispatched)
	for _, a := range r.Trace {
		if a.Status == Dispatched {
			workers = append(workers, a.Worker)
		}
	}
	return workers
}

// TraceLines renders the assignment trace one line per task.
func (r *Report) TraceLines() []string {
	lines := make([]string, 0, len(r.Trace))
	for _, a := range r.Trace {
		var line string
		switch a.Status {
		case Rejected:
			line = fmt.Sprintf("task %d: rejected (%s)", a.TaskIndex, a.Reason)
		case StartFailed:
			line = fmt.Sprintf("task %d: worker %d, start failed (%s)", a.TaskIndex, a.Worker, a.Reason)
		default:
			line = fmt.Sprintf("task %d: worker %d via %s", a.TaskIndex, a.Worker, a.Strategy)
		}
		if a.HasEstimate {
			line += fmt.Sprintf(", estimate %.2f", a.Estimate)
		}
		lines = append(lines, line)
	}
	return lines
}

// recorder collects the trace on the dispatching goroutine and outcomes
// from the worker goroutines.
type recorder struct {
	mu      sync.Mutex
	workers []WorkerStats
	trace   []Assignment
	results []TaskResult
}

func newRecorder(numWorkers, numTasks int) *recorder {
	r := &recorder{
		workers: make([]WorkerStats, numWorkers),
		trace:   make([]Assignment, 0, numTasks),
		results: make([]TaskResult, numTasks),
	}
	for i := range r.workers {
		r.workers[i].Worker = i
	}
	for i := range r.results {
		r.results[i] = TaskResult{Index: i, Worker: -1}
	}
	return r
}

func (r *recorder) assign(a Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace = append(r.trace, a)
	res := &r.results[a.TaskIndex]
	res.Status = a.Status
	if a.Status == Dispatched {
		res.Worker = a.Worker
	}
}

// record stores one outcome. The success flag and the duration are
// appended under the same lock.
func (r *recorder) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &r.workers[o.Worker]
	w.Durations = append(w.Durations, o.Duration)
	w.Successes = append(w.Successes, o.Success)
	w.TotalDuration += o.Duration
	if o.Success {
		w.Completed++
	} else {
		w.Failed++
	}

	res := &r.results[o.TaskIndex]
	res.Value = o.Value
	res.Err = o.Err
	res.Duration = o.Duration
}

// report must only be called once every recorded goroutine has finished.
func (r *recorder) report(policy string, elapsed time.Duration) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := &Report{
		Policy:  policy,
		Workers: r.workers,
		Trace:   r.trace,
		Results: r.results,
		Elapsed: elapsed,
	}
	for _, a := range r.trace {
		switch a.Status {
		case Dispatched:
			rep.Dispatched++
		case Rejected:
			rep.Rejected++
		case StartFailed:
			rep.StartFailures++
		}
	}

	var sumOfMeans time.Duration
	active := 0
	for i := range rep.Workers {
		w := &rep.Workers[i]
		rep.Completed += w.Completed
		rep.Failed += w.Failed
		if n := w.Executed(); n > 0 {
			w.MeanDuration = w.TotalDuration / time.Duration(n)
			sumOfMeans += w.MeanDuration
			active++
		}
	}
	if active > 0 {
		rep.MeanDuration = sumOfMeans / time.Duration(active)
	}
	return rep
}
