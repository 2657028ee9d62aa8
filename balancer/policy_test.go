package balancer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range ValidPolicies {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, 3, WithSeed(1))
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())
			assert.True(t, IsValidPolicy(name))
		})
	}

	_, err := New("fastest", 3)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `"fastest"`)
	assert.False(t, IsValidPolicy("fastest"))
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		workers int
		opts    []Option
	}{
		{"no workers", RoundRobinName, 0, nil},
		{"zero threshold", AdaptiveName, 3, []Option{WithThreshold(0)}},
		{"zero limit", ReactiveName, 3, []Option{WithLimit(0)}},
		{"empty capacity range", DistributedName, 3, []Option{WithCapacityRange(3, 1)}},
		{"capacity count mismatch", DistributedName, 3, []Option{WithCapacities([]int{1, 1})}},
		{"zero capacity", DistributedName, 2, []Option{WithCapacities([]int{1, 0})}},
		{"inverted seed range", PredictiveName, 2, []Option{WithSeedRange(10, 3)}},
		{"inverted increment range", PredictiveName, 2, []Option{WithIncrementRange(5, 2)}},
		{"bad rate", RoundRobinName, 2, []Option{WithRateLimit(0, 1)}},
		{"negative weight", AdaptiveName, 2, []Option{WithWeights(map[string]float64{"x": -1})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.policy, tt.workers, tt.opts...)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestAllPolicies_ConserveTasks(t *testing.T) {
	for _, name := range ValidPolicies {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, 3, WithSeed(7))
			require.NoError(t, err)

			report, err := p.Run(context.Background(), noopTasks(20))
			require.NoError(t, err)
			checkConservation(t, report, 20)
			assert.Equal(t, report.Dispatched, report.Completed)
			assert.Zero(t, report.Failed)
		})
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	p, err := NewRoundRobin(2)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Dispatched)
	assert.Empty(t, report.Trace)
	assert.Zero(t, report.MeanDuration)
}

func TestRoundRobin_Sequence(t *testing.T) {
	p, err := NewRoundRobin(3)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), noopTasks(8))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0, 1}, report.Assigned())
	for _, a := range report.Trace {
		assert.Equal(t, "round-robin", a.Strategy)
	}
	assert.Equal(t, 3, report.Workers[0].Completed)
	assert.Equal(t, 3, report.Workers[1].Completed)
	assert.Equal(t, 2, report.Workers[2].Completed)
}

func TestRoundRobin_ModuloForAllIndices(t *testing.T) {
	for workers := 1; workers <= 5; workers++ {
		p, err := NewRoundRobin(workers)
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			assert.Equal(t, i%workers, p.decide(i, nil).worker)
		}
	}
}

func TestReactive_Decide(t *testing.T) {
	p, err := NewReactive(3, WithLimit(2))
	require.NoError(t, err)

	p.counts = []int{2, 2, 1}
	d := p.decide(0, nil)
	assert.False(t, d.rejected)
	assert.Equal(t, 2, d.worker)
	assert.Equal(t, "min-load", d.strategy)

	p.counts = []int{2, 2, 2}
	d = p.decide(0, nil)
	assert.True(t, d.rejected)
	assert.Equal(t, "all workers saturated", d.reason)
}

func TestReactive_FillsToLimitThenRejects(t *testing.T) {
	var started sync.WaitGroup
	started.Add(6)
	p, err := NewReactive(3, WithLimit(2), WithBeforeTaskStart(func(int, int) { started.Done() }))
	require.NoError(t, err)

	gates := make([]*gate, 8)
	tasks := make([]Task, 8)
	for i := range gates {
		gates[i] = newGate("task", 1)
		tasks[i] = gates[i]
	}

	done := runAsync(p, tasks)
	waitGroup(t, &started)
	assert.Equal(t, []int{2, 2, 2}, p.Counts())

	// completions do not free a slot within the run
	for _, g := range gates {
		g.release()
	}
	report := waitRun(t, done)

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, report.Assigned())
	assert.Equal(t, 6, report.Dispatched)
	assert.Equal(t, 2, report.Rejected)
	assert.Equal(t, Rejected, report.Trace[6].Status)
	assert.Equal(t, Rejected, report.Trace[7].Status)
	assert.Equal(t, -1, report.Results[7].Worker)
	checkConservation(t, report, 8)
}

func TestReactive_ResetsBetweenRuns(t *testing.T) {
	p, err := NewReactive(2, WithLimit(1))
	require.NoError(t, err)

	for run := 0; run < 2; run++ {
		report, err := p.Run(context.Background(), noopTasks(3))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Dispatched)
		assert.Equal(t, 1, report.Rejected)
	}
}

func TestAdaptive_SwitchesAndCreditsBack(t *testing.T) {
	var started sync.WaitGroup
	started.Add(4)
	ended := make(chan Outcome, 4)

	p, err := NewAdaptive(3,
		WithThreshold(2.5),
		WithBeforeTaskStart(func(int, int) { started.Done() }),
		WithOnTaskEnd(func(o Outcome) { ended <- o }),
	)
	require.NoError(t, err)

	gates := []*gate{newGate("a", 3), newGate("b", 3), newGate("c", 3), newGate("d", 2)}
	tasks := []Task{gates[0], gates[1], gates[2], gates[3]}

	done := runAsync(p, tasks)
	waitGroup(t, &started)

	assert.Equal(t, []float64{5, 3, 3}, p.Loads())

	gates[1].release()
	o := <-ended
	assert.Equal(t, 1, o.Worker)
	assert.Equal(t, []float64{5, 0, 3}, p.Loads(), "completion must subtract exactly the task weight")

	gates[0].release()
	gates[2].release()
	gates[3].release()
	report := waitRun(t, done)

	var strategies []string
	for _, a := range report.Trace {
		strategies = append(strategies, a.Strategy)
	}
	// the first task pushes worker 0 past the threshold
	assert.Equal(t, []string{"round-robin", "min-load", "min-load", "min-load"}, strategies)
	assert.Equal(t, []int{0, 1, 2, 0}, report.Assigned())
	assert.Equal(t, []float64{0, 0, 0}, p.Loads())
}

func TestAdaptive_RoundRobinBelowThreshold(t *testing.T) {
	p, err := NewAdaptive(3, WithThreshold(100), WithDefaultWeight(1))
	require.NoError(t, err)

	report, err := p.Run(context.Background(), noopTasks(6))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, report.Assigned())
	for _, a := range report.Trace {
		assert.True(t, a.HasEstimate)
		assert.Equal(t, 1.0, a.Estimate)
	}
}

func TestAdaptive_WeightPrecedence(t *testing.T) {
	p, err := NewAdaptive(2,
		WithDefaultWeight(1.5),
		WithWeights(map[string]float64{"declared": 9, "mapped": 4}),
	)
	require.NoError(t, err)

	noop := func(context.Context) (any, error) { return nil, nil }
	assert.Equal(t, 2.0, p.weightOf(NewTask("declared", 2, noop)))
	assert.Equal(t, 4.0, p.weightOf(NewTask("mapped", 0, noop)))
	assert.Equal(t, 1.5, p.weightOf(NewTask("other", 0, noop)))
	assert.Equal(t, 1.5, p.weightOf(TaskFunc(noop)))
}

func TestDistributed_DecideRespectsCapacity(t *testing.T) {
	p, err := NewDistributed(3, WithSeed(3), WithCapacities([]int{1, 2, 1}))
	require.NoError(t, err)

	dispatched := 0
	for i := 0; i < 50; i++ {
		d := p.decide(i, nil)
		if d.rejected {
			assert.Equal(t, "all workers at capacity", d.reason)
			continue
		}
		p.commit(d)
		dispatched++
		for w, load := range p.load {
			require.LessOrEqual(t, load, p.capacities[w], "worker %d over capacity", w)
		}
	}
	assert.LessOrEqual(t, dispatched, 4)
	assert.Positive(t, dispatched)
}

func TestDistributed_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const workers, n = 3, 40
	capacities := []int{1, 2, 1}

	var running [workers]atomic.Int32
	var workerOf [n]atomic.Int32
	var violations atomic.Int32

	p, err := NewDistributed(workers,
		WithSeed(5),
		WithCapacities(capacities),
		WithBeforeTaskStart(func(w, index int) {
			workerOf[index].Store(int32(w))
			if int(running[w].Add(1)) > capacities[w] {
				violations.Add(1)
			}
		}),
	)
	require.NoError(t, err)

	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = TaskFunc(func(context.Context) (any, error) {
			defer running[workerOf[i].Load()].Add(-1)
			time.Sleep(time.Millisecond)
			return nil, nil
		})
	}

	report, err := p.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Zero(t, violations.Load())
	assert.Positive(t, report.Dispatched)
	checkConservation(t, report, n)
	assert.Equal(t, []int{0, 0, 0}, p.Loads())
}

func TestDistributed_CapacitiesDrawnFromRange(t *testing.T) {
	p, err := NewDistributed(10, WithSeed(8), WithCapacityRange(2, 4))
	require.NoError(t, err)
	for _, c := range p.Capacities() {
		assert.GreaterOrEqual(t, c, 2)
		assert.LessOrEqual(t, c, 4)
	}
}

func TestPredictive_PicksLowestPrediction(t *testing.T) {
	p, err := NewPredictive(4, WithSeed(11))
	require.NoError(t, err)

	before := p.Predictions()
	for _, v := range before {
		assert.GreaterOrEqual(t, v, DefaultPredictionMin)
		assert.Less(t, v, DefaultPredictionMax)
	}

	report, err := p.Run(context.Background(), noopTasks(1))
	require.NoError(t, err)

	want := argmin(before)
	a := report.Trace[0]
	assert.Equal(t, want, a.Worker)
	assert.Equal(t, "predicted", a.Strategy)
	assert.True(t, a.HasEstimate)
	assert.Equal(t, before[want], a.Estimate)

	after := p.Predictions()
	grown := after[want] - before[want]
	assert.GreaterOrEqual(t, grown, DefaultIncrementMin)
	assert.Less(t, grown, DefaultIncrementMax)
	for w := range after {
		if w != want {
			assert.Equal(t, before[w], after[w])
		}
	}
}

func TestPredictive_SeedIsReproducible(t *testing.T) {
	a, err := NewPredictive(3, WithSeed(21))
	require.NoError(t, err)
	b, err := NewPredictive(3, WithSeed(21))
	require.NoError(t, err)

	ra, err := a.Run(context.Background(), noopTasks(12))
	require.NoError(t, err)
	rb, err := b.Run(context.Background(), noopTasks(12))
	require.NoError(t, err)
	assert.Equal(t, ra.Assigned(), rb.Assigned())
}

func TestArgmin_LowestIndexOnTies(t *testing.T) {
	assert.Equal(t, 0, argmin([]int{1, 1, 1}))
	assert.Equal(t, 1, argmin([]float64{3, 0.5, 0.5}))
	assert.Equal(t, 2, argmin([]int{4, 3, 2}))
}

func TestRun_StartFailures(t *testing.T) {
	t.Run("nil task", func(t *testing.T) {
		p, err := NewRoundRobin(2)
		require.NoError(t, err)

		tasks := noopTasks(3)
		tasks[1] = nil
		report, err := p.Run(context.Background(), tasks)
		require.NoError(t, err)

		assert.Equal(t, StartFailed, report.Trace[1].Status)
		assert.Contains(t, report.Trace[1].Reason, "nil task")
		assert.Equal(t, 1, report.StartFailures)
		assert.Equal(t, 2, report.Dispatched)
		checkConservation(t, report, 3)
	})

	t.Run("rate limiter with cancelled context", func(t *testing.T) {
		p, err := NewRoundRobin(2, WithRateLimit(1, 1))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := p.Run(ctx, noopTasks(4))
		require.NoError(t, err)

		assert.Equal(t, 4, report.StartFailures)
		assert.Zero(t, report.Dispatched)
		for _, a := range report.Trace {
			assert.Equal(t, StartFailed, a.Status)
		}
	})
}

func TestRun_PanicRecordedAsFailure(t *testing.T) {
	p, err := NewRoundRobin(2)
	require.NoError(t, err)

	tasks := []Task{
		TaskFunc(func(context.Context) (any, error) { panic("boom") }),
		TaskFunc(func(context.Context) (any, error) { return nil, errors.New("bad input") }),
		TaskFunc(func(context.Context) (any, error) { return "ok", nil }),
	}
	report, err := p.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Completed)
	require.Error(t, report.Results[0].Err)
	assert.True(t, strings.Contains(report.Results[0].Err.Error(), "panic"))
	assert.EqualError(t, report.Results[1].Err, "bad input")
	assert.Equal(t, "ok", report.Results[2].Value)
	assert.ElementsMatch(t, []bool{false, true}, report.Workers[0].Successes)
	checkConservation(t, report, 3)
}

func TestReport_TraceLines(t *testing.T) {
	r := &Report{Trace: []Assignment{
		{TaskIndex: 0, Worker: 1, Strategy: "predicted", Estimate: 4.5, HasEstimate: true},
		{TaskIndex: 1, Worker: -1, Status: Rejected, Reason: "all workers saturated"},
		{TaskIndex: 2, Worker: 0, Strategy: "round-robin"},
	}}

	assert.Equal(t, []string{
		"task 0: worker 1 via predicted, estimate 4.50",
		"task 1: rejected (all workers saturated)",
		"task 2: worker 0 via round-robin",
	}, r.TraceLines())
}

func TestRun_MeanOfMeans(t *testing.T) {
	p, err := NewRoundRobin(3)
	require.NoError(t, err)

	report, err := p.Run(context.Background(), noopTasks(2))
	require.NoError(t, err)

	var sum time.Duration
	for _, w := range report.Workers[:2] {
		sum += w.MeanDuration
	}
	assert.Zero(t, report.Workers[2].Executed())
	assert.Equal(t, sum/2, report.MeanDuration)
}

func TestRun_HooksFireAroundExecution(t *testing.T) {
	var mu sync.Mutex
	var events []string

	p, err := NewRoundRobin(1,
		WithBeforeTaskStart(func(w, i int) {
			mu.Lock()
			events = append(events, "start")
			mu.Unlock()
		}),
		WithOnTaskEnd(func(o Outcome) {
			mu.Lock()
			events = append(events, "end")
			mu.Unlock()
		}),
		WithCPUAffinity(true),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), noopTasks(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "end"}, events)
}
