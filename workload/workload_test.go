package workload

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/cluster"
	"github.com/utkarsh5026/balancesim/internal/algorithms"
)

func TestPrimes(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{2, 0},
		{3, 1},
		{10, 4},
		{100, 25},
		{1000, 168},
	}
	for _, tt := range tests {
		if got := Primes(tt.n); got != tt.want {
			t.Errorf("Primes(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestMonteCarloPi(t *testing.T) {
	est := MonteCarloPi(200_000, 1)
	assert.InDelta(t, math.Pi, est, 0.05)
	assert.Equal(t, est, MonteCarloPi(200_000, 1))
	assert.Zero(t, MonteCarloPi(0, 1))
}

func TestMatrixMultiply(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a, b := rng.Float64(), rng.Float64()
	assert.InDelta(t, a*b, MatrixMultiply(1, 4), 1e-12)

	assert.Equal(t, MatrixMultiply(8, 9), MatrixMultiply(8, 9))
	assert.Zero(t, MatrixMultiply(0, 1))
}

func TestCPUForPolicy(t *testing.T) {
	g := NewGenerator(WithSeed(1), WithScale(0.0001))

	for _, name := range append(append([]string{}, balancer.ValidPolicies...), "unknown") {
		t.Run(name, func(t *testing.T) {
			tasks := g.CPUForPolicy(name)
			require.Len(t, tasks, TasksPerWorkload)
			for _, task := range tasks {
				n, ok := task.(balancer.Named)
				require.True(t, ok)
				assert.Contains(t, []string{NamePrimes, NameMonteCarlo, NameMatrix}, n.TaskName())
				w, ok := task.(balancer.Weighted)
				require.True(t, ok)
				assert.Equal(t, DefaultWeights[n.TaskName()], w.EstimatedWeight())
			}

			p, err := balancer.NewRoundRobin(3)
			require.NoError(t, err)
			report, err := p.Run(context.Background(), tasks)
			require.NoError(t, err)
			assert.Equal(t, TasksPerWorkload, report.Completed)
		})
	}
}

func TestCPUForPolicy_RoundRobinIsHomogeneous(t *testing.T) {
	g := NewGenerator(WithSeed(1))
	for _, task := range g.CPUForPolicy(balancer.RoundRobinName) {
		assert.Equal(t, NamePrimes, task.(balancer.Named).TaskName())
	}
}

func newFastCluster(t *testing.T, n int) *cluster.Cluster {
	t.Helper()
	c, err := cluster.New(n,
		cluster.WithSeed(3),
		cluster.WithBaseLatency(time.Millisecond),
		cluster.WithCapacity(20),
		cluster.WithServerOptions(cluster.WithTimeScale(0.0005)),
	)
	require.NoError(t, err)
	return c
}

func TestForPolicy(t *testing.T) {
	c := newFastCluster(t, 3)
	g := NewGenerator(WithSeed(2))

	kinds := func(tasks []balancer.Task) []string {
		names := make([]string, len(tasks))
		for i, task := range tasks {
			names[i] = task.(balancer.Named).TaskName()
		}
		return names
	}

	rr := g.ForPolicy(balancer.RoundRobinName, c)
	require.Len(t, rr, TasksPerWorkload)
	for _, name := range kinds(rr) {
		assert.Equal(t, "db_query", name)
	}

	reactive := kinds(g.ForPolicy(balancer.ReactiveName, c))
	assert.Equal(t, []string{
		"db_query", "db_query",
		"image_processing", "image_processing", "image_processing",
		"calculation",
		"image_processing", "image_processing",
	}, reactive)

	for _, name := range append(append([]string{}, balancer.ValidPolicies...), "unknown") {
		assert.Len(t, g.ForPolicy(name, c), TasksPerWorkload, name)
	}
}

func TestServerTasksRunAgainstCluster(t *testing.T) {
	c := newFastCluster(t, 2)
	g := NewGenerator(WithSeed(5))

	tasks := g.Mixed(c, 10)
	require.Len(t, tasks, 10)

	p, err := balancer.NewRoundRobin(4)
	require.NoError(t, err)
	report, err := p.Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Completed)

	total := 0
	for _, s := range c.Stats() {
		total += s.RequestsTotal
	}
	assert.Equal(t, 10, total)
}

// occupy fills the single slot of server 0 until the server clock advances.
func occupy(t *testing.T, c *cluster.Cluster, clock clockwork.FakeClock) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := c.Route(context.Background(), 0, cluster.KindCalculation, 1000)
		done <- err
	}()
	clock.BlockUntil(1)
	return done
}

func drain(t *testing.T, clock clockwork.FakeClock, done <-chan error) error {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		clock.Advance(time.Minute)
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("request did not finish")
			return nil
		}
	}
}

func singleSlotCluster(t *testing.T, clock clockwork.FakeClock) *cluster.Cluster {
	t.Helper()
	c, err := cluster.New(1,
		cluster.WithSeed(1),
		cluster.WithCapacity(1),
		cluster.WithBaseLatency(10*time.Millisecond),
		cluster.WithServerOptions(cluster.WithClock(clock)),
	)
	require.NoError(t, err)
	return c
}

func TestServerTask_RejectedAfterRetries(t *testing.T) {
	sclock := clockwork.NewFakeClock()
	c := singleSlotCluster(t, sclock)
	busy := occupy(t, c, sclock)

	g := NewGenerator(WithSeed(1), WithRetry(3, time.Millisecond))
	_, err := g.DBQuery(c, 0).Execute(context.Background())
	require.ErrorIs(t, err, cluster.ErrSaturated)
	assert.Equal(t, 3, c.Stats()[0].RequestsRejected)

	require.NoError(t, drain(t, sclock, busy))
}

func TestServerTask_SucceedsOnRetry(t *testing.T) {
	backoffs := []algorithms.BackoffType{
		algorithms.BackoffExponential,
		algorithms.BackoffJittered,
		algorithms.BackoffDecorrelated,
	}

	for _, bt := range backoffs {
		t.Run(bt.String(), func(t *testing.T) {
			sclock := clockwork.NewFakeClock()
			gclock := clockwork.NewFakeClock()
			c := singleSlotCluster(t, sclock)
			busy := occupy(t, c, sclock)

			g := NewGenerator(
				WithSeed(1),
				WithRetry(2, time.Second),
				WithBackoff(bt, 5*time.Second),
				WithClock(gclock),
			)
			task := g.Calculation(c, 0)

			result := make(chan error, 1)
			go func() {
				_, err := task.Execute(context.Background())
				result <- err
			}()

			// first attempt rejected, now waiting on the backoff
			gclock.BlockUntil(1)
			require.NoError(t, drain(t, sclock, busy))

			gclock.Advance(time.Minute)
			require.NoError(t, drain(t, sclock, result))

			stats := c.Stats()[0]
			assert.Equal(t, 1, stats.RequestsRejected)
			assert.Equal(t, 3, stats.RequestsTotal)
		})
	}
}

func TestNewGenerator_BackoffOnlyWhenRetrying(t *testing.T) {
	assert.Nil(t, NewGenerator(WithSeed(1)).newBackoff())

	g := NewGenerator(WithSeed(1), WithRetry(3, 10*time.Millisecond), WithBackoff(algorithms.BackoffExponential, 0))
	b := g.newBackoff()
	require.NotNil(t, b)
	assert.Equal(t, 10*time.Millisecond, b.NextDelay(0))
	assert.Equal(t, 20*time.Millisecond, b.NextDelay(1))
	assert.Equal(t, 100*time.Millisecond, b.NextDelay(10), "ceiling defaults to 10x the initial delay")
}

func TestDescribe(t *testing.T) {
	for _, name := range balancer.ValidPolicies {
		assert.NotEqual(t, "standard mixed workload", Describe(name), name)
	}
	assert.Equal(t, "standard mixed workload", Describe("unknown"))
}
