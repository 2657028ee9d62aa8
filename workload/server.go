package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/cluster"
	"github.com/utkarsh5026/balancesim/internal/algorithms"
)

// AnyServer lets the generator pick the target server at random.
const AnyServer = -1

var queries = []string{
	"SELECT * FROM users WHERE active=1",
	"UPDATE products SET price=price*1.05 WHERE category='electronics'",
	"SELECT p.name, c.name FROM products p JOIN categories c ON p.category_id = c.id",
	"DELETE FROM sessions WHERE created < NOW() - INTERVAL 1 DAY",
}

// Generator builds tasks. It is safe for concurrent use.
type Generator struct {
	cfg *config

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(opts ...Option) *Generator {
	cfg := newConfig(opts...)
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.seed)), // #nosec G404 -- simulation only
	}
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func (g *Generator) int63() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Int63()
}

func (g *Generator) target(c *cluster.Cluster, serverID int) int {
	if serverID == AnyServer {
		return g.intn(c.Len())
	}
	return serverID
}

// Calculation builds a numeric integration request for serverID.
func (g *Generator) Calculation(c *cluster.Cluster, serverID int) balancer.Task {
	return g.serverTask(c, g.target(c, serverID), cluster.KindCalculation, 5000+g.intn(15001))
}

// DBQuery builds a database query request for serverID.
func (g *Generator) DBQuery(c *cluster.Cluster, serverID int) balancer.Task {
	return g.serverTask(c, g.target(c, serverID), cluster.KindDBQuery, queries[g.intn(len(queries))])
}

// ImageProcessing builds an image filter request for serverID.
func (g *Generator) ImageProcessing(c *cluster.Cluster, serverID int) balancer.Task {
	return g.serverTask(c, g.target(c, serverID), cluster.KindImageProcessing, nil)
}

// Mixed builds n requests of random kinds against random servers.
func (g *Generator) Mixed(c *cluster.Cluster, n int) []balancer.Task {
	makers := []func(*cluster.Cluster, int) balancer.Task{g.Calculation, g.DBQuery, g.ImageProcessing}
	tasks := make([]balancer.Task, 0, n)
	for range n {
		tasks = append(tasks, makers[g.intn(len(makers))](c, AnyServer))
	}
	return tasks
}

// serverTask turns a request into a task. A rejection by the server is the
// task's error once the retries are spent.
func (g *Generator) serverTask(c *cluster.Cluster, serverID int, kind cluster.Kind, payload any) balancer.Task {
	backoff := g.newBackoff()
	return balancer.NewTask(string(kind), DefaultWeights[string(kind)], func(ctx context.Context) (any, error) {
		resp, err := g.route(ctx, c, serverID, kind, payload, backoff)
		if err != nil {
			return nil, fmt.Errorf("server %d: %w", serverID, err)
		}
		return resp.Result, nil
	})
}

// newBackoff returns nil when requests are never retried.
func (g *Generator) newBackoff() algorithms.BackoffStrategy {
	jitterSeed := g.int63()
	if g.cfg.retryAttempts <= 1 {
		return nil
	}
	rng := rand.New(rand.NewSource(jitterSeed)) // #nosec G404 -- jitter only
	return algorithms.NewBackoffStrategy(g.cfg.backoff, g.cfg.retryDelay, g.cfg.retryMaxDelay, 0.5, rng)
}

func (g *Generator) route(ctx context.Context, c *cluster.Cluster, serverID int, kind cluster.Kind, payload any, backoff algorithms.BackoffStrategy) (cluster.Response, error) {
	attempts := 1
	if backoff != nil {
		attempts = max(g.cfg.retryAttempts, 1)
		backoff.Reset()
	}

	for attempt := range attempts {
		resp, err := c.Route(ctx, serverID, kind, payload)
		if err == nil || !errors.Is(err, cluster.ErrSaturated) || attempt == attempts-1 {
			return resp, err
		}

		delay := backoff.NextDelay(attempt)
		logrus.WithFields(logrus.Fields{
			"server":  serverID,
			"kind":    kind,
			"attempt": attempt + 1,
			"delay":   delay,
		}).Debug("server saturated, retrying")

		select {
		case <-g.cfg.clock.After(delay):
		case <-ctx.Done():
			return cluster.Response{}, ctx.Err()
		}
	}
	return cluster.Response{}, nil
}
