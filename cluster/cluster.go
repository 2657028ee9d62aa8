// Package cluster simulates a fixed set of capacity-bounded servers with a
// decaying cpu load signal. A Cluster is created once and handed explicitly
// to whatever generates server-bound work; its counters accumulate for the
// lifetime of the value.
package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Cluster owns an ordered, immutable set of servers.
type Cluster struct {
	servers []*Server
}

// New creates numServers servers named server-0..server-N-1. Capacities and
// base latencies are drawn independently from the configured ranges unless
// WithServerSpecs fixes them.
func New(numServers int, opts ...Option) (*Cluster, error) {
	if numServers < 1 {
		return nil, fmt.Errorf("%w: need at least one server, got %d", ErrInvalidConfig, numServers)
	}

	cfg := newClusterConfig(opts...)
	if err := cfg.validate(numServers); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.seed)) // #nosec G404 -- simulation only
	servers := make([]*Server, 0, numServers)
	for i := range numServers {
		spec := cfg.draw(i, rng)

		// derived seed first so an explicit per-server seed still wins
		serverOpts := append([]ServerOption{WithServerSeed(rng.Int63())}, cfg.serverOpts...)
		s, err := NewServer(fmt.Sprintf("server-%d", i), spec.Capacity, spec.BaseLatency, serverOpts...)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}

	return &Cluster{servers: servers}, nil
}

// NewFromServers builds a cluster around already constructed servers.
func NewFromServers(servers ...*Server) (*Cluster, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: need at least one server", ErrInvalidConfig)
	}
	for i, s := range servers {
		if s == nil {
			return nil, fmt.Errorf("%w: server %d is nil", ErrInvalidConfig, i)
		}
	}
	return &Cluster{servers: append([]*Server(nil), servers...)}, nil
}

func (c *clusterConfig) validate(numServers int) error {
	if c.specs != nil {
		if len(c.specs) != numServers {
			return fmt.Errorf("%w: %d server specs for %d servers", ErrInvalidConfig, len(c.specs), numServers)
		}
		return nil
	}
	if c.capacityMin < 1 || c.capacityMax < c.capacityMin {
		return fmt.Errorf("%w: capacity range [%d, %d]", ErrInvalidConfig, c.capacityMin, c.capacityMax)
	}
	if c.latencyMin < 0 || c.latencyMax < c.latencyMin {
		return fmt.Errorf("%w: latency range [%v, %v]", ErrInvalidConfig, c.latencyMin, c.latencyMax)
	}
	return nil
}

func (c *clusterConfig) draw(i int, rng *rand.Rand) ServerSpec {
	if c.specs != nil {
		return c.specs[i]
	}
	capacity := c.capacityMin + rng.Intn(c.capacityMax-c.capacityMin+1)
	latency := c.latencyMin + time.Duration(rng.Float64()*float64(c.latencyMax-c.latencyMin))
	return ServerSpec{Capacity: capacity, BaseLatency: latency}
}

// Len returns the number of servers.
func (c *Cluster) Len() int {
	return len(c.servers)
}

// Server returns the server with the given id.
func (c *Cluster) Server(id int) (*Server, bool) {
	if id < 0 || id >= len(c.servers) {
		return nil, false
	}
	return c.servers[id], true
}

// Route sends a request to server id. An out-of-range id yields
// ErrServerNotFound rather than a panic.
func (c *Cluster) Route(ctx context.Context, id int, kind Kind, payload any) (Response, error) {
	s, ok := c.Server(id)
	if !ok {
		return Response{}, fmt.Errorf("server %d: %w", id, ErrServerNotFound)
	}
	return s.Process(ctx, kind, payload)
}

// Stats returns every server's stats in server order.
func (c *Cluster) Stats() []Stats {
	stats := make([]Stats, len(c.servers))
	for i, s := range c.servers {
		stats[i] = s.Stats()
	}
	return stats
}
