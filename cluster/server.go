package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/utkarsh5026/balancesim/internal/metrics"
)

// Response is the outcome of an admitted request.
type Response struct {
	Server     string
	Kind       Kind
	Result     string
	Latency    time.Duration
	Processing time.Duration
}

// Stats is a point-in-time copy of a server's counters.
type Stats struct {
	Name              string
	Capacity          int
	ActiveConnections int
	PeakConnections   int
	CPULoad           float64
	RequestsTotal     int
	RequestsRejected  int
	RejectionRate     float64
}

// Server is a capacity-bounded simulated resource. Every counter and the
// cpu load signal are guarded by mu; requests on different servers never
// coordinate.
type Server struct {
	name        string
	capacity    int
	baseLatency time.Duration
	cfg         *serverConfig

	mu       sync.Mutex
	rng      *rand.Rand
	active   int
	peak     int
	cpuLoad  float64
	total    int
	rejected int
}

// NewServer creates a server that admits at most capacity concurrent requests.
func NewServer(name string, capacity int, baseLatency time.Duration, opts ...ServerOption) (*Server, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: server %s capacity must be >= 1, got %d", ErrInvalidConfig, name, capacity)
	}
	if baseLatency < 0 {
		return nil, fmt.Errorf("%w: server %s base latency must be >= 0, got %v", ErrInvalidConfig, name, baseLatency)
	}

	cfg := newServerConfig(opts...)
	s := &Server{
		name:        name,
		capacity:    capacity,
		baseLatency: baseLatency,
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.seed)), // #nosec G404 -- simulation only
		cpuLoad:     MinCPULoad,
	}
	metrics.ServerActiveConnections.WithLabelValues(name).Set(0)
	metrics.ServerCPULoad.WithLabelValues(name).Set(s.cpuLoad)

	logrus.WithFields(logrus.Fields{
		"server":   name,
		"capacity": capacity,
		"latency":  baseLatency,
	}).Debug("server started")
	return s, nil
}

// Name returns the server name used in stats and metric labels.
func (s *Server) Name() string { return s.name }

// Capacity is the maximum number of concurrently admitted requests.
func (s *Server) Capacity() int { return s.capacity }

// BaseLatency is the unscaled lower bound of the simulated network latency.
func (s *Server) BaseLatency() time.Duration { return s.baseLatency }

// plan holds the random draws for one admitted request.
type plan struct {
	latency        time.Duration
	processingBase float64
	work           work
}

// Process runs one request of the given kind. A server at capacity rejects
// the request immediately with ErrSaturated. An admitted request sleeps for
// the simulated latency and processing time, raises the cpu load and
// schedules the detached decay of that raise. The active connection slot is
// always released, including when ctx ends the request early.
func (s *Server) Process(ctx context.Context, kind Kind, payload any) (Response, error) {
	p, err := s.admit(kind, payload)
	if err != nil {
		return Response{}, err
	}
	defer s.release()

	if err := s.sleep(ctx, p.latency); err != nil {
		return Response{}, s.abort(kind, err)
	}

	s.mu.Lock()
	load := s.cpuLoad
	s.mu.Unlock()

	processing := s.scaled(seconds(p.processingBase * (1 + load)))
	if err := s.sleep(ctx, processing+p.work.extra); err != nil {
		return Response{}, s.abort(kind, err)
	}

	s.raiseLoad()
	metrics.ServerRequests.WithLabelValues(s.name, "accepted").Inc()

	return Response{
		Server:     s.name,
		Kind:       kind,
		Result:     p.work.result,
		Latency:    p.latency,
		Processing: processing + p.work.extra,
	}, nil
}

// admit is the admission check. The capacity test and the increment happen
// under one lock acquisition.
func (s *Server) admit(kind Kind, payload any) (plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if s.active >= s.capacity {
		s.rejected++
		metrics.ServerRequests.WithLabelValues(s.name, "rejected").Inc()
		logrus.WithFields(logrus.Fields{
			"server": s.name,
			"kind":   kind,
			"active": s.active,
		}).Debug("request rejected")
		return plan{}, fmt.Errorf("%s: %w", s.name, ErrSaturated)
	}

	s.active++
	s.peak = max(s.peak, s.active)
	metrics.ServerActiveConnections.WithLabelValues(s.name).Set(float64(s.active))

	r := rangeFor(kind)
	p := plan{
		latency:        s.scaled(time.Duration(float64(s.baseLatency) * (1 + s.rng.Float64()))),
		processingBase: uniform(s.rng, r.min, r.max),
		work:           synthesize(kind, payload, s.rng),
	}
	p.work.extra = s.scaled(p.work.extra)
	return p, nil
}

func (s *Server) release() {
	s.mu.Lock()
	s.active--
	active := s.active
	s.mu.Unlock()

	metrics.ServerActiveConnections.WithLabelValues(s.name).Set(float64(active))
}

func (s *Server) abort(kind Kind, err error) error {
	metrics.ServerRequests.WithLabelValues(s.name, "aborted").Inc()
	logrus.WithFields(logrus.Fields{
		"server": s.name,
		"kind":   kind,
	}).WithError(err).Debug("request aborted")
	return fmt.Errorf("%s: %w", s.name, err)
}

// raiseLoad bumps the cpu load and schedules its partial decay. The decay
// runs on the clock's timer goroutine and never blocks the request.
func (s *Server) raiseLoad() {
	s.mu.Lock()
	s.cpuLoad = min(MaxCPULoad, s.cpuLoad+s.cfg.loadIncrement)
	load := s.cpuLoad
	s.mu.Unlock()

	metrics.ServerCPULoad.WithLabelValues(s.name).Set(load)
	s.cfg.clock.AfterFunc(s.scaled(s.cfg.decayDelay), s.decay)
}

func (s *Server) decay() {
	s.mu.Lock()
	s.cpuLoad = max(MinCPULoad, s.cpuLoad-s.cfg.decayStep)
	load := s.cpuLoad
	s.mu.Unlock()

	metrics.ServerCPULoad.WithLabelValues(s.name).Set(load)
}

func (s *Server) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-s.cfg.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) scaled(d time.Duration) time.Duration {
	if s.cfg.timeScale == 1 {
		return d
	}
	return time.Duration(float64(d) * s.cfg.timeScale)
}

// Stats returns a consistent snapshot of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Name:              s.name,
		Capacity:          s.capacity,
		ActiveConnections: s.active,
		PeakConnections:   s.peak,
		CPULoad:           s.cpuLoad,
		RequestsTotal:     s.total,
		RequestsRejected:  s.rejected,
		RejectionRate:     float64(s.rejected) / float64(max(1, s.total)),
	}
}
