// Package metrics holds the Prometheus collectors shared by the dispatch
// engine and the simulated cluster. Collectors are package level and are
// only exported through a registry when the caller asks for it.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "balancesim"

var (
	// DispatchDecisions counts assignment decisions by policy, strategy label and status.
	DispatchDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_decisions_total",
			Help:      "Dispatch decisions taken by each policy.",
		},
		[]string{"policy", "strategy", "status"},
	)

	// TaskDuration observes harness-measured task durations.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of executed tasks.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"policy", "outcome"},
	)

	// ServerRequests counts requests seen by each simulated server.
	ServerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_requests_total",
			Help:      "Requests handled by simulated servers, by outcome.",
		},
		[]string{"server", "outcome"},
	)

	ServerActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_active_connections",
			Help:      "Requests currently admitted by a simulated server.",
		},
		[]string{"server"},
	)

	ServerCPULoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_cpu_load",
			Help:      "Simulated CPU load signal of a server.",
		},
		[]string{"server"},
	)
)

// Collectors returns every collector of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		DispatchDecisions,
		TaskDuration,
		ServerRequests,
		ServerActiveConnections,
		ServerCPULoad,
	}
}

// NewRegistry returns a fresh registry with all collectors registered.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return reg, nil
}

// WriteText gathers g and writes it in the Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
