package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/cluster"
	"github.com/utkarsh5026/balancesim/workload"
)

// runCmd runs one policy over one workload
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single dispatch policy and report the assignment",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		c, err := newCluster(cfg)
		if err != nil {
			logrus.Fatalf("Could not build cluster: %v", err)
		}
		gen := workload.NewGenerator(cfg.WorkloadOptions()...)
		tasks := buildTasks(cfg, cfg.Policy, c, gen)

		p, err := balancer.New(cfg.Policy, cfg.Workers, cfg.PolicyOptions()...)
		if err != nil {
			logrus.Fatalf("Could not build policy: %v", err)
		}

		out := os.Stdout
		printConfiguration(out, cfg, len(tasks))
		report, err := p.Run(ctx, tasks)
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}

		renderReport(out, report)
		if c != nil {
			renderClusterStats(out, c.Stats())
		}
		if cfg.MetricsOut != "" {
			if err := writeMetrics(cfg.MetricsOut); err != nil {
				logrus.Fatalf("Could not write metrics: %v", err)
			}
			logrus.Infof("Metrics written to %s", cfg.MetricsOut)
		}
	},
}

// newCluster builds the cluster for server-bound workloads. CPU workloads
// get a nil cluster.
func newCluster(cfg *Config) (*cluster.Cluster, error) {
	if cfg.Workload == WorkloadCPU {
		return nil, nil
	}
	return cluster.New(cfg.Servers, cfg.ClusterOptions()...)
}

func buildTasks(cfg *Config, policy string, c *cluster.Cluster, gen *workload.Generator) []balancer.Task {
	switch cfg.Workload {
	case WorkloadCPU:
		return gen.CPUForPolicy(policy)
	case WorkloadServer:
		return gen.Mixed(c, cfg.Tasks)
	default:
		return gen.ForPolicy(policy, c)
	}
}
