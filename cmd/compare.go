package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/workload"
)

// compareCmd runs every policy against the same cluster
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run every policy on its specialised workload and compare them",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		c, err := newCluster(cfg)
		if err != nil {
			logrus.Fatalf("Could not build cluster: %v", err)
		}
		gen := workload.NewGenerator(cfg.WorkloadOptions()...)

		bar := makeProgressBar(len(balancer.ValidPolicies))
		reports := make([]*balancer.Report, 0, len(balancer.ValidPolicies))
		for _, name := range balancer.ValidPolicies {
			bar.Describe("Running " + name)
			p, err := balancer.New(name, cfg.Workers, cfg.PolicyOptions()...)
			if err != nil {
				logrus.Fatalf("Could not build policy %s: %v", name, err)
			}
			report, err := p.Run(ctx, buildTasks(cfg, name, c, gen))
			if err != nil {
				logrus.Fatalf("Policy %s failed: %v", name, err)
			}
			reports = append(reports, report)
			_ = bar.Add(1)
		}
		_ = bar.Finish()

		out := os.Stdout
		for _, r := range reports {
			printSectionHeader(out, r.Policy, workload.Describe(r.Policy))
			renderWorkers(out, r)
		}
		renderComparison(out, reports)
		if c != nil {
			renderClusterStats(out, c.Stats())
		}
		if cfg.MetricsOut != "" {
			if err := writeMetrics(cfg.MetricsOut); err != nil {
				logrus.Fatalf("Could not write metrics: %v", err)
			}
		}
	},
}

func makeProgressBar(n int) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Comparing policies"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
