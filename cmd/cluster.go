package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/balancesim/cluster"
	"github.com/utkarsh5026/balancesim/workload"
)

var requests int // Requests sent by the cluster self-test

// clusterCmd exercises the simulated cluster without any policy
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Send a mixed set of requests straight to the simulated cluster",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		c, err := cluster.New(cfg.Servers, cfg.ClusterOptions()...)
		if err != nil {
			logrus.Fatalf("Could not build cluster: %v", err)
		}
		gen := workload.NewGenerator(cfg.WorkloadOptions()...)

		out := os.Stdout
		printSectionHeader(out, "CLUSTER SELF-TEST", "Requests are sent one after another")
		for i, task := range gen.Mixed(c, requests) {
			value, err := task.Execute(ctx)
			printRequest(out, i, task, value, err)
		}
		renderClusterStats(out, c.Stats())
	},
}

func init() {
	clusterCmd.Flags().IntVar(&requests, "requests", 5, "Number of requests to send")
}
