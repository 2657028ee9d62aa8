package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Optional YAML config file
	flagCfg    Config // Values bound to the shared flags
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "balancesim",
	Short: "Load balancing policy simulator for workers and simulated servers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// mustConfig resolves the configuration for cmd or exits.
func mustConfig(cmd *cobra.Command) *Config {
	cfg, err := resolveConfig(cmd.Flags(), configPath, &flagCfg)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file; explicit flags override it")
	bindFlags(rootCmd.PersistentFlags(), &flagCfg)

	rootCmd.AddCommand(runCmd, compareCmd, clusterCmd)
}
