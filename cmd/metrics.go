package cmd

import (
	"fmt"
	"os"

	"github.com/utkarsh5026/balancesim/internal/metrics"
)

// writeMetrics dumps every collector in the text exposition format.
func writeMetrics(path string) error {
	reg, err := metrics.NewRegistry()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	if err := metrics.WriteText(f, reg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
