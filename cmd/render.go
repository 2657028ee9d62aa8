package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/balancesim/balancer"
	"github.com/utkarsh5026/balancesim/cluster"
	"github.com/utkarsh5026/balancesim/internal/cpu"
)

var (
	bold   = color.New(color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
)

func colorPrintLn(w io.Writer, c *color.Color, a ...any) {
	_, _ = c.Fprintln(w, a...)
}

func printSectionHeader(w io.Writer, title string, lines ...string) {
	_, _ = fmt.Fprintln(w)
	colorPrintLn(w, cyan, strings.ToUpper(title))
	for _, l := range lines {
		_, _ = fmt.Fprintln(w, "  "+l)
	}
	_, _ = fmt.Fprintln(w)
}

func printConfiguration(w io.Writer, cfg *Config, numTasks int) {
	colorPrintLn(w, bold, "Configuration:")
	_, _ = fmt.Fprintf(w, "  Policy:    %s\n", cfg.Policy)
	_, _ = fmt.Fprintf(w, "  Workers:   %d (%d CPU cores)\n", cfg.Workers, cpu.NumCPU())
	if cfg.PinCPU {
		_, _ = fmt.Fprintf(w, "  Pinning:   %s\n", pinningMode())
	}
	_, _ = fmt.Fprintf(w, "  Workload:  %s, %d tasks\n", cfg.Workload, numTasks)
	if cfg.Workload != WorkloadCPU {
		_, _ = fmt.Fprintf(w, "  Servers:   %d (time scale %.3g)\n", cfg.Servers, cfg.TimeScale)
		_, _ = fmt.Fprintf(w, "  Retries:   %d, %s backoff\n", cfg.Retries, cfg.Backoff)
	}
	_, _ = fmt.Fprintf(w, "  Seed:      %d\n", cfg.Seed)
}

func pinningMode() string {
	if cpu.Supported() {
		return "one core per worker"
	}
	return "thread lock only (core binding unsupported on this OS)"
}

// formatDuration formats a duration in the most appropriate unit.
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func renderReport(w io.Writer, r *balancer.Report) {
	printSectionHeader(w, "Assignment trace")
	renderTrace(w, r)
	printSectionHeader(w, "Worker results")
	renderWorkers(w, r)
	renderSummary(w, r)
}

func renderTrace(w io.Writer, r *balancer.Report) {
	for i, line := range r.TraceLines() {
		switch r.Trace[i].Status {
		case balancer.Rejected:
			colorPrintLn(w, red, "  "+line)
		case balancer.StartFailed:
			colorPrintLn(w, yellow, "  "+line)
		default:
			_, _ = fmt.Fprintln(w, "  "+line)
		}
	}
}

func renderWorkers(w io.Writer, r *balancer.Report) {
	table := tablewriter.NewWriter(w)
	table.Header("Worker", "Completed", "Failed", "Total Time", "Mean Time")
	for _, ws := range r.Workers {
		_ = table.Append(
			fmt.Sprintf("%d", ws.Worker),
			fmt.Sprintf("%d", ws.Completed),
			fmt.Sprintf("%d", ws.Failed),
			formatDuration(ws.TotalDuration),
			formatDuration(ws.MeanDuration),
		)
	}
	if err := table.Render(); err != nil {
		colorPrintLn(w, red, "Error in rendering worker table")
	}
}

func renderSummary(w io.Writer, r *balancer.Report) {
	_, _ = fmt.Fprintln(w)
	colorPrintLn(w, bold, "Summary:")
	_, _ = fmt.Fprintf(w, "  Dispatched: %d  Rejected: %d  Start failures: %d\n", r.Dispatched, r.Rejected, r.StartFailures)
	completed := fmt.Sprintf("  Completed:  %d", r.Completed)
	if r.Failed > 0 {
		_, _ = fmt.Fprintf(w, "%s  ", completed)
		colorPrintLn(w, red, fmt.Sprintf("Failed: %d", r.Failed))
		for _, res := range r.Results {
			if res.Err != nil {
				_, _ = fmt.Fprintf(w, "    task %d on worker %d: %v\n", res.Index, res.Worker, firstLine(res.Err.Error()))
			}
		}
	} else {
		colorPrintLn(w, green, completed+"  Failed: 0")
	}
	_, _ = fmt.Fprintf(w, "  Mean task time: %s  Elapsed: %s\n", formatDuration(r.MeanDuration), formatDuration(r.Elapsed))
}

// firstLine drops the stack trace attached to recovered panics.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func renderClusterStats(w io.Writer, stats []cluster.Stats) {
	printSectionHeader(w, "Cluster state")
	table := tablewriter.NewWriter(w)
	table.Header("Server", "Capacity", "Peak", "Active", "CPU Load", "Requests", "Rejected", "Rejection Rate")
	for _, s := range stats {
		_ = table.Append(
			s.Name,
			fmt.Sprintf("%d", s.Capacity),
			fmt.Sprintf("%d", s.PeakConnections),
			fmt.Sprintf("%d", s.ActiveConnections),
			fmt.Sprintf("%.0f%%", s.CPULoad*100),
			fmt.Sprintf("%d", s.RequestsTotal),
			fmt.Sprintf("%d", s.RequestsRejected),
			fmt.Sprintf("%.1f%%", s.RejectionRate*100),
		)
	}
	if err := table.Render(); err != nil {
		colorPrintLn(w, red, "Error in rendering cluster table")
	}
}

func rankIcon(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d", rank)
	}
}

// renderComparison ranks the runs by elapsed time.
func renderComparison(w io.Writer, reports []*balancer.Report) {
	if len(reports) == 0 {
		return
	}
	ranked := append([]*balancer.Report(nil), reports...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Elapsed < ranked[j].Elapsed })
	fastest := ranked[0].Elapsed

	printSectionHeader(w, "Policy comparison", "Ranked by wall-clock time of the whole run")
	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Policy", "Elapsed", "Dispatched", "Rejected", "Failed", "Mean Task", "vs Fastest")
	for i, r := range ranked {
		vs := "baseline"
		if i > 0 && fastest > 0 {
			vs = fmt.Sprintf("%.2fx", float64(r.Elapsed)/float64(fastest))
		}
		_ = table.Append(
			rankIcon(i+1),
			r.Policy,
			formatDuration(r.Elapsed),
			fmt.Sprintf("%d", r.Dispatched),
			fmt.Sprintf("%d", r.Rejected),
			fmt.Sprintf("%d", r.Failed),
			formatDuration(r.MeanDuration),
			vs,
		)
	}
	if err := table.Render(); err != nil {
		colorPrintLn(w, red, "Error in rendering comparison table")
	}
}

func printRequest(w io.Writer, i int, task balancer.Task, value any, err error) {
	name := "request"
	if n, ok := task.(balancer.Named); ok {
		name = n.TaskName()
	}
	if err != nil {
		colorPrintLn(w, red, fmt.Sprintf("  #%d %-16s error: %v", i, name, err))
		return
	}
	_, _ = fmt.Fprintf(w, "  #%d %-16s %v\n", i, name, value)
}
