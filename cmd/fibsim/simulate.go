package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DuoChen-317/csds425-projs/internal/fib"
	"github.com/DuoChen-317/csds425-projs/internal/log"
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Aliases: []string{"sim", "s"},
	Short:   "Run the forwarding simulation",
	Long: `Load the forwarding table, reject it if two rules claim the same prefix,
then print one decision per trace record.

A truncated record at the end of either file is ignored with a warning.

Example:
  fibsim simulate -f table.bin -t trace.bin
  fibsim simulate -f table.bin -t trace.bin --workers 4 --cache-size 65536 --stats`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTable(); err != nil {
			return err
		}
		if err := requireTrace(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runSimulate(ctx, cmd)
	},
}

func runSimulate(ctx context.Context, cmd *cobra.Command) error {
	opts := fib.Options{
		Workers:      cfg.Simulate.Workers,
		BatchSize:    cfg.Simulate.BatchSize,
		CacheSize:    cfg.Simulate.CacheSize,
		Policy:       conflictPolicy(),
		RequireRules: cfg.Simulate.RequireRules,
	}

	stats, err := fib.Simulate(ctx, tablePath, tracePath, cmd.OutOrStdout(), opts)
	if err != nil {
		return err
	}

	log.Get().WithField("packets", stats.Packets).
		WithField("forwarded", stats.Forwarded()).
		WithField("dropped", stats.Dropped()).
		WithField("elapsed", stats.Elapsed).
		Debug("Simulation finished")

	if cfg.Stats.Print {
		stats.Print(cmd.ErrOrStderr())
	}
	if cfg.Stats.MetricsFile != "" {
		if err := stats.WriteMetricsFile(cfg.Stats.MetricsFile); err != nil {
			return fmt.Errorf("exporting stats: %w", err)
		}
	}
	return nil
}

func init() {
	flags := simulateCmd.Flags()
	flags.IntP("workers", "w", 1, "Decision workers; >1 shards each batch and keeps output order")
	flags.Int("batch-size", 4096, "Packets per batch when running with several workers")
	flags.Int("cache-size", 0, "Destinations held in the lookup cache (0 disables it)")
	flags.String("conflict-policy", "abort", "Duplicate prefix handling: abort, keep-first")
	flags.Bool("require-rules", false, "Fail on an empty forwarding table")
	flags.Bool("stats", false, "Print a verdict summary to stderr")
	flags.String("metrics-file", "", "Write run counters in Prometheus textfile format")

	bindFlag("simulate.workers", flags.Lookup("workers"))
	bindFlag("simulate.batch_size", flags.Lookup("batch-size"))
	bindFlag("simulate.cache_size", flags.Lookup("cache-size"))
	bindFlag("simulate.conflict_policy", flags.Lookup("conflict-policy"))
	bindFlag("simulate.require_rules", flags.Lookup("require-rules"))
	bindFlag("stats.print", flags.Lookup("stats"))
	bindFlag("stats.metrics_file", flags.Lookup("metrics-file"))

	rootCmd.AddCommand(simulateCmd)
}
