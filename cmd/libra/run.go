package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avirj/libra/internal/model"
	"github.com/avirj/libra/internal/pipeline"
	"github.com/avirj/libra/internal/scheduler"
	"github.com/avirj/libra/internal/store"
)

var (
	runDryRun   bool
	runNoFuzzy  bool
	runSources  []string
	runInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one aggregation pass (or loop with --interval)",
	Long: "Fetch from every enabled source, deduplicate, tag sponsorship, and\n" +
		"upsert into the store. With --interval the pass repeats until\n" +
		"SIGINT/SIGTERM.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run the full pipeline but persist nothing")
	runCmd.Flags().BoolVar(&runNoFuzzy, "no-fuzzy", false, "disable approximate employer matching")
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "restrict to the named sources (e.g. simplify,jsearch)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "repeat the pass on this interval (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg, debug)

	var jobStore model.JobStore
	if runDryRun {
		logger.Info("dry-run mode enabled, nothing will be persisted")
		jobStore = store.NewNopStore()
	} else {
		jobStore, err = buildStore(cfg, logger)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer jobStore.Close()
	}

	httpClient := newHTTPClient()
	n := buildNotifier(cfg, httpClient, logger)
	p := buildPipeline(cfg, jobStore, n, httpClient, runSources, !runNoFuzzy, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := cfg.Interval
	if runInterval > 0 {
		interval = runInterval
	}

	if interval > 0 {
		sched := scheduler.New(p, interval, logger)
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
			os.Exit(1)
		}
		logger.Info("goodbye")
		return nil
	}

	stats, err := p.Run(ctx)
	printStats(stats)
	if err != nil {
		logger.Error("aggregation run failed", "stage", stats.Stage.String(), "error", err)
		os.Exit(1)
	}
	return nil
}

func printStats(stats *pipeline.Stats) {
	fmt.Println(stats.Summary())
}
