package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avirj/libra/internal/browse"
	"github.com/avirj/libra/internal/logging"
	"github.com/avirj/libra/internal/model"
)

var browseLimit int

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse stored listings in an interactive terminal UI",
	RunE:  runBrowse,
}

func init() {
	browseCmd.Flags().IntVar(&browseLimit, "limit", 500, "maximum listings to load")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The TUI owns the terminal, keep logging silent.
	jobStore, err := buildStore(cfg, logging.Silent())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer jobStore.Close()

	jobs, err := jobStore.ListJobs(context.Background(), model.JobFilter{Limit: browseLimit})
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Println("no stored listings yet, try `libra run` first")
		return nil
	}

	return browse.Run(jobs)
}
