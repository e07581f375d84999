package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avirj/libra/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored listings over a read-only HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config, default :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg, debug)

	jobStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.API.Addr
	}
	if addr == "" {
		addr = ":8080"
	}

	server := api.New(jobStore, logger)
	if err := server.Run(addr); err != nil {
		logger.Error("api server error", "error", err)
		os.Exit(1)
	}
	return nil
}
