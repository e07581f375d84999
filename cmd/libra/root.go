package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/avirj/libra/internal/adapter"
	"github.com/avirj/libra/internal/config"
	"github.com/avirj/libra/internal/logging"
	"github.com/avirj/libra/internal/model"
	"github.com/avirj/libra/internal/notifier"
	"github.com/avirj/libra/internal/pipeline"
	"github.com/avirj/libra/internal/retry"
	"github.com/avirj/libra/internal/sponsor"
	"github.com/avirj/libra/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "libra",
	Short: "Job listing aggregator with sponsorship tagging",
	Long: "Libra pulls job listings from multiple sources, deduplicates them,\n" +
		"tags employers with a sponsorship filing record, and keeps the result\n" +
		"in a queryable store.",
	// Default to `run` so invoking the bare binary triggers one aggregation pass.
	RunE: runRun,
}

func init() {
	// Values in .env fill env var references in config.yaml; a missing file
	// is not an error.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: LIBRA_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > LIBRA_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("LIBRA_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(cfg *config.Config, dbg bool) *slog.Logger {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if dbg {
		opts.Level = "debug"
	}
	return logging.New(opts)
}

// buildStore opens the configured persistence backend.
func buildStore(cfg *config.Config, logger *slog.Logger) (model.JobStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		return store.NewPostgresStore(cfg.Store.PostgresDSN, logger)
	default:
		return store.NewSQLiteStore(cfg.Store.SQLitePath, logger)
	}
}

func buildNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "discord":
		logger.Info("using discord notifier")
		return notifier.NewDiscordNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// sourceEnabled reports whether name should run, honoring an optional
// comma-derived allowlist from the --sources flag.
func sourceEnabled(name string, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, a := range allow {
		if a == name {
			return true
		}
	}
	return false
}

// buildPipeline assembles the full run pipeline from config. The allow list
// restricts which configured sources are registered; fuzzy toggles
// approximate employer matching.
func buildPipeline(cfg *config.Config, jobStore model.JobStore, n model.Notifier, httpClient *http.Client, allow []string, fuzzy bool, logger *slog.Logger) *pipeline.Pipeline {
	tagger := pipeline.NewTagger(sponsor.Options{
		ReferencePaths: cfg.Sponsor.ReferencePaths,
		CachePath:      cfg.Sponsor.CachePath,
		MinCases:       cfg.Sponsor.MinCases,
		Logger:         logger,
	}, cfg.Sponsor.FuzzyThreshold, fuzzy, logger)

	p := pipeline.New(tagger, jobStore, n, logger)

	if cfg.Sources.Simplify.Enabled && sourceEnabled("simplify", allow) {
		simplify := adapter.NewSimplifyAdapter(cfg.Sources.Simplify.URL, httpClient, p.RecordSourceDrop, logger)
		p.AddSource(retry.Wrap(simplify, 2, 5*time.Second, p.RecordRetry, logger))
		logger.Info("registered source", "source", "simplify")
	}

	if cfg.Sources.JSearch.Enabled && sourceEnabled("jsearch", allow) {
		// JSearch retries internally to honor its per-request pacing, so it
		// is not wrapped in the generic retry decorator.
		jsearch := adapter.NewJSearchAdapter(adapter.JSearchOptions{
			BaseURL:    cfg.Sources.JSearch.BaseURL,
			APIKey:     cfg.Sources.JSearch.APIKey,
			Queries:    cfg.Sources.JSearch.Queries,
			DatePosted: cfg.Sources.JSearch.DatePosted,
			MinDelay:   cfg.Sources.JSearch.MinDelay,
			MaxRetries: cfg.Sources.JSearch.MaxRetries,
			Backoff:    cfg.Sources.JSearch.Backoff,
			OnRetry:    p.RecordRetry,
		}, httpClient, logger)
		p.AddSource(jsearch)
		logger.Info("registered source", "source", "jsearch")
	}

	return p
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
