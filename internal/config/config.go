package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the libra aggregator.
type Config struct {
	Interval     time.Duration // 0 means run once and exit
	Sources      SourcesConfig
	Sponsor      SponsorConfig
	Store        StoreConfig
	Notification NotificationConfig
	API          APIConfig
	Logging      LoggingConfig
}

// SourcesConfig holds per-source adapter settings.
type SourcesConfig struct {
	Simplify SimplifyConfig
	JSearch  JSearchConfig
}

// SimplifyConfig controls the GitHub listing-table source.
type SimplifyConfig struct {
	Enabled bool
	URL     string // defaults to the simplify new-grad README
}

// JSearchConfig controls the JSearch keyword-search source.
type JSearchConfig struct {
	Enabled    bool
	BaseURL    string
	APIKey     string // expanded from env var by Load
	Queries    []string
	DatePosted string // all, today, 3days, week, month
	MinDelay   time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// SponsorConfig controls the sponsorship reference set.
type SponsorConfig struct {
	ReferencePaths []string // delimited reference files, any mix of encodings
	CachePath      string   // parsed-set cache, rebuilt when sources change
	MinCases       int      // minimum filings for an employer to count
	FuzzyThreshold int      // similarity score out of 100
	Fuzzy          bool
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresDSN string // expanded from env var by Load
}

// NotificationConfig controls where run summaries go.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "discord"
	WebhookURL string `yaml:"webhook_url"` // required if type is "discord"
}

// APIConfig controls the read-only HTTP API.
type APIConfig struct {
	Addr string `yaml:"addr"` // listen address for the serve command
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	Output string `yaml:"output"` // stdout, stderr
}

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	Interval     string             `yaml:"interval"`
	Sources      rawSourcesConfig   `yaml:"sources"`
	Sponsor      rawSponsorConfig   `yaml:"sponsor"`
	Store        rawStoreConfig     `yaml:"store"`
	Notification NotificationConfig `yaml:"notification"`
	API          APIConfig          `yaml:"api"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type rawSourcesConfig struct {
	Simplify rawSimplifyConfig `yaml:"simplify"`
	JSearch  rawJSearchConfig  `yaml:"jsearch"`
}

type rawSimplifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type rawJSearchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	BaseURL    string   `yaml:"base_url"`
	APIKey     string   `yaml:"api_key"`
	Queries    []string `yaml:"queries"`
	DatePosted string   `yaml:"date_posted"`
	MinDelay   string   `yaml:"min_delay"`
	MaxRetries int      `yaml:"max_retries"`
	Backoff    string   `yaml:"backoff"`
}

type rawSponsorConfig struct {
	ReferencePaths []string `yaml:"reference_paths"`
	CachePath      string   `yaml:"cache_path"`
	MinCases       int      `yaml:"min_cases"`
	FuzzyThreshold int      `yaml:"fuzzy_threshold"`
	Fuzzy          *bool    `yaml:"fuzzy"`
}

type rawStoreConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// Environment variable references like ${JSEARCH_API_KEY} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := time.Duration(0)
	if raw.Interval != "" {
		interval, err = time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse interval %q: %w", raw.Interval, err)
		}
	}

	minDelay := 2 * time.Second
	if raw.Sources.JSearch.MinDelay != "" {
		minDelay, err = time.ParseDuration(raw.Sources.JSearch.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse sources.jsearch.min_delay %q: %w", raw.Sources.JSearch.MinDelay, err)
		}
	}

	backoff := 5 * time.Second
	if raw.Sources.JSearch.Backoff != "" {
		backoff, err = time.ParseDuration(raw.Sources.JSearch.Backoff)
		if err != nil {
			return nil, fmt.Errorf("parse sources.jsearch.backoff %q: %w", raw.Sources.JSearch.Backoff, err)
		}
	}

	maxRetries := raw.Sources.JSearch.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	minCases := raw.Sponsor.MinCases
	if minCases == 0 {
		minCases = 3
	}
	fuzzyThreshold := raw.Sponsor.FuzzyThreshold
	if fuzzyThreshold == 0 {
		fuzzyThreshold = 90
	}
	fuzzy := true
	if raw.Sponsor.Fuzzy != nil {
		fuzzy = *raw.Sponsor.Fuzzy
	}

	backend := raw.Store.Backend
	if backend == "" {
		backend = "sqlite"
	}
	sqlitePath := raw.Store.SQLitePath
	if sqlitePath == "" {
		sqlitePath = "libra.db"
	}

	cfg := &Config{
		Interval: interval,
		Sources: SourcesConfig{
			Simplify: SimplifyConfig{
				Enabled: raw.Sources.Simplify.Enabled,
				URL:     raw.Sources.Simplify.URL,
			},
			JSearch: JSearchConfig{
				Enabled:    raw.Sources.JSearch.Enabled,
				BaseURL:    raw.Sources.JSearch.BaseURL,
				APIKey:     raw.Sources.JSearch.APIKey,
				Queries:    raw.Sources.JSearch.Queries,
				DatePosted: raw.Sources.JSearch.DatePosted,
				MinDelay:   minDelay,
				MaxRetries: maxRetries,
				Backoff:    backoff,
			},
		},
		Sponsor: SponsorConfig{
			ReferencePaths: raw.Sponsor.ReferencePaths,
			CachePath:      raw.Sponsor.CachePath,
			MinCases:       minCases,
			FuzzyThreshold: fuzzyThreshold,
			Fuzzy:          fuzzy,
		},
		Store: StoreConfig{
			Backend:     backend,
			SQLitePath:  sqlitePath,
			PostgresDSN: raw.Store.PostgresDSN,
		},
		Notification: raw.Notification,
		API:          raw.API,
		Logging:      raw.Logging,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if !cfg.Sources.Simplify.Enabled && !cfg.Sources.JSearch.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if cfg.Sources.JSearch.Enabled && cfg.Sources.JSearch.APIKey == "" {
		return fmt.Errorf("sources.jsearch.api_key is required when jsearch is enabled")
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", cfg.Interval)
	}

	if cfg.Sponsor.MinCases < 1 {
		return fmt.Errorf("sponsor.min_cases must be at least 1, got %d", cfg.Sponsor.MinCases)
	}
	if cfg.Sponsor.FuzzyThreshold < 1 || cfg.Sponsor.FuzzyThreshold > 100 {
		return fmt.Errorf("sponsor.fuzzy_threshold must be between 1 and 100, got %d", cfg.Sponsor.FuzzyThreshold)
	}

	switch cfg.Store.Backend {
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required when backend is \"sqlite\"")
		}
	case "postgres":
		if cfg.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required when backend is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.backend must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Backend)
	}

	switch cfg.Notification.Type {
	case "", "log":
	case "discord":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"discord\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://discord.com/api/webhooks/") &&
			!strings.HasPrefix(cfg.Notification.WebhookURL, "https://discordapp.com/api/webhooks/") {
			return fmt.Errorf("notification.webhook_url must be a Discord webhook URL")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"discord\", got %q", cfg.Notification.Type)
	}

	return nil
}
