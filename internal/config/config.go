// Package config provides typed configuration for the ingestion pipeline.
// Configuration is layered: built-in defaults, then an optional JSON file,
// then environment variables (highest priority) processed with envconfig
// under the OHLCV prefix. Stages receive their configuration as explicit
// structs; nothing reads ambient global state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the complete pipeline configuration.
type Config struct {
	Exchange   ExchangeConfig   `json:"exchange"`
	Validation ValidationConfig `json:"validation"`
	GapFill    GapFillConfig    `json:"gap_fill"`
	Outliers   OutlierConfig    `json:"outliers"`
	Storage    StorageConfig    `json:"storage"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Logging    LoggingConfig    `json:"logging"`
}

// ExchangeConfig configures the exchange fetch adapter.
type ExchangeConfig struct {
	// ID identifies the exchange in output paths and manifests (e.g. "binance").
	ID string `json:"id" envconfig:"EXCHANGE_ID"`

	// BaseURL is the exchange REST endpoint.
	BaseURL string `json:"base_url" envconfig:"EXCHANGE_BASE_URL"`

	// RateLimit is the request budget in requests per second, shared across
	// all symbol pipelines hitting this exchange.
	RateLimit float64 `json:"rate_limit" envconfig:"EXCHANGE_RATE_LIMIT"`

	// Burst is the limiter burst size.
	Burst int `json:"burst" envconfig:"EXCHANGE_BURST"`

	// Retries is the maximum retry attempt count for recoverable fetch errors.
	Retries int `json:"retries" envconfig:"EXCHANGE_RETRIES"`

	// BackoffBase is the initial backoff delay; delays grow as base * 2^attempt.
	BackoffBase string `json:"backoff_base" envconfig:"EXCHANGE_BACKOFF_BASE"`

	// PageLimit is the maximum rows requested per fetch call.
	PageLimit int `json:"page_limit" envconfig:"EXCHANGE_PAGE_LIMIT"`

	// Timeout is the HTTP request timeout.
	Timeout string `json:"timeout" envconfig:"EXCHANGE_TIMEOUT"`
}

// ValidationConfig configures batch validation.
type ValidationConfig struct {
	// MissingThreshold is the maximum tolerated fraction of missing values
	// per required column. The boundary is inclusive: a ratio exactly at the
	// threshold passes.
	MissingThreshold float64 `json:"missing_threshold" envconfig:"MISSING_THRESHOLD"`

	// Strict escalates OHLC consistency violations from advisory to fatal.
	Strict bool `json:"strict" envconfig:"VALIDATION_STRICT"`
}

// GapFillConfig configures gap repair.
type GapFillConfig struct {
	// ShortGapMinutes bounds the total duration of a missing-interval run
	// that forward-fill is allowed to repair. Longer runs are only counted.
	ShortGapMinutes int `json:"short_gap_minutes" envconfig:"SHORT_GAP_MINUTES"`
}

// OutlierConfig configures outlier flagging.
type OutlierConfig struct {
	// PriceJump flags a bar when |close_t/close_{t-1} - 1| exceeds it.
	PriceJump float64 `json:"price_jump" envconfig:"OUTLIER_PRICE_JUMP"`

	// VolumeSpike flags a bar when its volume exceeds the trailing rolling
	// mean multiplied by this factor.
	VolumeSpike float64 `json:"volume_spike" envconfig:"OUTLIER_VOLUME_SPIKE"`

	// RollingWindow is the trailing window length for the volume mean.
	RollingWindow int `json:"rolling_window" envconfig:"OUTLIER_ROLLING_WINDOW"`

	// EnsureMinimum, when positive, pads the flagged set with randomly chosen
	// rows up to this count. Test support only; leave at zero in production.
	EnsureMinimum int `json:"ensure_minimum" envconfig:"OUTLIER_ENSURE_MINIMUM"`
}

// StorageConfig configures the partitioned store.
type StorageConfig struct {
	// Root is the base directory for partition files and manifests.
	Root string `json:"root" envconfig:"STORAGE_ROOT"`

	// Format selects the partition file format: "parquet" or "csv".
	Format string `json:"format" envconfig:"STORAGE_FORMAT"`
}

// PipelineConfig configures batch orchestration.
type PipelineConfig struct {
	// Concurrency bounds the number of symbol pipelines running in parallel.
	Concurrency int `json:"concurrency" envconfig:"PIPELINE_CONCURRENCY"`

	// ContinueOnError keeps processing remaining symbols when one fails.
	ContinueOnError bool `json:"continue_on_error" envconfig:"PIPELINE_CONTINUE_ON_ERROR"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `json:"level" envconfig:"LOG_LEVEL"`
	Format     string `json:"format" envconfig:"LOG_FORMAT"` // "json" or "text"
	Output     string `json:"output" envconfig:"LOG_OUTPUT"` // "stdout", "stderr", "file"
	FilePath   string `json:"file_path" envconfig:"LOG_FILE_PATH"`
	MaxSizeMB  int    `json:"max_size_mb" envconfig:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `json:"max_backups" envconfig:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `json:"max_age_days" envconfig:"LOG_MAX_AGE_DAYS"`
	Compress   bool   `json:"compress" envconfig:"LOG_COMPRESS"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			ID:          "binance",
			BaseURL:     "https://api.exchange.example.com",
			RateLimit:   10,
			Burst:       1,
			Retries:     5,
			BackoffBase: "1s",
			PageLimit:   1000,
			Timeout:     "30s",
		},
		Validation: ValidationConfig{
			MissingThreshold: 0.05,
		},
		GapFill: GapFillConfig{
			ShortGapMinutes: 60,
		},
		Outliers: OutlierConfig{
			PriceJump:     0.2,
			VolumeSpike:   3.0,
			RollingWindow: 96,
		},
		Storage: StorageConfig{
			Root:   "data",
			Format: "parquet",
		},
		Pipeline: PipelineConfig{
			Concurrency:     4,
			ContinueOnError: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the effective configuration: defaults, overridden by the JSON
// file at path (when non-empty and present), overridden by OHLCV_* environment
// variables. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("ohlcv", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Exchange.ID == "" {
		return fmt.Errorf("exchange.id is required")
	}
	if c.Exchange.RateLimit <= 0 {
		return fmt.Errorf("exchange.rate_limit must be positive")
	}
	if c.Exchange.Retries < 0 {
		return fmt.Errorf("exchange.retries cannot be negative")
	}
	if c.Exchange.PageLimit <= 0 {
		return fmt.Errorf("exchange.page_limit must be positive")
	}
	if _, err := c.Exchange.BackoffBaseDuration(); err != nil {
		return fmt.Errorf("exchange.backoff_base: %w", err)
	}
	if _, err := c.Exchange.TimeoutDuration(); err != nil {
		return fmt.Errorf("exchange.timeout: %w", err)
	}
	if c.Validation.MissingThreshold < 0 || c.Validation.MissingThreshold > 1 {
		return fmt.Errorf("validation.missing_threshold must be in [0, 1]")
	}
	if c.GapFill.ShortGapMinutes < 0 {
		return fmt.Errorf("gap_fill.short_gap_minutes cannot be negative")
	}
	if c.Outliers.PriceJump <= 0 {
		return fmt.Errorf("outliers.price_jump must be positive")
	}
	if c.Outliers.VolumeSpike <= 0 {
		return fmt.Errorf("outliers.volume_spike must be positive")
	}
	if c.Outliers.RollingWindow <= 0 {
		return fmt.Errorf("outliers.rolling_window must be positive")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Storage.Format != "parquet" && c.Storage.Format != "csv" {
		return fmt.Errorf("storage.format must be \"parquet\" or \"csv\", got %q", c.Storage.Format)
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be positive")
	}
	return nil
}

// BackoffBaseDuration parses the configured initial backoff delay.
func (e *ExchangeConfig) BackoffBaseDuration() (time.Duration, error) {
	return parseDuration(e.BackoffBase, "backoff_base")
}

// TimeoutDuration parses the configured HTTP timeout.
func (e *ExchangeConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(e.Timeout, "timeout")
}

// ShortGap returns the short-gap bound as a duration.
func (g *GapFillConfig) ShortGap() time.Duration {
	return time.Duration(g.ShortGapMinutes) * time.Minute
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s cannot be empty", field)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}
