// Package config loads the spider configuration.
//
// Values are layered, later layers winning:
//  1. Defaults
//  2. Optional YAML file (-config flag or CONFIG_PATH)
//  3. Environment variables prefixed with SPIDER_, where a double
//     underscore separates nested keys (SPIDER_BATCH__SIZE -> batch.size)
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// ConfigPathEnvVar names the config file when no path is passed explicitly.
	ConfigPathEnvVar = "CONFIG_PATH"

	// EnvPrefix is the prefix of environment overrides.
	EnvPrefix = "SPIDER_"
)

// Config is the complete spider configuration.
type Config struct {
	// ContestID is the judge's contest identifier.
	ContestID string `koanf:"contest_id"`

	// FetchRuns fetches every team's submission list instead of
	// synthesizing runs from the rank snapshot.
	FetchRuns bool `koanf:"fetch_runs"`

	Board   BoardConfig   `koanf:"board"`
	API     APIConfig     `koanf:"api"`
	Retry   RetryConfig   `koanf:"retry"`
	Batch   BatchConfig   `koanf:"batch"`
	Logging LoggingConfig `koanf:"logging"`
	Export  ExportConfig  `koanf:"export"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// BoardConfig holds static contest settings the judge does not report.
type BoardConfig struct {
	Name         string        `koanf:"name"`
	Penalty      time.Duration `koanf:"penalty"`
	FrozenTime   time.Duration `koanf:"frozen_time"`
	Organization string        `koanf:"organization"`
}

// APIConfig configures the judge transport. BreakerFailures 0 disables the
// circuit breaker; when set it must exceed the batch size, since one failed
// batch would otherwise open the circuit for every team's retries.
type APIConfig struct {
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	UserAgent         string        `koanf:"user_agent"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	BreakerFailures   uint32        `koanf:"breaker_failures"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout"`
}

// RetryConfig configures per-team retries.
type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
}

// BatchConfig configures team batching.
type BatchConfig struct {
	Size     int           `koanf:"size"`
	Delay    time.Duration `koanf:"delay"`
	MaxDelay time.Duration `koanf:"max_delay"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// ExportConfig selects the board exporters. Empty values disable an exporter.
type ExportConfig struct {
	Dir       string        `koanf:"dir"`
	RedisAddr string        `koanf:"redis_addr"`
	RedisDB   int           `koanf:"redis_db"`
	RedisTTL  time.Duration `koanf:"redis_ttl"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			Penalty:    20 * time.Minute,
			FrozenTime: time.Hour,
		},
		API: APIConfig{
			BaseURL:        "https://pintia.cn/api/competitions",
			Timeout:        10 * time.Second,
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
			BreakerTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		Batch: BatchConfig{
			Size:     100,
			Delay:    time.Second,
			MaxDelay: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Export: ExportConfig{
			Dir: "data",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// CONFIG_PATH when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransformFunc maps SPIDER_API__BASE_URL to api.base_url.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.ContestID == "":
		return fmt.Errorf("contest_id is required")
	case c.API.BaseURL == "":
		return fmt.Errorf("api.base_url is required")
	case c.API.Timeout <= 0:
		return fmt.Errorf("api.timeout must be > 0 (got %s)", c.API.Timeout)
	case c.API.RequestsPerSecond < 0:
		return fmt.Errorf("api.requests_per_second must be >= 0 (got %g)", c.API.RequestsPerSecond)
	case c.Retry.MaxAttempts < 1:
		return fmt.Errorf("retry.max_attempts must be >= 1 (got %d)", c.Retry.MaxAttempts)
	case c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0:
		return fmt.Errorf("retry backoff must not be negative")
	case c.Batch.Size < 1:
		return fmt.Errorf("batch.size must be >= 1 (got %d)", c.Batch.Size)
	case c.Batch.Delay < 0 || c.Batch.MaxDelay < 0:
		return fmt.Errorf("batch delays must not be negative")
	case c.Board.Penalty < 0 || c.Board.FrozenTime < 0:
		return fmt.Errorf("board penalty and frozen_time must not be negative")
	case c.API.BreakerFailures > 0 && int64(c.API.BreakerFailures) <= int64(c.Batch.Size):
		return fmt.Errorf("api.breaker_failures must be 0 or > batch.size (got %d, batch.size %d)",
			c.API.BreakerFailures, c.Batch.Size)
	}
	return nil
}
