// Package config loads the runtime configuration from YAML with
// environment variable expansion. ${VAR} references in the file are
// resolved before parsing so secrets stay out of checked-in configs.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/praxishq/praxis/internal/memory/embeddings"
	"github.com/praxishq/praxis/internal/provider"
)

// Config is the root configuration.
type Config struct {
	Storage    StorageConfig     `yaml:"storage"`
	Provider   provider.Config   `yaml:"provider"`
	Embeddings embeddings.Config `yaml:"embeddings"`
	Engine     EngineConfig      `yaml:"engine"`
	Approval   ApprovalConfig    `yaml:"approval"`
	Logging    LoggingConfig     `yaml:"logging"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// EngineConfig tunes executor defaults; agent budgets override per run.
type EngineConfig struct {
	MaxSteps       int           `yaml:"max_steps"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// ApprovalConfig tunes the approval gate.
type ApprovalConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type TelemetryConfig struct {
	// Endpoint is the OTLP collector address; empty disables tracing.
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

type MetricsConfig struct {
	// Addr is the Prometheus scrape listen address; empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "praxis.db",
		},
		Provider: provider.Config{
			Name:   "anthropic",
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		Embeddings: embeddings.Config{
			Provider: "openai",
			APIKey:   os.Getenv("OPENAI_API_KEY"),
		},
		Engine: EngineConfig{
			MaxSteps:       10,
			DefaultTimeout: 5 * time.Minute,
		},
		Approval: ApprovalConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			SamplingRate: 1.0,
			Environment:  "development",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads a YAML config file over the defaults. Environment
// variables referenced as ${VAR} or $VAR are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Provider.Name {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}

	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be positive")
	}
	if c.Approval.TTL <= 0 {
		return fmt.Errorf("approval.ttl must be positive")
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be in [0, 1]")
	}
	return nil
}
