package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "praxis.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("driver = %s, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Approval.TTL != 24*time.Hour {
		t.Errorf("approval ttl = %v, want 24h", cfg.Approval.TTL)
	}
	if cfg.Engine.MaxSteps != 10 {
		t.Errorf("max steps = %d, want 10", cfg.Engine.MaxSteps)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
provider:
  name: openai
  model: gpt-4o-mini
engine:
  max_steps: 25
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("driver = %s, want memory", cfg.Storage.Driver)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("provider = %+v, want openai/gpt-4o-mini", cfg.Provider)
	}
	if cfg.Engine.MaxSteps != 25 {
		t.Errorf("max steps = %d, want 25", cfg.Engine.MaxSteps)
	}
	// Untouched sections keep their defaults.
	if cfg.Approval.TTL != 24*time.Hour {
		t.Errorf("approval ttl = %v, want default 24h", cfg.Approval.TTL)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("PRAXIS_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
provider:
  name: anthropic
  api_key: ${PRAXIS_TEST_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want expanded env value", cfg.Provider.APIKey)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "storge:\n  driver: sqlite\n")
	if _, err := Load(path); err == nil {
		t.Fatal("misspelled section should fail to parse")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults are valid", func(c *Config) {}, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, false},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, false},
		{"unknown provider", func(c *Config) { c.Provider.Name = "llama" }, false},
		{"zero max steps", func(c *Config) { c.Engine.MaxSteps = 0 }, false},
		{"negative ttl", func(c *Config) { c.Approval.TTL = -time.Hour }, false},
		{"sampling rate above one", func(c *Config) { c.Telemetry.SamplingRate = 1.5 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
