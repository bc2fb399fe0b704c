package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
logging:
  level: debug
  format: console
execution:
  mode: paper
  rate_limit: 10
cycle_interval_ms: 500
strategy:
  default_volatility: 0.05
  volatility:
    type: ewma
    params:
      alpha: 0.94
risk_rules:
  - name: max_inventory
    enabled: true
    critical: true
    params:
      max_inventory: 1000
  - name: hourly_loss_limit
    enabled: true
    params:
      max_loss: 50
markets:
  - id: FED-25BPS
    base_size: 100
    max_inventory: 1000
    settlement: 2026-09-18T18:00:00Z
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Execution.Mode != "paper" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if len(cfg.Risk) != 2 || cfg.Risk[0].Name != "max_inventory" || !cfg.Risk[0].Critical {
		t.Fatalf("risk rules not parsed: %+v", cfg.Risk)
	}
	if cfg.Markets[0].Settlement.IsZero() {
		t.Fatalf("settlement time not parsed")
	}
	// defaults survive a partial document
	if cfg.Server.MetricsAddr != ":9090" {
		t.Fatalf("default metrics addr lost: %s", cfg.Server.MetricsAddr)
	}
	if cfg.Strategy.Reservation.Type != "avellaneda_stoikov" {
		t.Fatalf("default reservation lost: %s", cfg.Strategy.Reservation.Type)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("MM_LOG_LEVEL", "warn")
	t.Setenv("MM_METRICS_ADDR", ":19090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "warn" || cfg.Server.MetricsAddr != ":19090" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Execution.Mode = "dry-run" }},
		{"no markets", func(c *Config) { c.Markets = nil }},
		{"duplicate market", func(c *Config) { c.Markets = append(c.Markets, c.Markets[0]) }},
		{"zero base size", func(c *Config) { c.Markets[0].BaseSize = 0 }},
		{"negative fee", func(c *Config) { c.FeeRate = -0.01 }},
		{"zero cycle", func(c *Config) { c.CycleIntervalMs = 0 }},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Markets = []MarketConfig{{ID: "X", BaseSize: 100, MaxInventory: 1000}}
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing file should error")
	}
}
