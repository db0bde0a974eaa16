package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	if cfg.Validator.CallBudget != 20 {
		t.Errorf("Expected default call budget 20, got %d", cfg.Validator.CallBudget)
	}
	if cfg.Validator.MinRequired != 2 {
		t.Errorf("Expected default min required 2, got %d", cfg.Validator.MinRequired)
	}
	if cfg.Identity.CacheValidity != 24*time.Hour {
		t.Errorf("Expected 24h cache validity, got %v", cfg.Identity.CacheValidity)
	}
	if cfg.Identity.BatchSize != 100 {
		t.Errorf("Expected batch size 100, got %d", cfg.Identity.BatchSize)
	}
	if cfg.Telemetry.Namespace != "trustgate" {
		t.Errorf("Expected telemetry namespace trustgate, got %q", cfg.Telemetry.Namespace)
	}
	if cfg.Watch.PollInterval != 5*time.Minute {
		t.Errorf("Expected 5m poll interval, got %v", cfg.Watch.PollInterval)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TRUSTGATE_VALIDATOR_CALL_BUDGET", "50")
	t.Setenv("TRUSTGATE_PLATFORM_BEARER_TOKEN", "env-token")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Validator.CallBudget != 50 {
		t.Errorf("Environment should override call budget, got %d", cfg.Validator.CallBudget)
	}
	if cfg.Platform.BearerToken != "env-token" {
		t.Errorf("Environment should supply bearer token, got %q", cfg.Platform.BearerToken)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
trust_list:
  url: https://example.com/trusted.txt
validator:
  call_budget: 8
  sample_cap: 300
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}
	if cfg.TrustList.URL != "https://example.com/trusted.txt" {
		t.Errorf("Expected trust list URL from file, got %q", cfg.TrustList.URL)
	}
	if cfg.Validator.CallBudget != 8 || cfg.Validator.SampleCap != 300 {
		t.Errorf("Expected validator overrides 8/300, got %d/%d", cfg.Validator.CallBudget, cfg.Validator.SampleCap)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug log level, got %q", cfg.Logging.Level)
	}
	// Untouched keys keep defaults.
	if cfg.Validator.PageSize != 1000 {
		t.Errorf("Expected default page size 1000, got %d", cfg.Validator.PageSize)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
