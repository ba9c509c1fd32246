package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ToolTimeout != 30*time.Second {
		t.Errorf("ToolTimeout = %v, want 30s", cfg.Agent.ToolTimeout)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.Cache.Capacity != 10 {
		t.Errorf("Cache.Capacity = %d, want 10", cfg.Cache.Capacity)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %q, want anthropic", cfg.LLM.DefaultProvider)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CONCIERGE_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: ${CONCIERGE_TEST_KEY}
      default_model: claude-sonnet-4-20250514
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers["anthropic"].APIKey; got != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", got)
	}
}

func TestLoad_CompanyFeatures(t *testing.T) {
	path := writeConfig(t, `
companies:
  - id: co-1
    name: Glow Studio
    timezone: America/Sao_Paulo
    features:
      scheduling_enabled: true
      max_iterations: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Companies) != 1 {
		t.Fatalf("companies = %d, want 1", len(cfg.Companies))
	}
	company := cfg.Companies[0]
	if company.Features["scheduling_enabled"] != true {
		t.Errorf("scheduling_enabled = %v", company.Features["scheduling_enabled"])
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: cassandra\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoad_RejectsUnconfiguredDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic:
      api_key: sk-test
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unconfigured default provider")
	}
}

func TestLoad_RejectsDuplicateCompanies(t *testing.T) {
	path := writeConfig(t, `
companies:
  - id: co-1
    name: First
  - id: co-1
    name: Second
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate company id")
	}
}

func TestLoad_RejectsInvalidTimezone(t *testing.T) {
	path := writeConfig(t, `
companies:
  - id: co-1
    timezone: Mars/Olympus_Mons
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
