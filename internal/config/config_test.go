package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GITPILOT_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("GITPILOT_DATA_DIR", dir)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITPILOT_GITHUB_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddr != ":7080" {
		t.Fatalf("unexpected addr: %s", cfg.ServerAddr)
	}
	if cfg.DatabasePath != filepath.Join(dir, "gitpilot.db") {
		t.Fatalf("unexpected db path: %s", cfg.DatabasePath)
	}
	if cfg.MaxAgentTurns != 8 {
		t.Fatalf("unexpected max turns: %d", cfg.MaxAgentTurns)
	}
}

func TestLoadFileOverlaidByEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "server_addr: \":9000\"\ngithub_token: file-token\nmodel: gpt-4o-mini\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITPILOT_CONFIG", cfgPath)
	t.Setenv("GITPILOT_DATA_DIR", dir)
	t.Setenv("GITPILOT_GITHUB_TOKEN", "env-token")
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddr != ":9000" {
		t.Fatalf("file value not applied: %s", cfg.ServerAddr)
	}
	if cfg.GitHubToken != "env-token" {
		t.Fatalf("env should win over file, got %s", cfg.GitHubToken)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Fatalf("model not loaded: %s", cfg.Model)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no credentials")
	}
	cfg.AnthropicAPIKey = "key"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no GitHub auth")
	}
	cfg.GitHubToken = "tok"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
