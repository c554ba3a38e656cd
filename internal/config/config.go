// Package config provides configuration management for GitPilot.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the GitPilot server and CLI.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":7080").
	ServerAddr string `yaml:"server_addr"`

	// DataDir is the directory for persistent data (SQLite DB, etc.).
	DataDir string `yaml:"data_dir"`

	// DatabasePath is the full path to the SQLite database file.
	DatabasePath string `yaml:"database_path"`

	// GitHubToken is the personal access token for GitHub API operations.
	GitHubToken string `yaml:"github_token"`

	// GitHub App credentials (optional). When configured, write operations
	// that fail with a permissions error are retried once with an
	// installation token.
	GitHubAppID             string `yaml:"github_app_id"`
	GitHubAppInstallationID string `yaml:"github_app_installation_id"`
	// GitHubAppPrivateKey is the PEM private key, optionally base64-encoded.
	GitHubAppPrivateKey string `yaml:"github_app_private_key"`

	// LLM provider API keys.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	// Model overrides the default model for the configured provider.
	Model string `yaml:"model"`

	// MaxAgentTurns bounds the exploration tool-call loop. Default: 8.
	MaxAgentTurns int `yaml:"max_agent_turns"`
}

// Load creates a Config from the optional ~/.gitpilot/config.yaml overlaid
// with environment variables. Environment variables win.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := loadFile(cfg, defaultConfigPath()); err != nil {
		return nil, err
	}

	dataDir := envOr("GITPILOT_DATA_DIR", orDefault(cfg.DataDir, defaultDataDir()))
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg.ServerAddr = envOr("GITPILOT_ADDR", orDefault(cfg.ServerAddr, ":7080"))
	cfg.DataDir = dataDir
	cfg.DatabasePath = envOr("GITPILOT_DB_PATH", orDefault(cfg.DatabasePath, filepath.Join(dataDir, "gitpilot.db")))
	cfg.GitHubToken = firstNonEmpty(os.Getenv("GITPILOT_GITHUB_TOKEN"), os.Getenv("GITHUB_TOKEN"), cfg.GitHubToken)
	cfg.GitHubAppID = envOr("GITPILOT_GH_APP_ID", cfg.GitHubAppID)
	cfg.GitHubAppInstallationID = envOr("GITPILOT_GH_APP_INSTALLATION_ID", cfg.GitHubAppInstallationID)
	cfg.GitHubAppPrivateKey = envOr("GITPILOT_GH_APP_PRIVATE_KEY", cfg.GitHubAppPrivateKey)
	cfg.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.OpenAIAPIKey = envOr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.Model = envOr("GITPILOT_MODEL", cfg.Model)
	if cfg.MaxAgentTurns <= 0 {
		cfg.MaxAgentTurns = 8
	}

	return cfg, nil
}

// Validate checks that required configuration is present for serving.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("at least one of ANTHROPIC_API_KEY or OPENAI_API_KEY is required")
	}
	if c.GitHubToken == "" && !c.AppConfigured() {
		return fmt.Errorf("GITHUB_TOKEN or GitHub App credentials are required")
	}
	return nil
}

// AppConfigured returns true if GitHub App credentials are present.
func (c *Config) AppConfigured() bool {
	return c.GitHubAppID != "" && c.GitHubAppInstallationID != "" && c.GitHubAppPrivateKey != ""
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func defaultConfigPath() string {
	if p := os.Getenv("GITPILOT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gitpilot", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gitpilot"
	}
	return filepath.Join(home, ".gitpilot")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
