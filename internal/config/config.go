package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/openclaw/openclaw/internal/authz"
)

// Config root configuration
type Config struct {
	Agent AgentConfig `mapstructure:"agent"`
	Authz AuthzConfig `mapstructure:"authz"`
	Tools ToolsConfig `mapstructure:"tools"`
	Log   LogConfig   `mapstructure:"log"`
}

// AgentConfig agent identity and workspace settings
type AgentConfig struct {
	ID        string `mapstructure:"id"`
	Workspace string `mapstructure:"workspace"`
}

// AuthzConfig policy decision point settings
type AuthzConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Endpoint           string `mapstructure:"endpoint"`
	ConstraintEndpoint string `mapstructure:"constraint_endpoint"`
	TimeoutMs          int    `mapstructure:"timeout_ms"`
	FailOpen           bool   `mapstructure:"fail_open"`
	Namespace          string `mapstructure:"namespace"`
}

// ToolsConfig tool settings
type ToolsConfig struct {
	Exec ExecToolConfig `mapstructure:"exec"`
}

// ExecToolConfig shell exec settings
type ExecToolConfig struct {
	Timeout             int  `mapstructure:"timeout"`
	RestrictToWorkspace bool `mapstructure:"restrict_to_workspace"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Agent: AgentConfig{
			ID:        "main",
			Workspace: filepath.Join(homeDir, ".openclaw", "workspace"),
		},
		Authz: AuthzConfig{
			Enabled:            false,
			Endpoint:           "http://127.0.0.1:8080/v1/authorize",
			ConstraintEndpoint: "http://127.0.0.1:8080/v1/constraints",
			TimeoutMs:          2000,
			FailOpen:           false,
			Namespace:          "OpenClaw",
		},
		Tools: ToolsConfig{
			Exec: ExecToolConfig{
				Timeout:             60,
				RestrictToWorkspace: true,
			},
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the openclaw config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".openclaw")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("OPENCLAW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Authz.TimeoutMs < 0 {
		return fmt.Errorf("authz.timeout_ms must not be negative, got %d", c.Authz.TimeoutMs)
	}
	if c.Authz.TimeoutMs == 0 {
		c.Authz.TimeoutMs = 2000
	}

	if c.Authz.Enabled && strings.TrimSpace(c.Authz.Endpoint) == "" {
		return fmt.Errorf("authz.endpoint must be set when authz.enabled is true")
	}

	if strings.TrimSpace(c.Authz.Namespace) == "" {
		c.Authz.Namespace = "OpenClaw"
	}

	if c.Tools.Exec.Timeout < 0 {
		return fmt.Errorf("tools.exec.timeout must not be negative, got %d", c.Tools.Exec.Timeout)
	}
	if c.Tools.Exec.Timeout == 0 {
		c.Tools.Exec.Timeout = 60
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	ws := strings.TrimSpace(c.Agent.Workspace)
	if ws == "" {
		return filepath.Join(ConfigDir(), "workspace")
	}
	if ws[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(ConfigDir(), "workspace")
		}
		rest := strings.TrimPrefix(ws[1:], string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest)
	}
	return ws
}

// AuthzClientConfig maps the file configuration onto the decision client
// configuration. The agent id becomes the default principal.
func (c *Config) AuthzClientConfig() authz.Config {
	return authz.Config{
		Endpoint:           c.Authz.Endpoint,
		ConstraintEndpoint: c.Authz.ConstraintEndpoint,
		Timeout:            time.Duration(c.Authz.TimeoutMs) * time.Millisecond,
		FailOpen:           c.Authz.FailOpen,
		Namespace:          c.Authz.Namespace,
		Principal:          c.Agent.ID,
	}
}
