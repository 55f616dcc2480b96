// Package config provides the typed devsolo configuration, persisted as YAML
// under the workspace directory, plus the initialization marker and the
// generated git hook scripts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
)

// Version is the configuration schema version written by this build.
const Version = "2.0.0"

// Scope says where the configuration applies.
type Scope string

const (
	// ScopeProject keeps configuration inside the repository workspace dir.
	ScopeProject Scope = "project"
	// ScopeUser keeps configuration in the user's home directory.
	ScopeUser Scope = "user"
)

// Config is the single typed configuration value. It is immutable after load;
// reloads happen only on an explicit watch notification.
type Config struct {
	Initialized bool        `yaml:"initialized"`
	Scope       Scope       `yaml:"scope"`
	Version     string      `yaml:"version"`
	GitPlatform GitPlatform `yaml:"gitPlatform"`
	Preferences Preferences `yaml:"preferences"`
	Components  Components  `yaml:"components"`
}

// GitPlatform identifies the hosted platform and optional stored token.
type GitPlatform struct {
	Type  string `yaml:"type"`
	Token string `yaml:"token,omitempty"`
}

// Preferences holds user-tunable knobs.
type Preferences struct {
	LogLevel    string `yaml:"logLevel"`
	LogFile     string `yaml:"logFile,omitempty"`
	ColorOutput bool   `yaml:"colorOutput"`
	Author      string `yaml:"author,omitempty"`

	// Telemetry is opt-in; nil means never asked, which reads as disabled.
	Telemetry *bool `yaml:"telemetry,omitempty"`

	// CI polling knobs for ship. Zero values fall back to the defaults.
	CIPollIntervalSeconds int `yaml:"ciPollIntervalSeconds,omitempty"`
	CIPollTimeoutMinutes  int `yaml:"ciPollTimeoutMinutes,omitempty"`

	// Audit log rotation knobs. Zero values fall back to the defaults.
	AuditMaxBytes int64 `yaml:"auditMaxBytes,omitempty"`
	AuditMaxFiles int   `yaml:"auditMaxFiles,omitempty"`
}

// Components toggles the optional installers. The MCP server itself is
// non-disable-able: MCPServer always reads back true.
type Components struct {
	MCPServer  bool `yaml:"mcpServer"`
	Hooks      bool `yaml:"hooks"`
	StatusLine bool `yaml:"statusLine"`
	Templates  bool `yaml:"templates"`
}

// Marker is the initialization marker file content.
type Marker struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"createdAt"`
}

// Default returns the configuration used for a fresh workspace.
func Default() *Config {
	return &Config{
		Initialized: false,
		Scope:       ScopeProject,
		Version:     Version,
		GitPlatform: GitPlatform{Type: "github"},
		Preferences: Preferences{
			LogLevel:    "info",
			ColorOutput: true,
		},
		Components: Components{
			MCPServer:  true,
			Hooks:      true,
			StatusLine: true,
			Templates:  true,
		},
	}
}

// Load reads the configuration file, or returns the default when it does not
// exist. The mandatory-on MCP server component is normalized on every load.
func Load() (*Config, error) {
	path, err := paths.ConfigFile()
	if err != nil {
		return Default(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is workspace-derived
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the configuration atomically (temp + rename).
func Save(cfg *Config) error {
	path, err := paths.ConfigFile()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	return SaveTo(path, cfg)
}

// SaveTo writes configuration to an explicit path atomically.
func SaveTo(path string, cfg *Config) error {
	applyDefaults(cfg)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming config into place: %w", err)
	}
	return nil
}

// IsInitialized reports whether the workspace carries the marker file.
func IsInitialized() bool {
	path, err := paths.MarkerFile()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// WriteMarker creates the initialization marker file.
func WriteMarker() error {
	path, err := paths.MarkerFile()
	if err != nil {
		return fmt.Errorf("resolving marker path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating workspace directory: %w", err)
	}

	data, err := yaml.Marshal(Marker{Version: Version, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling marker: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	return nil
}

// Token resolves the platform token: stored config first, then GITHUB_TOKEN,
// then GH_TOKEN.
func (c *Config) Token() string {
	if c.GitPlatform.Token != "" {
		return c.GitPlatform.Token
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok
	}
	return os.Getenv("GH_TOKEN")
}

// CIPollInterval returns the configured polling cadence for CI check runs.
func (c *Config) CIPollInterval() time.Duration {
	if c.Preferences.CIPollIntervalSeconds > 0 {
		return time.Duration(c.Preferences.CIPollIntervalSeconds) * time.Second
	}
	return 15 * time.Second
}

// CIPollTimeout returns the configured total budget for CI polling.
func (c *Config) CIPollTimeout() time.Duration {
	if c.Preferences.CIPollTimeoutMinutes > 0 {
		return time.Duration(c.Preferences.CIPollTimeoutMinutes) * time.Minute
	}
	return 20 * time.Minute
}

// AuditMaxBytes returns the audit rotation threshold.
func (c *Config) AuditMaxBytes() int64 {
	if c.Preferences.AuditMaxBytes > 0 {
		return c.Preferences.AuditMaxBytes
	}
	return 10 * 1024 * 1024
}

// AuditMaxFiles returns how many rotated audit files to retain.
func (c *Config) AuditMaxFiles() int {
	if c.Preferences.AuditMaxFiles > 0 {
		return c.Preferences.AuditMaxFiles
	}
	return 10
}

func applyDefaults(cfg *Config) {
	// The server component cannot be disabled.
	cfg.Components.MCPServer = true
	if cfg.Scope == "" {
		cfg.Scope = ScopeProject
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.GitPlatform.Type == "" {
		cfg.GitPlatform.Type = "github"
	}
	if cfg.Preferences.LogLevel == "" {
		cfg.Preferences.LogLevel = "info"
	}
}
