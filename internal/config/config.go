// Package config provides configuration management for envlink.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including storage locations,
// proxy configuration, logging behavior, and the local management API.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// StateDir is the directory holding the durable connection registry
	// database and the session-scoped active connection file.
	StateDir string `yaml:"state-dir"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug"`

	// LoggingToFile routes log output to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// RequestRetry defines the retry times when a token request fails.
	RequestRetry int `yaml:"request-retry"`

	// UseKeyring stores connection secrets in the OS keyring instead of the
	// registry database. Falls back to inline storage when the keyring is
	// unavailable.
	UseKeyring bool `yaml:"use-keyring"`

	// LoginTimeoutSeconds bounds the interactive browser login wait.
	LoginTimeoutSeconds int `yaml:"login-timeout-seconds"`

	// CallbackPort is the local port used for the interactive login redirect.
	CallbackPort int `yaml:"callback-port"`

	// RemoteManagement configures the local management API.
	RemoteManagement RemoteManagement `yaml:"remote-management"`
}

// RemoteManagement holds settings for the management API server.
type RemoteManagement struct {
	// Port is the network port on which the management API listens.
	Port int `yaml:"port"`

	// AllowRemote permits non-loopback clients when true.
	AllowRemote bool `yaml:"allow-remote"`

	// SecretKey is the bcrypt hash of the management key.
	SecretKey string `yaml:"secret-key"`
}

const (
	defaultLoginTimeoutSeconds = 300
	defaultCallbackPort        = 53682
	defaultManagementPort      = 8317
)

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, and applies defaults for
// unset fields.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults and expands a
// leading ~ in StateDir to the user's home directory.
func (c *Config) ApplyDefaults() {
	if c.StateDir == "" {
		c.StateDir = filepath.Join("~", ".envlink")
	}
	if c.LoginTimeoutSeconds <= 0 {
		c.LoginTimeoutSeconds = defaultLoginTimeoutSeconds
	}
	if c.CallbackPort <= 0 {
		c.CallbackPort = defaultCallbackPort
	}
	if c.RemoteManagement.Port <= 0 {
		c.RemoteManagement.Port = defaultManagementPort
	}
	if strings.HasPrefix(c.StateDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(home, strings.TrimPrefix(c.StateDir, "~"))
		}
	}
}

// SaveConfig writes the configuration back to the given path.
func SaveConfig(configFile string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
