package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults shared by the CLI and the resident service.
const (
	DefaultPort  = 17173
	DefaultHost  = "0.0.0.0"
	DefaultTTL   = 3600 // seconds
	DefaultStyle = "monokai"
)

// Config represents the persisted peekfs configuration.
type Config struct {
	// BaseURL, when set, replaces the http://host:port prefix of printed
	// URLs. It has no effect on authorization decisions.
	BaseURL   string    `yaml:"base_url,omitempty"`
	FileTTL   int       `yaml:"file_ttl,omitempty"`
	Highlight Highlight `yaml:"highlight,omitempty"`
}

// Highlight holds the syntax highlighting options used by the renderer.
type Highlight struct {
	Style   string `yaml:"style,omitempty"`
	LineNos bool   `yaml:"linenos,omitempty"`
}

// ValidKeys lists the keys accepted by `peekfs config get/set`.
var ValidKeys = []string{"base_url", "file_ttl", "highlight.style", "highlight.linenos"}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		FileTTL:   DefaultTTL,
		Highlight: Highlight{Style: DefaultStyle},
	}
}

// Load reads config.yaml from the state directory. A missing file is not an
// error; defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Re-apply defaults wiped by an explicit empty value in the file.
	if cfg.FileTTL <= 0 {
		cfg.FileTTL = DefaultTTL
	}
	if cfg.Highlight.Style == "" {
		cfg.Highlight.Style = DefaultStyle
	}

	return cfg, nil
}

// Save writes the configuration back to config.yaml, creating the state
// directory if needed.
func Save(cfg *Config) error {
	if _, err := EnsureDir(); err != nil {
		return err
	}

	path, err := Path()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the effective value for a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "base_url":
		return c.BaseURL, nil
	case "file_ttl":
		return strconv.Itoa(c.FileTTL), nil
	case "highlight.style":
		return c.Highlight.Style, nil
	case "highlight.linenos":
		return strconv.FormatBool(c.Highlight.LineNos), nil
	}
	return "", unknownKeyError(key)
}

// Set updates a config key from its string representation.
func (c *Config) Set(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = value
	case "file_ttl":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("file_ttl must be a positive number of seconds")
		}
		c.FileTTL = n
	case "highlight.style":
		c.Highlight.Style = value
	case "highlight.linenos":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("highlight.linenos must be true or false")
		}
		c.Highlight.LineNos = b
	default:
		return unknownKeyError(key)
	}
	return nil
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %s (valid keys: %s)", key, strings.Join(ValidKeys, ", "))
}

// Dir returns the state directory, ~/.peekfs by default. PEEKFS_DIR
// overrides it.
func Dir() (string, error) {
	if dir := os.Getenv("PEEKFS_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".peekfs"), nil
}

// EnsureDir creates the state directory if it does not exist and returns it.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return dir, nil
}

// DBPath returns the authorization database path. PEEKFS_DB overrides it.
func DBPath() (string, error) {
	if path := os.Getenv("PEEKFS_DB"); path != "" {
		return path, nil
	}
	return statePath("peekfs.db")
}

// PIDPath returns the process handle path for the resident service.
func PIDPath() (string, error) {
	return statePath("peekfs.pid")
}

// LogPath returns the log file the resident service appends to.
func LogPath() (string, error) {
	return statePath("peekfs.log")
}

// Path returns the config file path.
func Path() (string, error) {
	return statePath("config.yaml")
}

func statePath(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
