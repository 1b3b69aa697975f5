package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thyrook/boardwatch/internal/vision"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	AppName   string          `json:"app_name" yaml:"app_name"`
	Version   string          `json:"version" yaml:"version"`
	Vision    vision.Config   `json:"vision" yaml:"vision"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Interface InterfaceConfig `json:"interface" yaml:"interface"`
}

// JournalConfig controls where detected moves are recorded
type JournalConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// InterfaceConfig contains UI and logging settings
type InterfaceConfig struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogPath   string `json:"log_path" yaml:"log_path"`
	ShowBoard bool   `json:"show_board" yaml:"show_board"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		AppName: "boardwatch",
		Version: "0.3.0",
		Vision:  *vision.DefaultConfig(),
		Journal: JournalConfig{
			Enabled: true,
			Path:    "data/journal.db",
		},
		Interface: InterfaceConfig{
			LogLevel:  "info",
			LogPath:   "logs/boardwatch.log",
			ShowBoard: true,
		},
	}
}

// Load reads and parses a JSON or YAML configuration file.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads a config file, falling back to defaults when it cannot be read
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// Save writes the configuration to a file, as YAML for .yaml/.yml paths and JSON otherwise
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Vision.Validate(); err != nil {
		return fmt.Errorf("vision: %w", err)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal: path is required when enabled")
	}

	switch strings.ToLower(c.Interface.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("interface: invalid log level %q", c.Interface.LogLevel)
	}

	return nil
}

// EnsureDirectories creates the parent directories of configured files
func (c *Config) EnsureDirectories() error {
	paths := []string{c.Interface.LogPath}
	if c.Journal.Enabled {
		paths = append(paths, c.Journal.Path)
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
