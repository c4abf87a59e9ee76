// Package config handles loading and parsing of shelfstore configuration.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for shelfstore.
type Config struct {
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Adapters []AdapterConfig `yaml:"adapters"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: text or json.
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether adapters are wrapped with operation metrics.
	Enabled bool `yaml:"enabled"`
}

// AdapterConfig configures one named storage adapter.
type AdapterConfig struct {
	// Name is the identifier callers use to look the adapter up.
	Name string `yaml:"name"`
	// Backend selects the implementation: "local", "memory", "sqlite", or "s3".
	Backend string `yaml:"backend"`
	Local   LocalConfig  `yaml:"local"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	S3      S3Config     `yaml:"s3"`
}

// LocalConfig holds local filesystem adapter settings.
type LocalConfig struct {
	// RootDir is the base directory for bucket and object storage.
	RootDir string `yaml:"root_dir"`
	// CreateMissing controls whether the root directory is created when
	// absent. Defaults to true.
	CreateMissing *bool `yaml:"create_missing"`
	// DirMode is the octal permission mode for created directories,
	// e.g. "0755".
	DirMode string `yaml:"dir_mode"`
}

// SQLiteConfig holds SQLite adapter settings.
type SQLiteConfig struct {
	// Path is the filesystem path for the database file.
	Path string `yaml:"path"`
}

// S3Config holds S3 gateway adapter settings.
type S3Config struct {
	// Bucket is the upstream S3 bucket name.
	Bucket string `yaml:"bucket"`
	// Region is the AWS region of the upstream bucket.
	Region string `yaml:"region"`
	// Prefix is the optional key prefix namespacing all gateway data.
	Prefix string `yaml:"prefix"`
	// EndpointURL optionally points at a custom S3-compatible endpoint.
	EndpointURL string `yaml:"endpoint_url"`
	// UsePathStyle forces path-style addressing for S3-compatible servers.
	UsePathStyle bool `yaml:"use_path_style"`
	// AccessKeyID and SecretAccessKey optionally override the default
	// AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// CreateMissingOrDefault returns the create_missing setting, defaulting to
// true when unset.
func (c LocalConfig) CreateMissingOrDefault() bool {
	if c.CreateMissing == nil {
		return true
	}
	return *c.CreateMissing
}

// ParseDirMode parses the dir_mode string as an octal permission mode.
// An empty value yields 0, letting the adapter apply its own default.
func (c LocalConfig) ParseDirMode() (fs.FileMode, error) {
	if c.DirMode == "" {
		return 0, nil
	}
	mode, err := strconv.ParseUint(c.DirMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing dir_mode %q: %w", c.DirMode, err)
	}
	return fs.FileMode(mode), nil
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. If the primary path fails, it falls
// back to shelfstore.example.yaml in the same or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "shelfstore.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "shelfstore.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults: one local adapter
// named "default" rooted under ./data/objects.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// applyDefaults fills in fields still at their zero value after YAML
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if len(cfg.Adapters) == 0 {
		cfg.Adapters = []AdapterConfig{{
			Name:    "default",
			Backend: "local",
			Local:   LocalConfig{RootDir: "./data/objects"},
		}}
	}
	for i := range cfg.Adapters {
		ac := &cfg.Adapters[i]
		if ac.Backend == "" {
			ac.Backend = "local"
		}
		if ac.Backend == "local" && ac.Local.RootDir == "" {
			ac.Local.RootDir = "./data/objects"
		}
		if ac.Backend == "sqlite" && ac.SQLite.Path == "" {
			ac.SQLite.Path = "./data/objects.db"
		}
	}
}

// validate rejects configurations that cannot be opened.
func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Adapters))
	for _, ac := range cfg.Adapters {
		if ac.Name == "" {
			return fmt.Errorf("adapter with backend %q has no name", ac.Backend)
		}
		if seen[ac.Name] {
			return fmt.Errorf("duplicate adapter name %q", ac.Name)
		}
		seen[ac.Name] = true

		switch ac.Backend {
		case "local", "memory", "sqlite":
		case "s3":
			if ac.S3.Bucket == "" {
				return fmt.Errorf("adapter %q: s3.bucket is required", ac.Name)
			}
			if ac.S3.Region == "" {
				return fmt.Errorf("adapter %q: s3.region is required", ac.Name)
			}
		default:
			return fmt.Errorf("adapter %q: unknown backend %q", ac.Name, ac.Backend)
		}

		if ac.Backend == "local" {
			if _, err := ac.Local.ParseDirMode(); err != nil {
				return fmt.Errorf("adapter %q: %w", ac.Name, err)
			}
		}
	}
	return nil
}
