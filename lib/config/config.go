// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Roadlog services.
//
// Configuration is loaded from a single file specified by:
//   - ROADLOG_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when the
// environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Roadlog.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Database configures the metadata store backend.
	Database DatabaseConfig `yaml:"database"`

	// Ingest configures the ingestion service.
	Ingest IngestConfig `yaml:"ingest"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Ingest   *IngestConfig   `yaml:"ingest,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Roadlog data.
	Root string `yaml:"root"`

	// Blobs is the blob store root, holding uploaded segment files and
	// derived artifacts.
	Blobs string `yaml:"blobs"`

	// Spool is where the upload handler drops job files for the
	// ingestion service to pick up.
	Spool string `yaml:"spool"`
}

// DatabaseConfig configures the metadata store.
type DatabaseConfig struct {
	// Driver selects the backend: "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Only used with the sqlite
	// driver.
	Path string `yaml:"path"`

	// DSN is the Postgres connection string. Only used with the
	// postgres driver.
	DSN string `yaml:"dsn"`
}

// IngestConfig configures the ingestion service.
type IngestConfig struct {
	// Workers is the number of concurrent ingestion workers.
	// Default: 8.
	Workers int `yaml:"workers"`

	// PollInterval is how often the spool directory is scanned for new
	// jobs, as a Go duration string. Default: "1s".
	PollInterval string `yaml:"poll_interval"`
}

// PollInterval returns the parsed spool poll interval. Call Validate
// first; an unparseable value returns the default.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Ingest.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback - the
// config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "roadlog")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  defaultRoot,
			Blobs: filepath.Join(defaultRoot, "blobs"),
			Spool: filepath.Join(defaultRoot, "spool"),
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(defaultRoot, "roadlog.db"),
		},
		Ingest: IngestConfig{
			Workers:      8,
			PollInterval: "1s",
		},
	}
}

// Load loads configuration from the ROADLOG_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if ROADLOG_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("ROADLOG_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ROADLOG_CONFIG environment variable not set; " +
			"set it to the path of your roadlog.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Blobs != "" {
			c.Paths.Blobs = overrides.Paths.Blobs
		}
		if overrides.Paths.Spool != "" {
			c.Paths.Spool = overrides.Paths.Spool
		}
	}

	if overrides.Database != nil {
		if overrides.Database.Driver != "" {
			c.Database.Driver = overrides.Database.Driver
		}
		if overrides.Database.Path != "" {
			c.Database.Path = overrides.Database.Path
		}
		if overrides.Database.DSN != "" {
			c.Database.DSN = overrides.Database.DSN
		}
	}

	if overrides.Ingest != nil {
		if overrides.Ingest.Workers != 0 {
			c.Ingest.Workers = overrides.Ingest.Workers
		}
		if overrides.Ingest.PollInterval != "" {
			c.Ingest.PollInterval = overrides.Ingest.PollInterval
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ROADLOG_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["ROADLOG_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Blobs = expandVars(c.Paths.Blobs, vars)
	c.Paths.Spool = expandVars(c.Paths.Spool, vars)
	c.Database.Path = expandVars(c.Database.Path, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Blobs == "" {
		errs = append(errs, fmt.Errorf("paths.blobs is required"))
	}
	if c.Paths.Spool == "" {
		errs = append(errs, fmt.Errorf("paths.spool is required"))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, fmt.Errorf("database.path is required with the sqlite driver"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required with the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}

	if c.Ingest.Workers < 1 {
		errs = append(errs, fmt.Errorf("ingest.workers must be at least 1"))
	}
	if d, err := time.ParseDuration(c.Ingest.PollInterval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("ingest.poll_interval must be a positive duration, got %q", c.Ingest.PollInterval))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Blobs,
		c.Paths.Spool,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
