// Package config loads Mongo Profiler configuration from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Mongo Profiler configuration.
type Config struct {
	// MongoURI is the connection string for the target server.
	MongoURI string `yaml:"mongoURI" json:"mongoURI"`

	// Database is the database whose operations are profiled.
	Database string `yaml:"database" json:"database"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Session SessionConfig `yaml:"session" json:"session"`
}

// LoggingConfig controls the diagnostic logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// SessionConfig controls the profiling session.
type SessionConfig struct {
	// Enabled selects the real harness; when false the no-op variant is
	// used and the database is never touched.
	Enabled *bool `yaml:"enabled" json:"enabled"`

	// Duration is how long the CLI keeps profiling enabled before draining.
	Duration string `yaml:"duration" json:"duration"`

	// Marker is an optional label stamped into the stream at session start.
	Marker string `yaml:"marker" json:"marker"`
}

// Load reads configuration from a file (YAML or JSON, by extension).
// Environment variables are substituted before parsing, then defaults are
// applied and the result validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Substitute env vars in the raw data so they work in any field.
	data = []byte(os.ExpandEnv(string(data)))

	var config Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		// Try YAML first, then JSON.
		err = yaml.Unmarshal(data, &config)
		if err != nil {
			err = json.Unmarshal(data, &config)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// LoadOrDefault loads configuration from a file, or returns the default
// configuration when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		return config, nil
	}
	return Load(path)
}

// Default returns a configuration suitable for profiling a local server.
func Default() *Config {
	config := &Config{
		MongoURI: "mongodb://localhost:27017",
		Database: "test",
	}
	config.ApplyDefaults()
	return config
}

// ApplyDefaults fills in unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	if c.Session.Enabled == nil {
		enabled := true
		c.Session.Enabled = &enabled
	}
	if c.Session.Duration == "" {
		c.Session.Duration = "30s"
	}
}

// Validate checks the configuration for contradictions and bad values.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q: must be json or text", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("invalid logging output %q: must be stdout or stderr", c.Logging.Output)
	}
	if _, err := time.ParseDuration(c.Session.Duration); err != nil {
		return fmt.Errorf("invalid session duration %q: %w", c.Session.Duration, err)
	}
	return nil
}

// SessionEnabled reports whether the real profiling harness should be used.
func (c *Config) SessionEnabled() bool {
	return c.Session.Enabled == nil || *c.Session.Enabled
}

// SessionDuration returns the parsed session duration.
func (c *Config) SessionDuration() time.Duration {
	d, err := time.ParseDuration(c.Session.Duration)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
