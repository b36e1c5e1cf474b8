// Package config provides configuration management for the nodegraph server.
//
// Values are layered: built-in defaults, then the config file, then
// NODEGRAPH_* environment variables. Command line flags are applied last by
// the caller.
//
// Config file locations (priority order):
//  1. $NODEGRAPH_CONFIG
//  2. ./nodegraph.yaml
//  3. $XDG_CONFIG_HOME/nodegraph/config.yaml
//  4. ~/.config/nodegraph/config.yaml
//  5. /etc/nodegraph/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nodegraph/internal/domain"
)

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides are applied in both cases.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.ApplyEnv()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	setDuration(&c.Server.ReadTimeout, 10*time.Second)
	setDuration(&c.Server.WriteTimeout, 30*time.Second)
	setDuration(&c.Server.IdleTimeout, 60*time.Second)
	setDuration(&c.Server.ShutdownTimeout, 10*time.Second)
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Database.Path == "" {
		c.Database.Path = "./nodegraph.db"
	}
	setDuration(&c.Database.BusyTimeout, 5*time.Second)
	setDuration(&c.Database.QueryTimeout, 5*time.Second)
	if c.Database.IDStrategy == "" {
		c.Database.IDStrategy = string(domain.IDGenerated)
	}

	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	setDuration(&c.Breaker.Interval, 30*time.Second)
	setDuration(&c.Breaker.Timeout, 10*time.Second)
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if _, err := domain.ParseIDStrategy(c.Database.IDStrategy); err != nil {
		errs = append(errs, fmt.Errorf("database.id_strategy: %w", err))
	}

	for name, d := range map[string]Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"database.busy_timeout":   c.Database.BusyTimeout,
		"database.query_timeout":  c.Database.QueryTimeout,
		"breaker.interval":        c.Breaker.Interval,
		"breaker.timeout":         c.Breaker.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// IDStrategy returns the parsed id strategy; call Validate first
func (c *Config) IDStrategy() domain.IDStrategy {
	strategy, err := domain.ParseIDStrategy(c.Database.IDStrategy)
	if err != nil {
		return domain.IDGenerated
	}
	return strategy
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Addr: %s, Database: %s, IDs: %s\n",
		c.Server.Addr, c.Database.Path, c.Database.IDStrategy)
	summary += fmt.Sprintf("Query timeout: %s, Breaker threshold: %d",
		c.Database.QueryTimeout.Duration(), c.Breaker.FailureThreshold)
	if c.Seed.Path != "" {
		summary += fmt.Sprintf("\nSeed: %s (watch: %v)", c.Seed.Path, c.Seed.Watch)
	}
	return summary
}
