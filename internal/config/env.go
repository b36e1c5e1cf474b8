package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names
const (
	EnvAddr         = "NODEGRAPH_ADDR"
	EnvDBPath       = "NODEGRAPH_DB_PATH"
	EnvIDStrategy   = "NODEGRAPH_ID_STRATEGY"
	EnvLogLevel     = "NODEGRAPH_LOG_LEVEL"
	EnvEnvironment  = "NODEGRAPH_ENV"
	EnvSeedPath     = "NODEGRAPH_SEED_PATH"
	EnvSeedWatch    = "NODEGRAPH_SEED_WATCH"
	EnvQueryTimeout = "NODEGRAPH_QUERY_TIMEOUT"
)

// ApplyEnv overrides config values from the environment
func (c *Config) ApplyEnv() {
	c.Server.Addr = getEnv(EnvAddr, c.Server.Addr)
	c.Database.Path = getEnv(EnvDBPath, c.Database.Path)
	c.Database.IDStrategy = getEnv(EnvIDStrategy, c.Database.IDStrategy)
	c.Database.QueryTimeout = Duration(getEnvDuration(EnvQueryTimeout, c.Database.QueryTimeout.Duration()))
	c.Logging.Level = getEnv(EnvLogLevel, c.Logging.Level)
	if strings.EqualFold(os.Getenv(EnvEnvironment), "development") {
		c.Logging.Development = true
	}
	c.Seed.Path = getEnv(EnvSeedPath, c.Seed.Path)
	c.Seed.Watch = getEnvBool(EnvSeedWatch, c.Seed.Watch)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
