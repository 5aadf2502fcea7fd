package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvConfigFile      = "ARBSCOPE_CONFIG"
	EnvTablesPath      = "ARBSCOPE_TABLES"
	EnvSnapshotPath    = "ARBSCOPE_SNAPSHOT"
	EnvRefreshInterval = "ARBSCOPE_REFRESH_INTERVAL"
	EnvDebug           = "ARBSCOPE_DEBUG"
	EnvLogFile         = "ARBSCOPE_LOG_FILE"
)

// LoadEnv loads environment variables from .env files. Missing files are
// not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func applyEnv(c *Config) error {
	c.TablesPath = GetEnvWithDefault(EnvTablesPath, c.TablesPath)
	c.SnapshotPath = GetEnvWithDefault(EnvSnapshotPath, c.SnapshotPath)
	c.LogFile = GetEnvWithDefault(EnvLogFile, c.LogFile)

	if v := os.Getenv(EnvRefreshInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRefreshInterval, err)
		}
		c.RefreshInterval = d
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	return nil
}
