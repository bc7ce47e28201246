// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Asset is the base asset symbol the pool denominates in.
	Asset string

	// KeeperID is the identity background jobs harvest under. It earns the
	// keeper incentive unless registered as no-incentive.
	KeeperID string

	// Cron schedules for the background keeper jobs (robfig/cron format,
	// with a seconds field).
	HarvestSchedule    string
	RebalanceSchedule  string
	SnapshotSchedule   string
	CheckpointSchedule string

	// SnapshotsKeep is how many snapshots the snapshot job retains.
	SnapshotsKeep int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COFFER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("COFFER_PORT", 8001),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		Asset:              getEnv("COFFER_ASSET", "USDC"),
		KeeperID:           getEnv("COFFER_KEEPER_ID", "coffer-keeper"),
		HarvestSchedule:    getEnv("COFFER_HARVEST_SCHEDULE", "0 0 * * * *"),       // hourly
		RebalanceSchedule:  getEnv("COFFER_REBALANCE_SCHEDULE", "0 */15 * * * *"),  // every 15 minutes
		SnapshotSchedule:   getEnv("COFFER_SNAPSHOT_SCHEDULE", "0 */5 * * * *"),    // every 5 minutes
		CheckpointSchedule: getEnv("COFFER_CHECKPOINT_SCHEDULE", "0 30 3 * * *"),   // nightly
		SnapshotsKeep:      getEnvAsInt("COFFER_SNAPSHOTS_KEEP", 2016),             // a week at 5-minute cadence
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Asset == "" {
		return fmt.Errorf("asset symbol must not be empty")
	}
	if c.KeeperID == "" {
		return fmt.Errorf("keeper identity must not be empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
