// Package config loads engine configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration
type Config struct {
	Data    DataConfig
	Limits  LimitsConfig
	Backups BackupConfig
}

// DataConfig locates the vendor data and configuration directories
type DataConfig struct {
	DataDir     string // per-vendor input/output trees live under here
	SchemaDir   string // one JSON file per source schema
	MetadataDir string // saved sample metadata per source
}

type LimitsConfig struct {
	MaxFileSizeMB   int
	HeaderScanLines int
}

type BackupConfig struct {
	Dir             string
	RetentionDays   int
	CleanupSchedule string // cron expression, 5-field
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Data: DataConfig{
			DataDir:     getEnv("INGEST_DATA_DIR", "data"),
			SchemaDir:   getEnv("INGEST_SCHEMA_DIR", "config"),
			MetadataDir: getEnv("INGEST_METADATA_DIR", "data/source_metadata"),
		},
		Limits: LimitsConfig{
			MaxFileSizeMB:   getEnvAsInt("INGEST_MAX_FILE_SIZE_MB", 50),
			HeaderScanLines: getEnvAsInt("INGEST_HEADER_SCAN_LINES", 50),
		},
		Backups: BackupConfig{
			Dir:             getEnv("INGEST_BACKUP_DIR", "data/backups"),
			RetentionDays:   getEnvAsInt("INGEST_BACKUP_RETENTION_DAYS", 30),
			CleanupSchedule: getEnv("INGEST_BACKUP_CLEANUP_SCHEDULE", "0 2 * * *"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Limits.MaxFileSizeMB <= 0 {
		return fmt.Errorf("INGEST_MAX_FILE_SIZE_MB must be positive, got %d", c.Limits.MaxFileSizeMB)
	}
	if c.Limits.HeaderScanLines <= 0 {
		return fmt.Errorf("INGEST_HEADER_SCAN_LINES must be positive, got %d", c.Limits.HeaderScanLines)
	}
	if c.Backups.RetentionDays <= 0 {
		return fmt.Errorf("INGEST_BACKUP_RETENTION_DAYS must be positive, got %d", c.Backups.RetentionDays)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
