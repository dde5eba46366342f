package config

import (
	"os"
	"strconv"

	"periodqc/internal/errors"
)

// Config represents the complete application configuration. It is loaded once
// at startup and threaded explicitly into the components that need it; there
// is no ambient mutable state.
type Config struct {
	Catalog  CatalogConfig
	Batch    BatchConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// CatalogConfig holds the catalog source and schema settings.
type CatalogConfig struct {
	Path           string  // CSV or XLSX catalog file
	TrueColumn     string  // header of the true/reference period column
	MeasuredColumn string  // header of the pipeline-measured period column
	StatusColumn   string  // header of the detection status column
	PeriodMin      float64 // calibrated period range of the catalog, days
	PeriodMax      float64
}

// BatchConfig holds batch processing settings.
type BatchConfig struct {
	Workers int // concurrent rows; 1 means sequential
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds the optional Postgres catalog source.
type DatabaseConfig struct {
	URL   string // empty disables the database source
	Table string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	config := &Config{
		Catalog: CatalogConfig{
			Path:           getEnvOrDefault("CATALOG_FILE", "final_comp_rel_df.csv"),
			TrueColumn:     getEnvOrDefault("CATALOG_TRUE_COLUMN", "Prot"),
			MeasuredColumn: getEnvOrDefault("CATALOG_MEASURED_COLUMN", "prot_tess"),
			StatusColumn:   getEnvOrDefault("CATALOG_STATUS_COLUMN", "status"),
			PeriodMin:      getEnvFloatOrDefault("CATALOG_PERIOD_MIN", 0.2),
			PeriodMax:      getEnvFloatOrDefault("CATALOG_PERIOD_MAX", 20.0),
		},
		Batch: BatchConfig{
			Workers: getEnvIntOrDefault("BATCH_WORKERS", 4),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL:   os.Getenv("DATABASE_URL"),
			Table: getEnvOrDefault("DB_CATALOG_TABLE", "catalog_stars"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Catalog.Path == "" && config.Database.URL == "" {
		return errors.ConfigInvalid("either CATALOG_FILE or DATABASE_URL must be set")
	}
	if config.Catalog.PeriodMin <= 0 || config.Catalog.PeriodMax <= config.Catalog.PeriodMin {
		return errors.ConfigInvalid("catalog period range must satisfy 0 < min < max")
	}
	if config.Batch.Workers < 1 {
		return errors.ConfigInvalid("BATCH_WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
