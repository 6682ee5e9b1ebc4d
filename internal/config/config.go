package config

import (
	"os"
	"strings"

	"summcorr/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Scores   ScoresConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Report   ReportConfig
	// ProfilePath points at an optional YAML analysis profile
	ProfilePath string
}

// ScoresConfig locates the score corpus
type ScoresConfig struct {
	File string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// DatabaseConfig holds database connection settings. An empty URL disables persistence.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// ReportConfig controls report output
type ReportConfig struct {
	XLSX   string
	Format string
}

// Drivers the report repository is known to work with
var supportedDrivers = map[string]bool{
	"postgres": true,
	"sqlite3":  true,
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Scores: ScoresConfig{
			File: getEnvOrDefault("SCORES_FILE", ""),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:    getEnvOrDefault("DATABASE_URL", ""),
			Driver: getEnvOrDefault("DATABASE_DRIVER", "postgres"),
		},
		Report: ReportConfig{
			XLSX:   getEnvOrDefault("REPORT_XLSX", ""),
			Format: getEnvOrDefault("REPORT_FORMAT", "ascii"),
		},
		ProfilePath: getEnvOrDefault("ANALYSIS_PROFILE", ""),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// PersistenceEnabled reports whether runs should be written to the database
func (c *Config) PersistenceEnabled() bool {
	return c.Database.URL != ""
}

// Profile loads the configured analysis profile, or the defaults when none is set
func (c *Config) Profile() (*Profile, error) {
	if c.ProfilePath == "" {
		return DefaultProfile(), nil
	}
	return LoadProfile(c.ProfilePath)
}

func validateConfig(config *Config) error {
	if config.PersistenceEnabled() && !supportedDrivers[config.Database.Driver] {
		return errors.ConfigInvalid("unsupported DATABASE_DRIVER " + config.Database.Driver)
	}
	switch strings.ToLower(config.Report.Format) {
	case "ascii", "markdown", "md":
	default:
		return errors.ConfigInvalid("REPORT_FORMAT must be ascii or markdown")
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
