package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alberthupa/graphrag-again/internal/resolution"
)

// Config holds the process-level configuration: the resolution core's
// parameters plus the ambient logging/metrics settings for the CLI boundary.
type Config struct {
	Resolution resolution.Config `json:"resolution"`
	Logging    LoggingConfig     `json:"logging"`
	Metrics    MetricsConfig     `json:"metrics"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// MetricsConfig holds the Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Load loads configuration from environment variables, falling back to
// SPEC_FULL.md §6's default resolution configuration.
func Load() (*Config, error) {
	defaults := resolution.DefaultConfig()

	cfg := &Config{
		Resolution: resolution.Config{
			EntitySimilarityThreshold:     getEnvFloat("RESOLUTION_ENTITY_SIMILARITY_THRESHOLD", defaults.EntitySimilarityThreshold),
			EntityAcronymThreshold:        getEnvFloat("RESOLUTION_ENTITY_ACRONYM_THRESHOLD", defaults.EntityAcronymThreshold),
			EnableAcronymMatching:         getEnvBool("RESOLUTION_ENABLE_ACRONYM_MATCHING", defaults.EnableAcronymMatching),
			ConnectionSimilarityThreshold: getEnvFloat("RESOLUTION_CONNECTION_SIMILARITY_THRESHOLD", defaults.ConnectionSimilarityThreshold),
			DescriptionWeight:             getEnvFloat("RESOLUTION_DESCRIPTION_WEIGHT", defaults.DescriptionWeight),
			NameWeight:                    getEnvFloat("RESOLUTION_NAME_WEIGHT", defaults.NameWeight),
			EnableTransitiveDiscovery:     getEnvBool("RESOLUTION_ENABLE_TRANSITIVE_DISCOVERY", defaults.EnableTransitiveDiscovery),
			EnableDomainRules:             getEnvBool("RESOLUTION_ENABLE_DOMAIN_RULES", defaults.EnableDomainRules),
			ConfidenceConsolidationMethod: resolution.ConsolidationMethod(getEnvString("RESOLUTION_CONFIDENCE_CONSOLIDATION_METHOD", string(defaults.ConfidenceConsolidationMethod))),
			MinDiscoveryConfidence:        getEnvFloat("RESOLUTION_MIN_DISCOVERY_CONFIDENCE", defaults.MinDiscoveryConfidence),
			MaxDiscoveriesPerRun:          getEnvInt("RESOLUTION_MAX_DISCOVERIES_PER_RUN", defaults.MaxDiscoveriesPerRun),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", false),
			Addr:    getEnvString("METRICS_ADDR", ":9090"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Resolution.Validate(); err != nil {
		return err
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr is required when metrics are enabled")
	}

	return nil
}

// Helper functions for environment variable parsing.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
