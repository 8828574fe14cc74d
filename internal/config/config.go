// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Graph limits
	MaxNodesPerGraph int
	MaxEdgesPerGraph int

	// Analysis results
	AnalysisRetentionDays int // Results older than this are swept
	MaxResultsPerGraph    int // Oldest results beyond this are evicted per graph

	// Upstream risk scorer (optional)
	ScorerURL string

	// Security
	AllowedOrigins []string
	RateLimitRPM   int
	AdminSecret    string // Required for key issuance outside development

	// Telemetry
	OTLPEndpoint string // OTLP trace exporter endpoint (optional)
}

const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMaxNodes        = 10000
	DefaultMaxEdges        = 50000
	DefaultRetentionDays   = 90
	DefaultResultsPerGraph = 100
	DefaultRateLimit       = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:             getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:           os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		MaxNodesPerGraph:      int(getEnvInt64("MAX_NODES_PER_GRAPH", DefaultMaxNodes)),
		MaxEdgesPerGraph:      int(getEnvInt64("MAX_EDGES_PER_GRAPH", DefaultMaxEdges)),
		AnalysisRetentionDays: int(getEnvInt64("ANALYSIS_RETENTION_DAYS", DefaultRetentionDays)),
		MaxResultsPerGraph:    int(getEnvInt64("MAX_RESULTS_PER_GRAPH", DefaultResultsPerGraph)),
		ScorerURL:             os.Getenv("SCORER_URL"),
		AllowedOrigins:        splitList(os.Getenv("ALLOWED_ORIGINS")),
		RateLimitRPM:          int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		AdminSecret:           os.Getenv("ADMIN_SECRET"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.MaxNodesPerGraph <= 0 {
		return fmt.Errorf("MAX_NODES_PER_GRAPH must be positive")
	}
	if c.MaxEdgesPerGraph <= 0 {
		return fmt.Errorf("MAX_EDGES_PER_GRAPH must be positive")
	}
	if c.AnalysisRetentionDays <= 0 {
		return fmt.Errorf("ANALYSIS_RETENTION_DAYS must be positive")
	}
	if c.MaxResultsPerGraph <= 0 {
		return fmt.Errorf("MAX_RESULTS_PER_GRAPH must be positive")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
