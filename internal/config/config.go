// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the application service.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	MetricsCacheTTL time.Duration
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8083"
	}

	cacheTTL := 300 * time.Second
	if raw := os.Getenv("METRICS_CACHE_TTL"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("METRICS_CACHE_TTL must be a non-negative number of seconds")
		}
		cacheTTL = time.Duration(secs) * time.Second
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		MetricsCacheTTL: cacheTTL,
	}, nil
}
