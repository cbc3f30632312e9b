package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string

	// GeoIP lookup settings for signup profile enrichment.
	GeoIPBaseURL string
	GeoIPTimeout time.Duration

	// Cron spec for the background profile enrichment sweep.
	EnrichSweepSpec string
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	timeoutStr := getEnv("GEOIP_TIMEOUT", "5s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:      port,
		DatabasePath:    getEnv("DATABASE_PATH", "./micropost.db"),
		GeoIPBaseURL:    getEnv("GEOIP_BASE_URL", "https://ipinfo.io"),
		GeoIPTimeout:    timeout,
		EnrichSweepSpec: getEnv("ENRICH_SWEEP_SPEC", "*/10 * * * *"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
