package config

import (
	"os"
	"time"
)

type Config struct {
	DatabaseURL      string
	Port             string
	Environment      string
	CheapSharkAPIURL string
	RefreshInterval  time.Duration
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:gamepricelens@tcp(127.0.0.1:3306)/gamepricelens?charset=utf8mb4&parseTime=True&loc=UTC"

	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", defaultDSN),
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		CheapSharkAPIURL: getEnv("CHEAPSHARK_API_URL", "https://www.cheapshark.com/api/1.0"),
		RefreshInterval:  getDurationEnv("REFRESH_INTERVAL", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
