/**
 * @description
 * Configuration loader for the PricePulse backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 * - standard "fmt": For error reporting
 *
 * @notes
 * - Fails fast if critical variables (Database URL) are missing.
 * - Round defaults mirror the production schema: 300 second rounds, 20 entry feed.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Market MarketConfig
	Rounds RoundsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// MarketConfig holds market-data provider endpoints and refresh cadence
type MarketConfig struct {
	CoinGeckoURL    string
	BinanceWSURL    string
	SpotRefresh     time.Duration // spot price poll, default 30s
	SnapshotRefresh time.Duration // full market snapshot poll, default 60s
}

// RoundsConfig holds voting round settings
type RoundsConfig struct {
	DurationSeconds int           // default round length, 300s
	SweepInterval   time.Duration // worker-side expiry sweep cadence
	FeedLimit       int           // visible activity entries
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Market: MarketConfig{
			CoinGeckoURL:    getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
			BinanceWSURL:    getEnv("BINANCE_WS_URL", "wss://stream.binance.com:9443/stream"),
			SpotRefresh:     time.Duration(getEnvAsInt("MARKET_SPOT_REFRESH_SECONDS", 30)) * time.Second,
			SnapshotRefresh: time.Duration(getEnvAsInt("MARKET_SNAPSHOT_REFRESH_SECONDS", 60)) * time.Second,
		},
		Rounds: RoundsConfig{
			DurationSeconds: getEnvAsInt("ROUND_DURATION_SECONDS", 300),
			SweepInterval:   time.Duration(getEnvAsInt("ROUND_SWEEP_SECONDS", 10)) * time.Second,
			FeedLimit:       getEnvAsInt("ACTIVITY_FEED_LIMIT", 20),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Rounds.DurationSeconds <= 0 {
		return fmt.Errorf("ROUND_DURATION_SECONDS must be positive")
	}
	if cfg.Rounds.SweepInterval <= 0 {
		return fmt.Errorf("ROUND_SWEEP_SECONDS must be positive")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
