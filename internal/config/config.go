package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds engine configuration
type Config struct {
	// SQLite persistence
	DatabasePath string

	// Insight store backend: "badger" (embedded, default) or "dgraph"
	InsightBackend string
	BadgerPath     string
	DgraphAlphaURL string

	// Optional shared prediction-cache tier
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Prediction cache freshness window
	CacheTTL time.Duration

	// EMA smoothing factor for capability updates
	SmoothingAlpha float64

	// Rate limiting on the predict path
	PredictRatePerSec float64
	PredictBurst      int

	// Aggregation windows
	MetricsWindow  time.Duration
	MiningLookback time.Duration
}

// Default returns the standard single-node configuration
func Default() *Config {
	return &Config{
		DatabasePath:      "~/.agentflow/agentflow.db",
		InsightBackend:    "badger",
		BadgerPath:        "~/.agentflow/insights",
		DgraphAlphaURL:    "localhost:9080",
		RedisEnabled:      false,
		RedisAddr:         "localhost:6379",
		RedisPassword:     "",
		RedisDB:           0,
		CacheTTL:          1 * time.Hour,
		SmoothingAlpha:    0.2,
		PredictRatePerSec: 50,
		PredictBurst:      100,
		MetricsWindow:     24 * time.Hour,
		MiningLookback:    7 * 24 * time.Hour,
	}
}

// FromEnv returns the default configuration with environment overrides
func FromEnv() *Config {
	cfg := Default()

	cfg.DatabasePath = getEnv("AGENTFLOW_DB_PATH", cfg.DatabasePath)
	cfg.InsightBackend = getEnv("AGENTFLOW_INSIGHT_BACKEND", cfg.InsightBackend)
	cfg.BadgerPath = getEnv("AGENTFLOW_BADGER_PATH", cfg.BadgerPath)
	cfg.DgraphAlphaURL = getEnv("AGENTFLOW_DGRAPH_ALPHA", cfg.DgraphAlphaURL)

	cfg.RedisAddr = getEnv("AGENTFLOW_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("AGENTFLOW_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("AGENTFLOW_REDIS_DB", cfg.RedisDB)
	cfg.RedisEnabled = getEnvBool("AGENTFLOW_REDIS_ENABLED", cfg.RedisEnabled)

	if ttl := getEnvInt("AGENTFLOW_CACHE_TTL_MINUTES", 0); ttl > 0 {
		cfg.CacheTTL = time.Duration(ttl) * time.Minute
	}
	if alpha := getEnvFloat("AGENTFLOW_SMOOTHING_ALPHA", 0); alpha > 0 && alpha <= 1 {
		cfg.SmoothingAlpha = alpha
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
