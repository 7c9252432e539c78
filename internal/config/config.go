// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Analysis AnalysisConfig
	LogLevel string
}

type ServerConfig struct {
	Host         string
	Port         string
	Mode         string // "debug" or "release"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LLMConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	CacheMaxEntries int
	CacheTTL        time.Duration
	MaxRetries      int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	URL     string
	MaxKeep int
}

type AnalysisConfig struct {
	PerceptionTimeout time.Duration
	Renormalize       bool
	PatternSeedFile   string
}

// Load reads the full configuration from environment variables, applying
// defaults for anything unset.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8000"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("LLM_API_KEY", ""),
			Model:           getEnv("LLM_MODEL", "gemini-2.0-flash"),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			CacheMaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 1024),
			CacheTTL:        getDurationEnv("CACHE_TTL", time.Hour),
			MaxRetries:      getIntEnv("LLM_MAX_RETRIES", 3),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			URL:     getEnv("DATABASE_URL", ""),
			MaxKeep: getIntEnv("STORE_MAX_KEEP", 10000),
		},
		Analysis: AnalysisConfig{
			PerceptionTimeout: getDurationEnv("PERCEPTION_TIMEOUT", 20*time.Second),
			Renormalize:       getBoolEnv("SCORE_RENORMALIZE", false),
			PatternSeedFile:   getEnv("PATTERN_SEED_FILE", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
