// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	TTS         TTSConfig
	Session     SessionConfig
	Log         LogConfig
	ContentPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL disables the results log.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL disables caching.
type CacheConfig struct {
	URL       string
	LessonTTL time.Duration
}

// AIConfig holds vocabulary generation settings.
type AIConfig struct {
	Google             GoogleConfig
	SessionTokenBudget int64 // 0 = unlimited
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
	Model  string
}

// TTSConfig holds Google Cloud Text-to-Speech settings.
type TTSConfig struct {
	GoogleAPIKey string
}

// SessionConfig holds learner session housekeeping settings.
type SessionConfig struct {
	IdleTimeout time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string
	Format    string
	AddSource bool
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("LEARN_SERVER_PORT", 8080),
			Host:           envStr("LEARN_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("LEARN_SERVER_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL:       envStr("LEARN_CACHE_URL", ""),
			LessonTTL: envDuration("LEARN_CACHE_LESSON_TTL", 24*time.Hour),
		},
		AI: AIConfig{
			Google: GoogleConfig{
				APIKey: envStr("LEARN_AI_GOOGLE_API_KEY", ""),
				Model:  envStr("LEARN_AI_GOOGLE_MODEL", "gemini-2.5-flash"),
			},
			SessionTokenBudget: int64(envInt("LEARN_AI_SESSION_TOKEN_BUDGET", 0)),
		},
		TTS: TTSConfig{
			GoogleAPIKey: envStr("LEARN_TTS_GOOGLE_API_KEY", ""),
		},
		Session: SessionConfig{
			IdleTimeout: envDuration("LEARN_SESSION_IDLE_TIMEOUT", 2*time.Hour),
		},
		Log: LogConfig{
			Level:     envStr("LEARN_LOG_LEVEL", "info"),
			Format:    envStr("LEARN_LOG_FORMAT", "json"),
			AddSource: envBool("LEARN_LOG_SOURCE", false),
		},
		ContentPath: envStr("LEARN_CONTENT_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("LEARN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("LEARN_DATABASE_MIN_CONNS (%d) exceeds LEARN_DATABASE_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.AI.SessionTokenBudget < 0 {
		return fmt.Errorf("LEARN_AI_SESSION_TOKEN_BUDGET must not be negative")
	}
	if c.Cache.LessonTTL <= 0 {
		return fmt.Errorf("LEARN_CACHE_LESSON_TTL must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("LEARN_SESSION_IDLE_TIMEOUT must be positive")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// HasAIProvider returns true if vocabulary generation is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.Google.APIKey != ""
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("LEARN_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
