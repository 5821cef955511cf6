package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env      string // "development", "production", etc.
	LogLevel string // debug, info, warn, error

	// Server
	ServerAddr         string
	CORSOrigins        string // Comma-separated allowed origins
	RateLimitPerMinute int    // 0 disables the limiter

	// Model storage
	ModelStore  string // file, postgres or redis
	ModelPath   string // snapshot path for the file store
	DatabaseURL string
	RedisURL    string // also backs the rate limiter when set

	// Training
	TraceDir        string
	RetrainInterval time.Duration // 0 disables scheduled retraining
	WatchModel      bool          // hot reload the file store snapshot

	// OIDC bearer auth for admin endpoints
	OIDCIssuer   string
	OIDCClientID string

	// Tuning file
	ConfigFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		ModelStore:         getEnv("MODEL_STORE", "file"),
		ModelPath:          getEnv("MODEL_PATH", "kwrec-model.kwm"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		TraceDir:           getEnv("TRACE_DIR", ""),
		RetrainInterval:    getEnvDuration("RETRAIN_INTERVAL", 0),
		WatchModel:         getEnvBool("WATCH_MODEL", false),
		OIDCIssuer:         getEnv("OIDC_ISSUER", ""),
		OIDCClientID:       getEnv("OIDC_CLIENT_ID", ""),
		ConfigFile:         getEnv("CONFIG_FILE", "kwrec.yaml"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// AuthEnabled reports whether admin endpoints verify OIDC bearer tokens.
func (c *Config) AuthEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// AllowedOrigins splits CORSOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
