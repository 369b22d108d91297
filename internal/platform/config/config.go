// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a default suitable for local development;
// production deployments override via env.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Lockout  LockoutConfig
	Breaker  BreakerConfig
	Webhook  WebhookConfig
	AI       AIConfig

	Environment     string
	CleanupInterval time.Duration
}

// DatabaseConfig holds the postgres pool settings.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the shared cache settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// JWTConfig holds signing material and token lifetimes.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// LockoutConfig holds failed-login thresholds.
type LockoutConfig struct {
	IdentityThreshold int
	IPThreshold       int
	Window            time.Duration
	LockDuration      time.Duration
}

// BreakerConfig holds circuit breaker defaults for outbound dependencies.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	CallTimeout      time.Duration
}

// WebhookConfig holds settings for the inbound aggregator webhook.
type WebhookConfig struct {
	SigningSecret string
	GlobalRPS     float64
	GlobalBurst   int
}

// AIConfig holds settings for the outbound document drafting service.
type AIConfig struct {
	BaseURL string
	APIKey  string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:            envString("TRUSTCORE_ADDR", ":8080"),
		ShutdownTimeout: envDuration("TRUSTCORE_SHUTDOWN_TIMEOUT", 10*time.Second),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		JWT: JWTConfig{
			SigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     envString("JWT_ISSUER", "https://trustcore.local"),
			AccessTTL:  envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL: envDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Lockout: LockoutConfig{
			IdentityThreshold: envInt("LOCKOUT_IDENTITY_THRESHOLD", 5),
			IPThreshold:       envInt("LOCKOUT_IP_THRESHOLD", 10),
			Window:            envDuration("LOCKOUT_WINDOW", 15*time.Minute),
			LockDuration:      envDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Breaker: BreakerConfig{
			FailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
			Cooldown:         envDuration("BREAKER_COOLDOWN", 30*time.Second),
			CallTimeout:      envDuration("OUTBOUND_CALL_TIMEOUT", 15*time.Second),
		},
		Webhook: WebhookConfig{
			SigningSecret: os.Getenv("WEBHOOK_SIGNING_SECRET"),
			GlobalRPS:     envFloat("WEBHOOK_GLOBAL_RPS", 50),
			GlobalBurst:   envInt("WEBHOOK_GLOBAL_BURST", 100),
		},
		AI: AIConfig{
			BaseURL: os.Getenv("AI_SERVICE_URL"),
			APIKey:  os.Getenv("AI_SERVICE_API_KEY"),
		},
		Environment:     envString("TRUSTCORE_ENV", "development"),
		CleanupInterval: envDuration("CLEANUP_INTERVAL", time.Hour),
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
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
