package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config captures process-wide configuration. Loaded once at startup and passed
// by reference; nothing mutates it at runtime.
type Config struct {
	// Transport
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`

	// The single privileged identity. Every admin operation re-checks against it.
	AdminID int64 `env:"ADMIN_USER_ID"`

	// Admin HTTP API
	AdminAddr       string        `env:"ADMIN_ADDR" envDefault:":8080"`
	AdminSecretHash string        `env:"ADMIN_SECRET_HASH"`
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	AdminTokenTTL   time.Duration `env:"ADMIN_TOKEN_TTL" envDefault:"1h"`

	// Persistence. Empty DATABASE_URL selects the in-memory stores.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// Audit event sink. Empty broker list selects the in-memory publisher.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"AUDIT_TOPIC" envDefault:"infobroker.audit"`

	// Pipeline
	LookupTimeout   time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"15s"`
	StartingCredits int64         `env:"STARTING_CREDITS" envDefault:"5"`
	UnlimitedGrant  int64         `env:"UNLIMITED_GRANT" envDefault:"1000000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load builds the config from the environment so main stays lean. A local .env
// file is honored when present; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
