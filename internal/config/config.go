package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// BackendKind selects which remote implementation every adapter call is
// routed to. It is resolved exactly once at startup.
type BackendKind string

const (
	BackendREST     BackendKind = "rest"
	BackendDocument BackendKind = "document"
)

type Config struct {
	Environment string      `envconfig:"APP_ENV" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`
	Backend     BackendKind `envconfig:"BACKEND" default:"rest"`

	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// StoragePath is the sqlite file backing the durable local store.
	StoragePath string `envconfig:"STORAGE_PATH" default:"orderfood.db"`
	// SealKey, when 32 bytes long, enables sealing of the persisted auth
	// slice at rest. Empty disables sealing.
	SealKey string `envconfig:"SEAL_KEY"`

	// FavoritesDedupe controls whether adding an already-favorited item is a
	// no-op (true) or appends anyway, matching the historical behavior of the
	// web client (false).
	FavoritesDedupe bool `envconfig:"FAVORITES_DEDUPE" default:"true"`

	// FetchRetries bounds retry attempts for idempotent GET calls.
	// 1 means no retry, which is the default contract.
	FetchRetries int `envconfig:"FETCH_RETRIES" default:"1"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	var cfg Config
	if err := envconfig.Process("ORDERFOOD", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	switch cfg.Backend {
	case BackendREST, BackendDocument:
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if cfg.SealKey != "" && len(cfg.SealKey) != 32 {
		return nil, fmt.Errorf("SEAL_KEY must be exactly 32 bytes, got %d", len(cfg.SealKey))
	}
	if cfg.FetchRetries < 1 {
		cfg.FetchRetries = 1
	}
	return &cfg, nil
}
