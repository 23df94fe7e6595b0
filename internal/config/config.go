package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devJWTSecret = "default_super_secret_key"

var ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is required in release mode")

// Config is the runtime configuration of the API, read from the environment.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"postgres"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	JWTSecret   string        `env:"JWT_SECRET"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`

	// Role definition overlay: how long one load may take and how soon a
	// failed load is retried.
	OverlayLoadTimeout   time.Duration `env:"OVERLAY_LOAD_TIMEOUT" envDefault:"10s"`
	OverlayRetryInterval time.Duration `env:"OVERLAY_RETRY_INTERVAL" envDefault:"30s"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	// BootstrapAdminEmail receives an admin assignment when it registers.
	BootstrapAdminEmail string `env:"BOOTSTRAP_ADMIN_EMAIL"`
}

// Load reads envFile when it exists, then parses the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		// A missing file is fine; the environment may be set directly.
		_ = godotenv.Load(envFiles...)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.Release() {
			return nil, ErrMissingJWTSecret
		}
		cfg.JWTSecret = devJWTSecret
	}
	return &cfg, nil
}

func (c *Config) Release() bool {
	return c.GinMode == "release"
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}
