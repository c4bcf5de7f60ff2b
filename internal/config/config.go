// Package config loads process configuration from the environment.
//
// Values come from real environment variables first. An optional dotenv file
// (".env" in the working directory by default) fills in anything the
// environment leaves unset, the same way `godotenv.Load` behaves, but without
// mutating the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config holds every tunable of the elibrary server and CLI.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"data/elibrary.db"`

	// JWTSecret may be empty here; the token service refuses to start
	// without it so that migrate/maintenance commands still run.
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	CORSAllowedOrigin string  `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	AuthRatePerMinute float64 `env:"AUTH_RATE_PER_MINUTE" envDefault:"30"`
	AuthRateBurst     int     `env:"AUTH_RATE_BURST" envDefault:"10"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`
}

// Load reads configuration. envFile names a dotenv file to merge in; when it
// is empty, ".env" is used if present.
func Load(envFile string) (*Config, error) {
	environ := currentEnviron()

	path := envFile
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	if path != "" {
		fileVars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		for k, v := range fileVars {
			if _, set := environ[k]; !set {
				environ[k] = v
			}
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values that would only fail later and less clearly.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.AuthRatePerMinute <= 0 || c.AuthRateBurst <= 0 {
		return errors.New("config: AUTH_RATE_PER_MINUTE and AUTH_RATE_BURST must be positive")
	}
	return nil
}

func currentEnviron() map[string]string {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			environ[k] = v
		}
	}
	return environ
}
