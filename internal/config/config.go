// Package config loads runtime configuration from the environment.
//
// A .env file in the working directory is loaded first when present (handy
// in development); real environment variables always win because godotenv
// never overwrites variables that are already set.
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
	DriverPostgres = "postgres"
)

// Config holds every setting the server and the seed command need.
type Config struct {
	Port      int    `env:"PORT"       envDefault:"8080"`
	Env       string `env:"APP_ENV"    envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DB DBConfig

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h"`
	APIAuthToken string        `env:"API_AUTH_TOKEN"`
	AdminEmails  []string      `env:"ADMIN_EMAILS" envSeparator:","`
	BcryptCost   int           `env:"BCRYPT_COST"  envDefault:"12"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	AuthRateLimit      int      `env:"AUTH_RATE_LIMIT"      envDefault:"10"` // requests per minute per IP

	BootstrapAdmin BootstrapAdmin
}

// DBConfig selects and tunes the storage backend.
type DBConfig struct {
	Driver          string        `env:"DB_DRIVER"            envDefault:"sqlite"`
	Path            string        `env:"DB_PATH"              envDefault:"data/teamterrain.db"`
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	QueryTimeout    time.Duration `env:"DB_QUERY_TIMEOUT"     envDefault:"5s"`
}

// BootstrapAdmin describes an account created at startup when it does not
// exist yet. Leave Email empty to skip.
type BootstrapAdmin struct {
	Name     string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Administrator"`
	Email    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	Password string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("config: loading .env: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	cfg.AdminEmails = trimAll(cfg.AdminEmails)
	cfg.CORSAllowedOrigins = trimAll(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DB.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DB.Driver))
	}

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set and at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.BootstrapAdmin.Email != "" && c.BootstrapAdmin.Password == "" {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_EMAIL is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether internal error detail must be hidden.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
