package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                     int    `env:"PORT" envDefault:"8080"`
	DatabaseURL              string `env:"DATABASE_URL"`
	DatabaseDriver           string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	AutoMigrate              bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	DBMaxOpenConns           int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeSeconds int    `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSeconds int    `env:"DB_CONN_MAX_IDLE_SECONDS" envDefault:"60"`
	MaxPlayers               int    `env:"MAX_PLAYERS" envDefault:"50"`
	// CORSOrigins is a comma separated allow list; "*" allows any origin.
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	PublicURL   string `env:"PUBLIC_URL"`
}

func Default() Config {
	return Config{
		Port:                     8080,
		DatabaseDriver:           "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		MaxPlayers:               50,
		CORSOrigins:              "*",
	}
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse reads the configuration from the environment without validating it,
// for callers that layer further overrides on top before calling Validate.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.DatabaseDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.MaxPlayers < 4 {
		return fmt.Errorf("max players must be at least 4, got %d", c.MaxPlayers)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSeconds) * time.Second
}

func (c Config) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.DBConnMaxIdleTimeSeconds) * time.Second
}
