package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath          string        `env:"DB_PATH" envDefault:"data/tourguide.db"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"336h"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*"`
	SeedDemo        bool          `env:"SEED_DEMO" envDefault:"true"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
