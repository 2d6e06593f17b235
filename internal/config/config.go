package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all process-wide settings. Everything is read from the
// environment once at startup; the JWT signing secret has no default on
// purpose — starting without it is a hard error, not a silent fallback.
type Config struct {
	Env     string `env:"SENSORIUM_ENV" env-default:"local"`
	Version string `env:"SENSORIUM_VERSION" env-default:"dev"`

	HTTP HTTPServer
	DB   Database
	Auth Auth
}

type HTTPServer struct {
	Address        string        `env:"SENSORIUM_HTTP_ADDR" env-default:":8080"`
	ReadTimeout    time.Duration `env:"SENSORIUM_HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout   time.Duration `env:"SENSORIUM_HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout    time.Duration `env:"SENSORIUM_HTTP_IDLE_TIMEOUT" env-default:"60s"`
	MaxBodyBytes   int64         `env:"SENSORIUM_HTTP_MAX_BODY_BYTES" env-default:"1048576"`
	RateLimitRPS   int           `env:"SENSORIUM_HTTP_RATE_LIMIT_RPS" env-default:"20"`
	RateLimitBurst int           `env:"SENSORIUM_HTTP_RATE_LIMIT_BURST" env-default:"40"`
}

type Database struct {
	DSN             string        `env:"SENSORIUM_PG_DSN"`
	MaxOpenConns    int           `env:"SENSORIUM_PG_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `env:"SENSORIUM_PG_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `env:"SENSORIUM_PG_CONN_MAX_LIFETIME" env-default:"30m"`
}

type Auth struct {
	Secret        string        `env:"SENSORIUM_AUTH_SECRET" env-required:"true"`
	TokenTTL      time.Duration `env:"SENSORIUM_AUTH_TOKEN_TTL" env-default:"24h"`
	SweepInterval time.Duration `env:"SENSORIUM_AUTH_SWEEP_INTERVAL" env-default:"1h"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load with a panic on failure, for use in composition roots
// where a missing secret must stop the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
