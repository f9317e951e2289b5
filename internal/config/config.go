package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

const (
	AccountBackendRedis    = "redis"
	AccountBackendPostgres = "postgres"

	CrashPolicyRandom       = "random"
	CrashPolicyProvablyFair = "provably_fair"
)

type Config struct {
	Port       int    `env:"PORT" envDefault:"8080"`
	AppEnv     string `env:"APP_ENV" envDefault:"local"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	AdminToken string `env:"ADMIN_TOKEN"`

	Redis    RedisConfig
	Database DatabaseConfig
	Game     GameConfig

	AccountBackend string `env:"ACCOUNT_BACKEND" envDefault:"redis"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type DatabaseConfig struct {
	Host           string `env:"BLUEPRINT_DB_HOST" envDefault:"localhost"`
	Port           string `env:"BLUEPRINT_DB_PORT" envDefault:"5432"`
	Database       string `env:"BLUEPRINT_DB_DATABASE" envDefault:"crashdb"`
	Username       string `env:"BLUEPRINT_DB_USERNAME" envDefault:"postgres"`
	Password       string `env:"BLUEPRINT_DB_PASSWORD" envDefault:"postgres"`
	Schema         string `env:"BLUEPRINT_DB_SCHEMA" envDefault:"public"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	Enabled        bool   `env:"DB_ENABLED" envDefault:"true"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Schema)
}

type GameConfig struct {
	BettingWindow time.Duration `env:"BETTING_WINDOW" envDefault:"5s"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	CrashedWindow time.Duration `env:"CRASHED_WINDOW" envDefault:"3s"`
	CrashPolicy   string        `env:"CRASH_POLICY" envDefault:"random"`
	MaxRoundTicks int           `env:"MAX_ROUND_TICKS" envDefault:"0"`
}

// Load parses the process environment (and any .env file picked up by
// godotenv) into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AccountBackend {
	case AccountBackendRedis, AccountBackendPostgres:
	default:
		return fmt.Errorf("unknown ACCOUNT_BACKEND %q", c.AccountBackend)
	}
	switch c.Game.CrashPolicy {
	case CrashPolicyRandom, CrashPolicyProvablyFair:
	default:
		return fmt.Errorf("unknown CRASH_POLICY %q", c.Game.CrashPolicy)
	}
	if c.Game.TickInterval <= 0 || c.Game.BettingWindow <= 0 || c.Game.CrashedWindow <= 0 {
		return fmt.Errorf("game durations must be positive")
	}
	if c.Game.MaxRoundTicks < 0 {
		return fmt.Errorf("MAX_ROUND_TICKS must not be negative")
	}
	if c.AccountBackend == AccountBackendPostgres && !c.Database.Enabled {
		return fmt.Errorf("ACCOUNT_BACKEND=postgres requires DB_ENABLED")
	}
	return nil
}

// IsLocal reports whether the service runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.AppEnv == "local"
}
