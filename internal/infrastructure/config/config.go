package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo     MongoConfig
	Redis     RedisConfig
	Admission AdmissionConfig
	Mirror    MirrorConfig
}

type MongoConfig struct {
	URI          string        `env:"MONGO_URI,           default=mongodb://localhost:27017"`
	Database     string        `env:"MONGO_DB,            default=locker_system"`
	Timeout      time.Duration `env:"STORE_TIMEOUT,       default=5s"`
	ChangeStream bool          `env:"MONGO_CHANGE_STREAM, default=false"`
}

type RedisConfig struct {
	Addr    string        `env:"REDIS_ADDR,    default=localhost:6379"`
	DB      int           `env:"REDIS_DB,      default=0"`
	Timeout time.Duration `env:"STORE_TIMEOUT, default=5s"`
}

type AdmissionConfig struct {
	MaxAttempts int `env:"ADMISSION_MAX_ATTEMPTS, default=8"`
}

type MirrorConfig struct {
	RepairWorkers int `env:"MIRROR_REPAIR_WORKERS, default=4"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through an arbitrary lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return &cfg, nil
}
