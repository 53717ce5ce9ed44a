package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment names the deployment the process belongs to. Destructive
// operations key off it: the commit log kill-all job refuses to run anywhere
// that could hold live production data.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
	EnvUnitTest   Environment = "unittest"
)

// AllowsKillAll reports whether bulk commit log deletion may run here.
func (e Environment) AllowsKillAll() bool {
	return e == EnvSandbox || e == EnvUnitTest
}

// Config captures process configuration, parsed from the environment so main
// stays lean.
type Config struct {
	Addr        string      `env:"REGISTRY_ADDR" envDefault:":8080"`
	Environment Environment `env:"REGISTRY_ENVIRONMENT" envDefault:"sandbox"`
	LogJSON     bool        `env:"REGISTRY_LOG_JSON" envDefault:"false"`

	PostgresDSN string `env:"REGISTRY_POSTGRES_DSN"`
	RedisURL    string `env:"REGISTRY_REDIS_URL"`

	KafkaBrokers     []string      `env:"REGISTRY_KAFKA_BROKERS" envSeparator:","`
	KafkaExportTopic string        `env:"REGISTRY_KAFKA_EXPORT_TOPIC" envDefault:"commit-log-export"`
	ExportInterval   time.Duration `env:"REGISTRY_EXPORT_INTERVAL" envDefault:"1m"`

	AdminTokenKey string `env:"REGISTRY_ADMIN_TOKEN_KEY"`

	CommitLogBuckets int `env:"REGISTRY_COMMIT_LOG_BUCKETS" envDefault:"3"`

	// Transfer policy knobs. The pending period is how long a request stays
	// open before automatic approval; the cooldown gates how soon after
	// creation or a previous transfer a new request is eligible.
	TransferPendingPeriod time.Duration `env:"REGISTRY_TRANSFER_PENDING_PERIOD" envDefault:"120h"`
	TransferCooldown      time.Duration `env:"REGISTRY_TRANSFER_COOLDOWN" envDefault:"24h"`
	TransferCostCents     int64         `env:"REGISTRY_TRANSFER_COST_CENTS" envDefault:"1100"`

	IndexCacheTTL time.Duration `env:"REGISTRY_INDEX_CACHE_TTL" envDefault:"5m"`
}

// FromEnv parses configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	switch cfg.Environment {
	case EnvProduction, EnvSandbox, EnvUnitTest:
	default:
		return Config{}, fmt.Errorf("unknown environment %q", cfg.Environment)
	}
	return cfg, nil
}
