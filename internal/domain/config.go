package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "RETIREMENT"

const (
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisIOTimeout   = 3 * time.Second
)

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `envconfig:"SERVER"`

	// Calculation settings
	Plan PlanConfig `envconfig:"PLAN"`

	// Component configurations
	Repository RepositoryConfig `envconfig:"REPOSITORY"`
	Cache      CacheConfig      `envconfig:"CACHE"`
	EventBus   EventBusConfig   `envconfig:"EVENTBUS"`
	Loader     LoaderConfig     `envconfig:"LOADER"`

	// AuditWorker stores every calculation event as history when enabled.
	AuditWorker bool `envconfig:"AUDIT_WORKER" default:"true"`

	// Observability
	Logging LoggingConfig `envconfig:"LOG"`
	Tracing TracingConfig `envconfig:"TRACING"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `envconfig:"HOST" default:"0.0.0.0"`
	Port         int    `envconfig:"PORT" default:"8080"`
	ReadTimeout  int    `envconfig:"READ_TIMEOUT" default:"30"`  // seconds
	WriteTimeout int    `envconfig:"WRITE_TIMEOUT" default:"30"` // seconds
}

// PlanConfig holds calculation policy settings.
type PlanConfig struct {
	// MinAge is the lowest accepted current and retirement age.
	MinAge int `envconfig:"MIN_AGE" default:"18"`

	// MaxAge is the highest accepted current and retirement age. It bounds the
	// deposit horizon and with it the cost of the growth factor.
	MaxAge int `envconfig:"MAX_AGE" default:"120"`

	// PolicyRules is a ";"-separated list of CEL expressions every request must satisfy.
	PolicyRules string `envconfig:"POLICY_RULES"`
}

// PolicyExpressions splits PolicyRules into individual expressions.
func (c PlanConfig) PolicyExpressions() []string {
	var exprs []string
	for _, e := range strings.Split(c.PolicyRules, ";") {
		if e = strings.TrimSpace(e); e != "" {
			exprs = append(exprs, e)
		}
	}
	return exprs
}

// LoaderConfig holds startup loading settings.
type LoaderConfig struct {
	// DepositsCSV seeds the repository (lifestyleType,monthlyDeposit) when set.
	DepositsCSV string `envconfig:"DEPOSITS_CSV"`

	// InterestRatesCSV fills the interest-rate namespace (lifestyleType,interestRate) when set.
	InterestRatesCSV string `envconfig:"INTEREST_RATES_CSV"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`  // debug, info, warn, error
	Format string `envconfig:"FORMAT" default:"json"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `envconfig:"ENABLED" default:"false"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"retirement-calculator"`
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Plan: PlanConfig{
			MinAge: 18,
			MaxAge: 120,
		},
		Repository: RepositoryConfig{
			Driver:          "sqlite",
			SQLitePath:      "./retirement.db",
			PostgresHost:    "localhost",
			PostgresPort:    5432,
			PostgresUser:    "postgres",
			PostgresDB:      "retirement",
			PostgresSSLMode: "disable",
		},
		Cache: CacheConfig{
			Type:              "memory",
			LocalMaxSize:      10000,
			RedisAddr:         "localhost:6379",
			RedisDepositsDB:   0,
			RedisInterestDB:   1,
			RedisDialTimeout:  defaultRedisDialTimeout,
			RedisReadTimeout:  defaultRedisIOTimeout,
			RedisWriteTimeout: defaultRedisIOTimeout,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
			NATSUrl:           "nats://localhost:4222",
			NATSMaxReconnects: 10,
			NATSReconnectWait: 5,
		},
		AuditWorker: true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "retirement-calculator",
		},
	}
}

// LoadConfig reads an optional .env file and then the RETIREMENT_* environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		slog.Debug("no env file found, using process environment", "files", envFiles)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name to a slog level.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
