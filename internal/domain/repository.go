// Package domain defines the core interfaces and types for the retirement calculator.
package domain

import (
	"context"
	"time"
)

// DepositStore is the read side of the backing store used by cache maintenance.
type DepositStore interface {
	// FindByLifestyleType returns the record for a lifestyle key, or ErrNotFound.
	FindByLifestyleType(ctx context.Context, lifestyleType string) (*LifestyleDeposit, error)

	// FindAll returns every record. Order is not significant.
	FindAll(ctx context.Context) ([]*LifestyleDeposit, error)
}

// Repository defines the interface for data persistence.
type Repository interface {
	DepositStore

	// Administrative writes used by loaders
	SaveLifestyleDeposit(ctx context.Context, deposit *LifestyleDeposit) error

	// Calculation history
	SaveCalculation(ctx context.Context, record *CalculationRecord) error
	ListCalculations(ctx context.Context, limit int) ([]*CalculationRecord, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `envconfig:"DRIVER" default:"sqlite"`

	// SQLite specific
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./retirement.db"`

	// PostgreSQL specific
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"retirement"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// Connection pool settings
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME"`
}
