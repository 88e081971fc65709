// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

const defaultHistoryLimit = 100

var _ domain.Repository = (*SQLRepository)(nil)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration and runs migrations.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// FindByLifestyleType returns the deposit for a lifestyle type, ignoring case.
func (r *SQLRepository) FindByLifestyleType(ctx context.Context, lifestyleType string) (*domain.LifestyleDeposit, error) {
	query := `
		SELECT id, lifestyle_type, monthly_deposit
		FROM lifestyle_deposits
		WHERE lifestyle_key = ?
	`

	var d domain.LifestyleDeposit
	err := r.db.QueryRowContext(ctx, r.rebind(query), domain.NormalizeKey(lifestyleType)).
		Scan(&d.ID, &d.LifestyleType, &d.MonthlyDeposit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindAll returns every lifestyle deposit ordered by key.
func (r *SQLRepository) FindAll(ctx context.Context) ([]*domain.LifestyleDeposit, error) {
	query := `
		SELECT id, lifestyle_type, monthly_deposit
		FROM lifestyle_deposits
		ORDER BY lifestyle_key
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []*domain.LifestyleDeposit
	for rows.Next() {
		var d domain.LifestyleDeposit
		if err := rows.Scan(&d.ID, &d.LifestyleType, &d.MonthlyDeposit); err != nil {
			return nil, err
		}
		deposits = append(deposits, &d)
	}
	return deposits, rows.Err()
}

// SaveLifestyleDeposit inserts or replaces the deposit for a lifestyle type.
// The stored ID is written back to deposit.
func (r *SQLRepository) SaveLifestyleDeposit(ctx context.Context, deposit *domain.LifestyleDeposit) error {
	key := domain.NormalizeKey(deposit.LifestyleType)
	if key == "" {
		return fmt.Errorf("%w: lifestyle type is required", domain.ErrInvalidInput)
	}
	if deposit.MonthlyDeposit.IsNegative() {
		return fmt.Errorf("%w: monthly deposit must not be negative", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO lifestyle_deposits (lifestyle_key, lifestyle_type, monthly_deposit, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lifestyle_key) DO UPDATE SET
			lifestyle_type = excluded.lifestyle_type,
			monthly_deposit = excluded.monthly_deposit,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		key, deposit.LifestyleType, deposit.MonthlyDeposit.StringFixed(2), time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, r.rebind(`SELECT id FROM lifestyle_deposits WHERE lifestyle_key = ?`), key).
		Scan(&deposit.ID)
	return err
}

// SaveCalculation stores a calculation record. Saving the same ID twice is a no-op.
func (r *SQLRepository) SaveCalculation(ctx context.Context, record *domain.CalculationRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: calculation id is required", domain.ErrInvalidInput)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO calculations (
			id, current_age, retirement_age, interest_rate, lifestyle_type,
			monthly_deposit, future_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		record.ID, record.CurrentAge, record.RetirementAge,
		record.InterestRate.String(), record.LifestyleType,
		record.MonthlyDeposit.StringFixed(2), record.FutureValue.StringFixed(2),
		record.CreatedAt.UTC(),
	)
	return err
}

// ListCalculations returns the most recent calculations first.
func (r *SQLRepository) ListCalculations(ctx context.Context, limit int) ([]*domain.CalculationRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `
		SELECT id, current_age, retirement_age, interest_rate, lifestyle_type,
			   monthly_deposit, future_value, created_at
		FROM calculations
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.CalculationRecord
	for rows.Next() {
		var rec domain.CalculationRecord
		if err := rows.Scan(
			&rec.ID, &rec.CurrentAge, &rec.RetirementAge,
			&rec.InterestRate, &rec.LifestyleType,
			&rec.MonthlyDeposit, &rec.FutureValue, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		n++
	}
	return b.String()
}
