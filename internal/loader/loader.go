// Package loader fills the store and the caches before the service is ready.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/money"
)

// CSV header columns.
const (
	ColumnLifestyleType  = "lifestyleType"
	ColumnMonthlyDeposit = "monthlyDeposit"
	ColumnInterestRate   = "interestRate"
)

// DepositWriter is the store side used for seeding.
type DepositWriter interface {
	SaveLifestyleDeposit(ctx context.Context, deposit *domain.LifestyleDeposit) error
}

// Row is one parsed CSV record.
type Row struct {
	LifestyleType string
	Value         decimal.Decimal
}

// SeedDeposits upserts every lifestyleType,monthlyDeposit row of r into the store.
func SeedDeposits(ctx context.Context, store DepositWriter, r io.Reader) (int, error) {
	rows, err := ReadCSV(r, ColumnMonthlyDeposit)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		if row.Value.IsNegative() {
			return 0, fmt.Errorf("negative monthly deposit for %q", row.LifestyleType)
		}
		dep := &domain.LifestyleDeposit{LifestyleType: row.LifestyleType, MonthlyDeposit: row.Value}
		if err := store.SaveLifestyleDeposit(ctx, dep); err != nil {
			return 0, fmt.Errorf("save %q: %w", row.LifestyleType, err)
		}
	}

	slog.Info("seeded lifestyle deposits", "count", len(rows))
	return len(rows), nil
}

// LoadDeposits writes every stored deposit into the deposit cache as a plain
// decimal under its normalized key, in key order.
func LoadDeposits(ctx context.Context, store domain.DepositStore, cache domain.Cache) (int, error) {
	all, err := store.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load deposits: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return domain.NormalizeKey(all[i].LifestyleType) < domain.NormalizeKey(all[j].LifestyleType)
	})

	for _, dep := range all {
		key := domain.NormalizeKey(dep.LifestyleType)
		value := dep.MonthlyDeposit.StringFixed(money.CurrencyScale)
		if err := cache.Set(ctx, key, value); err != nil {
			return 0, fmt.Errorf("cache %q: %w", key, err)
		}
		slog.Info("cached deposit", "key", key, "value", value)
	}
	return len(all), nil
}

// LoadInterestRates writes every lifestyleType,interestRate row of r into the
// interest-rate cache, in key order.
func LoadInterestRates(ctx context.Context, r io.Reader, cache domain.Cache) (int, error) {
	rows, err := ReadCSV(r, ColumnInterestRate)
	if err != nil {
		return 0, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return domain.NormalizeKey(rows[i].LifestyleType) < domain.NormalizeKey(rows[j].LifestyleType)
	})

	for _, row := range rows {
		if row.Value.IsNegative() {
			return 0, fmt.Errorf("negative interest rate for %q", row.LifestyleType)
		}
		key := domain.NormalizeKey(row.LifestyleType)
		if err := cache.Set(ctx, key, row.Value.String()); err != nil {
			return 0, fmt.Errorf("cache %q: %w", key, err)
		}
		slog.Info("cached interest rate", "key", key, "value", row.Value.String())
	}
	return len(rows), nil
}

// ReadCSV parses a CSV with a header row holding lifestyleType and valueColumn.
// Extra columns are ignored and blank lines are skipped.
func ReadCSV(r io.Reader, valueColumn string) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv is empty, expected header with %s and %s", ColumnLifestyleType, valueColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	typeIdx, valueIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnLifestyleType:
			typeIdx = i
		case valueColumn:
			valueIdx = i
		}
	}
	if typeIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("csv header must contain %s and %s", ColumnLifestyleType, valueColumn)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		if typeIdx >= len(record) || valueIdx >= len(record) {
			return nil, fmt.Errorf("csv line %d: missing columns", line)
		}

		lifestyle := strings.TrimSpace(record[typeIdx])
		if lifestyle == "" {
			return nil, fmt.Errorf("csv line %d: empty %s", line, ColumnLifestyleType)
		}
		value, err := money.Parse(record[valueIdx])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: invalid %s %q: %w", line, valueColumn, record[valueIdx], err)
		}
		rows = append(rows, Row{LifestyleType: lifestyle, Value: value})
	}
	return rows, nil
}

// Run seeds the store (when a deposits file is set), loads deposits into the
// deposit cache and rates into the interest-rate cache (when a rates file is set).
func Run(ctx context.Context, cfg domain.LoaderConfig, repo domain.Repository, deposits, rates domain.Cache) error {
	if cfg.DepositsCSV != "" {
		if err := withFile(cfg.DepositsCSV, func(f io.Reader) error {
			_, err := SeedDeposits(ctx, repo, f)
			return err
		}); err != nil {
			return fmt.Errorf("seed deposits: %w", err)
		}
	}

	n, err := LoadDeposits(ctx, repo, deposits)
	if err != nil {
		return err
	}
	slog.Info("deposit cache loaded", "count", n)

	if cfg.InterestRatesCSV != "" && rates != nil {
		if err := withFile(cfg.InterestRatesCSV, func(f io.Reader) error {
			n, err := LoadInterestRates(ctx, f, rates)
			if err == nil {
				slog.Info("interest rate cache loaded", "count", n)
			}
			return err
		}); err != nil {
			return fmt.Errorf("load interest rates: %w", err)
		}
	}
	return nil
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
