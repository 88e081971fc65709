package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		code string
	}{
		{"InvalidInput", InvalidInput("Current Age", "must be at least 18"), ErrInvalidInput, CodeInvalidInput},
		{"LifestyleNotFound", LifestyleNotFound("unknown"), ErrLifestyleNotFound, CodeLifestyleNotFound},
		{"CalculationFailed", CalculationFailed(errors.New("boom")), ErrCalculationFailed, CodeCalculationFailed},
		{"CacheUnavailable", CacheUnavailable("get", errors.New("dial tcp")), ErrCacheUnavailable, CodeCacheUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.Equal(t, tt.code, CodeOf(tt.err))

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := CalculationFailed(CacheUnavailable("get", cause))

	assert.ErrorIs(t, err, ErrCalculationFailed)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeCalculationFailed, CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInvalidInputMessage(t *testing.T) {
	err := InvalidInput("Retirement Age", "must be greater than Current Age")
	assert.Equal(t, "Invalid input: Retirement Age - must be greater than Current Age", err.Error())
	assert.Equal(t, "Retirement Age", err.Field)
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, CodeCalculationFailed, CodeOf(errors.New("anything")))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "fancy", NormalizeKey("Fancy"))
	assert.Equal(t, "fancy", NormalizeKey("  FANCY "))
	assert.Equal(t, NormalizeKey("simple"), NormalizeKey("Simple"))
}

func TestDepositEncoding(t *testing.T) {
	dep := &LifestyleDeposit{LifestyleType: "fancy", MonthlyDeposit: decimal.RequireFromString("3000")}

	encoded := EncodeDeposit(dep)
	assert.Equal(t, "LifestyleType: fancy, Amount: 3000.00", encoded)
	assert.Equal(t, "3000.00", DepositAmount(encoded))
	assert.Equal(t, "1500.50", DepositAmount("1500.50"))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RETIREMENT_SERVER_PORT", "9090")
	t.Setenv("RETIREMENT_CACHE_TYPE", "redis")
	t.Setenv("RETIREMENT_PLAN_MIN_AGE", "0")

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RETIREMENT_REPOSITORY_DRIVER=postgres\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RETIREMENT_REPOSITORY_DRIVER") })

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 0, cfg.Plan.MinAge)
	assert.Equal(t, 120, cfg.Plan.MaxAge)
	assert.Equal(t, "postgres", cfg.Repository.Driver)
}

func TestPolicyExpressions(t *testing.T) {
	cfg := PlanConfig{PolicyRules: "retirement_age <= 100; ;lifestyle_type in ['simple', 'fancy']"}
	assert.Equal(t, []string{"retirement_age <= 100", "lifestyle_type in ['simple', 'fancy']"}, cfg.PolicyExpressions())
	assert.Empty(t, PlanConfig{}.PolicyExpressions())
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LoggingConfig{Level: "DEBUG"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LoggingConfig{Level: "warning"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LoggingConfig{Level: "bogus"}.SlogLevel())
}
