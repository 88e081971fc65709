// Package plan computes projected retirement savings from cached lifestyle deposits.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/metrics"
	"github.com/Pris83/retirement-calculator/internal/money"
	"github.com/Pris83/retirement-calculator/internal/policy"
)

// RateScale is the number of fractional digits kept for the monthly rate
// and the annuity quotient.
const RateScale = 10

const monthsPerYear = 12

// DefaultMaxAge applies when PlanConfig.MaxAge is unset.
const DefaultMaxAge = 120

var (
	ratePerMonthDivisor = decimal.NewFromInt(100 * monthsPerYear)
	one                 = decimal.NewFromInt(1)
)

var tracer = otel.Tracer("retirement-plan")

// Service is the retirement calculation engine.
type Service struct {
	deposits domain.Cache
	rates    domain.Cache
	policy   *policy.Policy
	bus      domain.EventBus
	minAge   int
	maxAge   int
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy adds CEL admission rules to validation.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithEventBus publishes a plan.calculated event after every successful calculation.
func WithEventBus(bus domain.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// NewService creates a calculation service. rates may be nil when every
// request carries its own interest rate.
func NewService(deposits, rates domain.Cache, cfg domain.PlanConfig, opts ...Option) *Service {
	s := &Service{
		deposits: deposits,
		rates:    rates,
		minAge:   cfg.MinAge,
		maxAge:   cfg.MaxAge,
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultMaxAge
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate validates req, resolves the deposit and rate for its lifestyle and
// projects the future value of monthly deposits made until retirement.
func (s *Service) Calculate(ctx context.Context, req domain.RetirementRequest) (result domain.RetirementResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "plan.Calculate",
		trace.WithAttributes(
			attribute.Int("plan.current_age", req.CurrentAge),
			attribute.Int("plan.retirement_age", req.RetirementAge),
			attribute.String("plan.lifestyle_type", req.LifestyleType),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.CalculationsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.validate(req); err != nil {
		return result, err
	}

	key := domain.NormalizeKey(req.LifestyleType)

	deposit, err := s.resolveDeposit(ctx, key, req.LifestyleType)
	if err != nil {
		return result, s.fail(req, err)
	}

	rate, err := s.resolveRate(ctx, key, req)
	if err != nil {
		return result, s.fail(req, err)
	}

	months := (req.RetirementAge - req.CurrentAge) * monthsPerYear
	fv, err := FutureValue(deposit, rate, months)
	if err != nil {
		return result, s.fail(req, err)
	}

	result = domain.RetirementResult{
		CurrentAge:     req.CurrentAge,
		RetirementAge:  req.RetirementAge,
		InterestRate:   rate,
		LifestyleType:  req.LifestyleType,
		MonthlyDeposit: deposit,
		FutureValue:    fv,
	}

	slog.Debug("retirement plan calculated",
		"lifestyle_type", key,
		"months", months,
		"future_value", fv.StringFixed(money.CurrencyScale),
	)
	s.publish(ctx, result)
	return result, nil
}

func (s *Service) validate(req domain.RetirementRequest) error {
	if req.CurrentAge < s.minAge {
		return domain.InvalidInput("Current Age", fmt.Sprintf("must be at least %d", s.minAge))
	}
	if req.RetirementAge < s.minAge {
		return domain.InvalidInput("Retirement Age", fmt.Sprintf("must be at least %d", s.minAge))
	}
	if req.CurrentAge > s.maxAge {
		return domain.InvalidInput("Current Age", fmt.Sprintf("must be at most %d", s.maxAge))
	}
	if req.RetirementAge > s.maxAge {
		return domain.InvalidInput("Retirement Age", fmt.Sprintf("must be at most %d", s.maxAge))
	}
	if req.RetirementAge <= req.CurrentAge {
		return domain.InvalidInput("Retirement Age", "must be greater than Current Age")
	}
	if req.InterestRate != nil && req.InterestRate.IsNegative() {
		return domain.InvalidInput("Interest Rate", "must not be negative")
	}
	if domain.NormalizeKey(req.LifestyleType) == "" {
		return domain.InvalidInput("Lifestyle Type", "must not be empty")
	}
	return s.policy.Check(req)
}

func (s *Service) resolveDeposit(ctx context.Context, key, lifestyleType string) (decimal.Decimal, error) {
	value, found, err := s.deposits.Get(ctx, key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	metrics.CacheLookupsTotal.WithLabelValues(domain.NamespaceDeposits, hitLabel(found)).Inc()
	if !found {
		return decimal.Decimal{}, domain.LifestyleNotFound(lifestyleType)
	}

	deposit, err := money.Parse(domain.DepositAmount(value))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed deposit for %q: %w", key, err)
	}
	return deposit, nil
}

// resolveRate prefers the request rate and falls back to the interest-rate namespace.
func (s *Service) resolveRate(ctx context.Context, key string, req domain.RetirementRequest) (decimal.Decimal, error) {
	if req.InterestRate != nil {
		return *req.InterestRate, nil
	}
	if s.rates == nil {
		return decimal.Decimal{}, domain.LifestyleNotFound(req.LifestyleType)
	}

	value, found, err := s.rates.Get(ctx, key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	metrics.CacheLookupsTotal.WithLabelValues(domain.NamespaceInterestRates, hitLabel(found)).Inc()
	if !found {
		return decimal.Decimal{}, domain.LifestyleNotFound(req.LifestyleType)
	}

	rate, err := money.Parse(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed interest rate for %q: %w", key, err)
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative cached interest rate for %q: %s", key, value)
	}
	return rate, nil
}

// fail keeps LifestyleNotFound as is and turns everything else into CalculationFailed.
func (s *Service) fail(req domain.RetirementRequest, err error) error {
	if errors.Is(err, domain.ErrLifestyleNotFound) {
		slog.Warn("lifestyle not configured", "lifestyle_type", req.LifestyleType)
		return err
	}
	slog.Error("retirement calculation failed",
		"current_age", req.CurrentAge,
		"retirement_age", req.RetirementAge,
		"lifestyle_type", req.LifestyleType,
		"error", err,
	)
	return domain.CalculationFailed(err)
}

func (s *Service) publish(ctx context.Context, r domain.RetirementResult) {
	if s.bus == nil {
		return
	}

	event := domain.PlanCalculatedEvent{
		ID:             uuid.New().String(),
		CurrentAge:     r.CurrentAge,
		RetirementAge:  r.RetirementAge,
		InterestRate:   r.InterestRate.String(),
		LifestyleType:  r.LifestyleType,
		MonthlyDeposit: r.MonthlyDeposit.StringFixed(money.CurrencyScale),
		FutureValue:    r.FutureValue.StringFixed(money.CurrencyScale),
		CalculatedAt:   time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode plan event", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, domain.TopicPlanCalculated, payload); err != nil {
		slog.Warn("failed to publish plan event", "id", event.ID, "error", err)
	}
}

// MonthlyRate converts an annual percentage rate into a monthly fraction,
// rounded half-up to RateScale digits.
func MonthlyRate(annualPercent decimal.Decimal) (decimal.Decimal, error) {
	return money.Divide(annualPercent, ratePerMonthDivisor, RateScale, money.HalfUp)
}

// FutureValue is the value of an ordinary annuity of monthly deposits made at
// the end of each month: deposit * ((1+r)^months - 1) / r, with r the monthly
// rate. A zero rate degenerates to deposit * months. The result is rounded
// half-up to cents.
func FutureValue(deposit, annualPercent decimal.Decimal, months int) (decimal.Decimal, error) {
	if months < 0 {
		return decimal.Decimal{}, fmt.Errorf("negative period: %d months", months)
	}

	r, err := MonthlyRate(annualPercent)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if r.IsZero() {
		return money.RoundCurrency(deposit.Mul(decimal.NewFromInt(int64(months)))), nil
	}

	growth, err := money.Power(one.Add(r), months)
	if err != nil {
		return decimal.Decimal{}, err
	}
	fv, err := money.Divide(deposit.Mul(growth.Sub(one)), r, RateScale, money.HalfUp)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return money.RoundCurrency(fv), nil
}

func hitLabel(found bool) string {
	if found {
		return "hit"
	}
	return "miss"
}
