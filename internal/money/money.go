// Package money provides fixed-point decimal arithmetic for currency and rate values.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of fractional digits used for currency amounts.
const CurrencyScale = 2

var (
	// ErrDivisionByZero is returned by Divide when the divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNegativeExponent is returned by Power for exponents below zero.
	ErrNegativeExponent = errors.New("negative exponent")
)

// RoundingMode selects how discarded digits affect the retained ones.
type RoundingMode int

const (
	// HalfUp rounds ties away from zero. This is the currency default.
	HalfUp RoundingMode = iota
	// HalfEven rounds ties to the nearest even digit.
	HalfEven
	// Down truncates toward zero.
	Down
	// Up rounds away from zero whenever any discarded digit is non-zero.
	Up
)

func (m RoundingMode) String() string {
	switch m {
	case HalfUp:
		return "half-up"
	case HalfEven:
		return "half-even"
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("RoundingMode(%d)", int(m))
	}
}

var two = decimal.NewFromInt(2)

// Parse reads a decimal from its string form, ignoring surrounding whitespace.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// Divide returns a / b with exactly scale fractional digits, rounded with mode.
// The quotient is derived from the exact remainder, so no intermediate rounding occurs.
func Divide(a, b decimal.Decimal, scale int32, mode RoundingMode) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}

	q, r := a.QuoRem(b, scale)
	if r.IsZero() {
		return q, nil
	}

	unit := decimal.New(1, -scale)
	// Step between two adjacent candidate quotients, expressed in remainder units.
	step := b.Abs().Mul(unit)
	twiceRem := r.Abs().Mul(two)

	bump := false
	switch mode {
	case HalfUp:
		bump = twiceRem.Cmp(step) >= 0
	case HalfEven:
		switch twiceRem.Cmp(step) {
		case 1:
			bump = true
		case 0:
			bump = isOddAtScale(q, scale)
		}
	case Up:
		bump = true
	case Down:
	default:
		return decimal.Zero, fmt.Errorf("unsupported rounding mode %s", mode)
	}

	if !bump {
		return q, nil
	}
	if a.Sign()*b.Sign() < 0 {
		return q.Sub(unit), nil
	}
	return q.Add(unit), nil
}

// Power raises base to a non-negative integer exponent using exponentiation by squaring.
// The result is exact.
func Power(base decimal.Decimal, exp int) (decimal.Decimal, error) {
	if exp < 0 {
		return decimal.Zero, ErrNegativeExponent
	}

	result := decimal.NewFromInt(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base)
		}
		exp >>= 1
		if exp > 0 {
			base = base.Mul(base)
		}
	}
	return result, nil
}

// Round returns value rounded to scale fractional digits using mode.
func Round(value decimal.Decimal, scale int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case HalfEven:
		return value.RoundBank(scale)
	case Down:
		return value.Truncate(scale)
	case Up:
		return value.RoundUp(scale)
	default:
		return value.Round(scale)
	}
}

// RoundCurrency rounds to CurrencyScale digits, half-up.
func RoundCurrency(value decimal.Decimal) decimal.Decimal {
	return Round(value, CurrencyScale, HalfUp)
}

func isOddAtScale(q decimal.Decimal, scale int32) bool {
	digits := q.Shift(scale).Abs()
	return !digits.Mod(two).IsZero()
}
