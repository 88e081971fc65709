package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LifestyleDeposit is the persisted monthly deposit for a lifestyle type.
type LifestyleDeposit struct {
	ID             int64           `json:"id"`
	LifestyleType  string          `json:"lifestyleType"`
	MonthlyDeposit decimal.Decimal `json:"monthlyDeposit"`
}

// RetirementRequest is the input of a plan calculation.
// InterestRate is optional; when nil the cached rate for the lifestyle is used.
type RetirementRequest struct {
	CurrentAge    int
	RetirementAge int
	InterestRate  *decimal.Decimal
	LifestyleType string
}

// RetirementResult is the outcome of a plan calculation.
type RetirementResult struct {
	CurrentAge     int
	RetirementAge  int
	InterestRate   decimal.Decimal
	LifestyleType  string
	MonthlyDeposit decimal.Decimal
	FutureValue    decimal.Decimal
}

// CalculationRecord is a stored calculation, written by the audit worker.
type CalculationRecord struct {
	ID             string          `json:"id"`
	CurrentAge     int             `json:"currentAge"`
	RetirementAge  int             `json:"retirementAge"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	LifestyleType  string          `json:"lifestyleType"`
	MonthlyDeposit decimal.Decimal `json:"monthlyDeposit"`
	FutureValue    decimal.Decimal `json:"futureValue"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NormalizeKey returns the cache and store key for a lifestyle type.
func NormalizeKey(lifestyleType string) string {
	return strings.ToLower(strings.TrimSpace(lifestyleType))
}

const (
	encodedTypePrefix   = "LifestyleType: "
	encodedAmountMarker = ", Amount: "
)

// EncodeDeposit renders a record in the form written by cache refreshes.
func EncodeDeposit(d *LifestyleDeposit) string {
	return encodedTypePrefix + d.LifestyleType + encodedAmountMarker + d.MonthlyDeposit.StringFixed(2)
}

// DepositAmount extracts the amount from a cached deposit value.
// Values are either a plain decimal or the EncodeDeposit form.
func DepositAmount(value string) string {
	if !strings.HasPrefix(value, encodedTypePrefix) {
		return value
	}
	if i := strings.LastIndex(value, encodedAmountMarker); i >= 0 {
		return value[i+len(encodedAmountMarker):]
	}
	return value
}
