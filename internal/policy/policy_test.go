package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPolicyCheck(t *testing.T) {
	p, err := New([]string{
		"retirement_age <= 75",
		"interest_rate < 0.0 || interest_rate <= 15.0",
		"lifestyle_type in ['simple', 'fancy']",
	})
	if err != nil {
		t.Fatalf("failed to compile policy: %v", err)
	}
	if p.Len() != 3 {
		t.Errorf("expected 3 rules, got %d", p.Len())
	}

	tests := []struct {
		name    string
		req     domain.RetirementRequest
		wantErr bool
	}{
		{"Admitted", domain.RetirementRequest{CurrentAge: 30, RetirementAge: 65, InterestRate: rate("5"), LifestyleType: "Fancy"}, false},
		{"OmittedRate", domain.RetirementRequest{CurrentAge: 30, RetirementAge: 65, LifestyleType: "simple"}, false},
		{"RetirementTooLate", domain.RetirementRequest{CurrentAge: 30, RetirementAge: 80, LifestyleType: "simple"}, true},
		{"RateTooHigh", domain.RetirementRequest{CurrentAge: 30, RetirementAge: 65, InterestRate: rate("22.5"), LifestyleType: "simple"}, true},
		{"UnknownLifestyle", domain.RetirementRequest{CurrentAge: 30, RetirementAge: 65, LifestyleType: "lavish"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.req)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("expected request to be admitted, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if code := domain.CodeOf(err); code != domain.CodeInvalidInput {
				t.Errorf("expected code %s, got %s", domain.CodeInvalidInput, code)
			}
		})
	}
}

func TestEmptyPolicyAdmitsEverything(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Check(domain.RetirementRequest{CurrentAge: 1, RetirementAge: 2}); err != nil {
		t.Errorf("empty policy rejected request: %v", err)
	}

	var nilPolicy *Policy
	if err := nilPolicy.Check(domain.RetirementRequest{}); err != nil {
		t.Errorf("nil policy rejected request: %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{"retirement_age <=", "unknown_var > 1"} {
		if _, err := New([]string{expr}); err == nil {
			t.Errorf("expected compile error for %q", expr)
		}
	}

	_, err := New([]string{"retirement_age + 1"})
	if err == nil || !strings.Contains(err.Error(), "must evaluate to bool") {
		t.Errorf("expected non-bool error, got %v", err)
	}
}

func TestReload(t *testing.T) {
	p, err := New([]string{"current_age >= 21"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req := domain.RetirementRequest{CurrentAge: 19, RetirementAge: 65, LifestyleType: "simple"}
	if err := p.Check(req); err == nil {
		t.Error("expected rejection before reload")
	}

	if err := p.Reload(nil); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if err := p.Check(req); err != nil {
		t.Errorf("expected admission after reload, got %v", err)
	}

	if err := p.Reload([]string{"bad ("}); err == nil {
		t.Error("expected reload error for invalid expression")
	}
	if p.Len() != 0 {
		t.Errorf("expected failed reload to keep previous rules, got %d", p.Len())
	}
}
