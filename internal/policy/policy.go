// Package policy provides the CEL admission rules checked before a plan is calculated.
package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

// noRate is bound to interest_rate when the request omits a rate.
const noRate = -1.0

// Rule is one compiled admission expression.
type Rule struct {
	Expression string
	program    cel.Program
}

// Policy holds a set of boolean CEL expressions every request must satisfy.
// The zero value and an empty Policy admit everything.
type Policy struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules []*Rule
}

// New compiles exprs into a policy. Any compile error fails the whole set.
func New(exprs []string) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("current_age", cel.IntType),
		cel.Variable("retirement_age", cel.IntType),
		cel.Variable("interest_rate", cel.DoubleType),
		cel.Variable("lifestyle_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	p := &Policy{env: env}
	if err := p.Reload(exprs); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload replaces the rule set atomically.
func (p *Policy) Reload(exprs []string) error {
	rules := make([]*Rule, 0, len(exprs))
	for _, expr := range exprs {
		rule, err := p.compile(expr)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
	}

	p.mu.Lock()
	p.rules = rules
	p.mu.Unlock()
	return nil
}

func (p *Policy) compile(expr string) (*Rule, error) {
	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("policy %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %q: %w", expr, err)
	}
	return &Rule{Expression: expr, program: prg}, nil
}

// Check evaluates every rule against req and returns an InvalidInput error
// naming the first rule that does not hold.
func (p *Policy) Check(req domain.RetirementRequest) error {
	if p == nil {
		return nil
	}

	p.mu.RLock()
	rules := p.rules
	p.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	rate := noRate
	if req.InterestRate != nil {
		rate = req.InterestRate.InexactFloat64()
	}
	activation := map[string]any{
		"current_age":    int64(req.CurrentAge),
		"retirement_age": int64(req.RetirementAge),
		"interest_rate":  rate,
		"lifestyle_type": domain.NormalizeKey(req.LifestyleType),
	}

	for _, rule := range rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			return domain.InvalidInput("policy", fmt.Sprintf("evaluation error in %q: %v", rule.Expression, err))
		}
		if ok, isBool := out.(types.Bool); !isBool || !bool(ok) {
			return domain.InvalidInput("policy", "request violates "+rule.Expression)
		}
	}
	return nil
}

// Len returns the number of loaded rules.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rules)
}
