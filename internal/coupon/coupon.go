// Package coupon resolves coupon codes and computes the resulting discount.
// An unknown code is not an error: resolution reports "not found" and the
// caller decides whether to surface a warning, so a bad coupon prices
// identically to no coupon.
package coupon

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Kind discriminates how a coupon's value is interpreted.
type Kind string

const (
	// KindPercent discounts value% of the subtotal it is applied to.
	KindPercent Kind = "percent"
	// KindFixed discounts a fixed amount, capped at the subtotal.
	KindFixed Kind = "fixed"
)

// Rule is a resolved coupon.
type Rule struct {
	Code  string
	Kind  Kind
	Value decimal.Decimal
}

// Registry resolves a code into a Rule. The production registry is an
// in-process map; a remote registry can implement the same interface.
type Registry interface {
	// Resolve returns the rule for code and whether it exists. Lookup is
	// case-insensitive exact match.
	Resolve(ctx context.Context, code string) (Rule, bool, error)
}

// StaticRegistry is an immutable in-memory Registry keyed by uppercased code.
type StaticRegistry map[string]Rule

// NewStaticRegistry builds a StaticRegistry from the provided rules.
func NewStaticRegistry(rules ...Rule) StaticRegistry {
	reg := make(StaticRegistry, len(rules))
	for _, rule := range rules {
		code := strings.ToUpper(strings.TrimSpace(rule.Code))
		if code == "" {
			continue
		}
		rule.Code = code
		reg[code] = rule
	}
	return reg
}

// Resolve implements Registry.
func (r StaticRegistry) Resolve(_ context.Context, code string) (Rule, bool, error) {
	rule, ok := r[strings.ToUpper(strings.TrimSpace(code))]
	return rule, ok, nil
}

// Apply computes the discount a rule yields against a subtotal. The result is
// never negative and never exceeds the subtotal.
func Apply(rule Rule, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch rule.Kind {
	case KindPercent:
		discount = money.Round(money.Percent(subtotal, rule.Value))
	case KindFixed:
		discount = money.Round(rule.Value)
	default:
		return decimal.Zero
	}
	discount = money.Min(discount, subtotal)
	return money.ClampNonNegative(discount)
}
