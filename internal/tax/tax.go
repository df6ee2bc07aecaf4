// Package tax computes the tax amount for a quote. The current design is a
// single flat rate applied uniformly to the discounted base; jurisdictional
// variation would make Policy an interface, but nothing needs that yet.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Policy holds the flat tax rate as a percentage.
type Policy struct {
	RatePct decimal.Decimal
}

// DefaultPolicy returns the production 18% flat rate.
func DefaultPolicy() Policy {
	return Policy{RatePct: decimal.NewFromInt(18)}
}

// Compute returns the tax due on a discounted base, rounded half-to-even to
// the smallest currency unit. Negative bases yield zero tax.
func (p Policy) Compute(discountedBase decimal.Decimal) decimal.Decimal {
	base := money.ClampNonNegative(discountedBase)
	return money.Round(money.Percent(base, p.RatePct))
}
