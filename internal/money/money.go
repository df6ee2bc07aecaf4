// Package money provides fixed-point decimal helpers shared by every pricing
// policy. All customer-visible amounts are decimal rupees with two fractional
// digits; intermediate results keep full precision and are rounded exactly
// once at the boundary documented by each policy.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to the smallest currency unit using
// round-half-to-even (banker's rounding).
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(2)
}

// Floor truncates an amount down to the smallest currency unit. Used where a
// derived value must never exceed what it nominally represents, such as the
// currency value of a redeemed coin count.
func Floor(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundDown(2)
}

// Percent returns base * pct / 100 without rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// ClampNonNegative floors an amount at zero.
func ClampNonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
