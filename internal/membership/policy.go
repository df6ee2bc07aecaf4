// Package membership maps a customer's membership tier to its pricing
// benefits: a per-unit price discount and a loyalty redemption cap consumed
// by the loyalty package.
package membership

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// ErrInvalidTier is returned when a tier value is outside the closed set.
var ErrInvalidTier = errors.New("membership: invalid tier")

// Tier identifies a membership level. The set is closed; anything else is a
// caller bug surfaced as ErrInvalidTier.
type Tier string

const (
	TierNone     Tier = "none"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// ParseTier converts a string into a Tier. Matching is case-insensitive and
// the empty string resolves to TierNone.
func ParseTier(value string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(value))) {
	case TierNone, "":
		return TierNone, nil
	case TierGold:
		return TierGold, nil
	case TierPlatinum:
		return TierPlatinum, nil
	case TierDiamond:
		return TierDiamond, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, value)
	}
}

// RateTable holds the per-tier price discount percentages. It is passed in
// explicitly rather than read from package state so tests can substitute
// alternate tables.
type RateTable struct {
	DiscountPct map[Tier]decimal.Decimal
}

// DefaultRateTable returns the production discount table.
func DefaultRateTable() RateTable {
	return RateTable{DiscountPct: map[Tier]decimal.Decimal{
		TierGold:     decimal.NewFromInt(3),
		TierPlatinum: decimal.NewFromInt(5),
		TierDiamond:  decimal.NewFromInt(8),
	}}
}

// DiscountPercent returns the price discount percentage for the tier.
// TierNone is always zero regardless of table contents.
func (t RateTable) DiscountPercent(tier Tier) (decimal.Decimal, error) {
	if err := validate(tier); err != nil {
		return decimal.Zero, err
	}
	if tier == TierNone {
		return decimal.Zero, nil
	}
	return t.DiscountPct[tier], nil
}

// HasDiscount reports whether the tier carries a non-zero price discount.
func (t RateTable) HasDiscount(tier Tier) (bool, error) {
	pct, err := t.DiscountPercent(tier)
	if err != nil {
		return false, err
	}
	return pct.IsPositive(), nil
}

// EffectiveUnitPrice applies the tier discount to a list price and rounds
// half-to-even to the smallest currency unit. TierNone returns the list
// price unchanged. The result is capped at the list price: rounding can land
// above a list price carrying sub-cent digits, and the discount must never
// go negative.
func (t RateTable) EffectiveUnitPrice(tier Tier, listPrice decimal.Decimal) (decimal.Decimal, error) {
	pct, err := t.DiscountPercent(tier)
	if err != nil {
		return decimal.Zero, err
	}
	if pct.IsZero() {
		return listPrice, nil
	}
	return money.Min(listPrice, money.Round(listPrice.Sub(money.Percent(listPrice, pct)))), nil
}

func validate(tier Tier) error {
	switch tier {
	case TierNone, TierGold, TierPlatinum, TierDiamond:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTier, string(tier))
	}
}
