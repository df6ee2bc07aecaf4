// Package loyalty decides how many loyalty coins a customer may redeem
// against a quote and values the redeemed coins in currency.
package loyalty

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/membership"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// Reason explains why a redemption plan is ineligible. These are expected
// states shown to the customer, not errors.
type Reason string

const (
	ReasonTierIneligible      Reason = "TIER_INELIGIBLE"
	ReasonBelowMinimumBalance Reason = "BELOW_MINIMUM_BALANCE"
)

// Account is a snapshot of the customer's loyalty account. The engine never
// mutates the balance; the actual coin debit happens at order confirmation.
type Account struct {
	// Balance is the coin count, never negative.
	Balance int64
	// ExchangeRate is the currency value of one coin.
	ExchangeRate decimal.Decimal
}

// Rates carries the process-wide redemption constants, passed explicitly so
// tests can substitute alternate tables.
type Rates struct {
	// MinimumBalance is the inclusive threshold below which redemption is
	// disabled entirely.
	MinimumBalance int64
	// MaxRedemptionPct caps redemption value as a percentage of the
	// discounted pre-tax base, per tier.
	MaxRedemptionPct map[membership.Tier]decimal.Decimal
}

// DefaultRates returns the production redemption table.
func DefaultRates() Rates {
	return Rates{
		MinimumBalance: 10_000,
		MaxRedemptionPct: map[membership.Tier]decimal.Decimal{
			membership.TierGold:     decimal.NewFromInt(5),
			membership.TierPlatinum: decimal.NewFromInt(10),
			membership.TierDiamond:  decimal.NewFromInt(20),
		},
	}
}

// Plan is the outcome of a redemption request against one quote.
type Plan struct {
	Eligible      bool            `json:"eligible"`
	Reason        Reason          `json:"reason,omitempty"`
	CoinsRedeemed int64           `json:"coinsRedeemed"`
	Value         decimal.Decimal `json:"value"`
	MaxCoins      int64           `json:"maxCoins"`
}

// PlanRedemption validates and clamps a requested coin redemption.
//
// baseAmount is the amount after membership and coupon discounts but before
// tax: the cap is a percentage of discounted pre-tax spend, so redeeming
// early cannot inflate it. The function is pure and idempotent; it must be
// re-run whenever cart, coupon, or tier change because the cap shrinks with
// baseAmount. A requested value outside [0, maxCoins] is silently clamped,
// never rejected, which also covers stale requests computed against a
// previously larger base.
func PlanRedemption(rates Rates, tier membership.Tier, baseAmount decimal.Decimal, account Account, requested int64) (Plan, error) {
	if _, err := membership.ParseTier(string(tier)); err != nil {
		return Plan{}, err
	}
	if tier == membership.TierNone {
		return Plan{Reason: ReasonTierIneligible, Value: decimal.Zero}, nil
	}
	if account.Balance < rates.MinimumBalance {
		return Plan{Reason: ReasonBelowMinimumBalance, Value: decimal.Zero}, nil
	}

	maxValue := money.Percent(money.ClampNonNegative(baseAmount), rates.MaxRedemptionPct[tier])

	maxCoins := int64(0)
	if account.ExchangeRate.IsPositive() {
		maxCoins = maxValue.Div(account.ExchangeRate).IntPart()
		// Div rounds at a fixed precision, which can nudge a quotient
		// sitting just under an integer over it. The cap is a hard
		// ceiling, so step back until the coin value fits.
		for maxCoins > 0 && decimal.NewFromInt(maxCoins).Mul(account.ExchangeRate).GreaterThan(maxValue) {
			maxCoins--
		}
	}
	if account.Balance < maxCoins {
		maxCoins = account.Balance
	}

	coins := requested
	if coins < 0 {
		coins = 0
	}
	if coins > maxCoins {
		coins = maxCoins
	}

	value := money.Floor(account.ExchangeRate.Mul(decimal.NewFromInt(coins)))
	return Plan{
		Eligible:      true,
		CoinsRedeemed: coins,
		Value:         value,
		MaxCoins:      maxCoins,
	}, nil
}
