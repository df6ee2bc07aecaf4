package loyalty_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/loyalty"
	"github.com/noah-isme/toko-pricing/internal/membership"
)

func rates() loyalty.Rates {
	return loyalty.DefaultRates()
}

func account(balance int64) loyalty.Account {
	return loyalty.Account{Balance: balance, ExchangeRate: decimal.RequireFromString("0.05")}
}

func TestPlanRedemptionDiamondCap(t *testing.T) {
	t.Parallel()

	// base 2499, diamond cap 20% -> max value 499.80 -> 9996 coins at 0.05.
	plan, err := loyalty.PlanRedemption(rates(), membership.TierDiamond, decimal.NewFromInt(2499), account(50_000), 10_000)
	require.NoError(t, err)
	require.True(t, plan.Eligible)
	require.Equal(t, int64(9996), plan.MaxCoins)
	require.Equal(t, int64(9996), plan.CoinsRedeemed, "request above cap must clamp, not fail")
	require.True(t, plan.Value.Equal(decimal.RequireFromString("499.8")), "got %s", plan.Value)
}

func TestPlanRedemptionLimitedByBalance(t *testing.T) {
	t.Parallel()

	plan, err := loyalty.PlanRedemption(rates(), membership.TierDiamond, decimal.NewFromInt(10_000), account(12_000), 50_000)
	require.NoError(t, err)
	require.True(t, plan.Eligible)
	// value cap would allow 40000 coins; balance caps at 12000.
	require.Equal(t, int64(12_000), plan.MaxCoins)
	require.Equal(t, int64(12_000), plan.CoinsRedeemed)
}

func TestPlanRedemptionTierNone(t *testing.T) {
	t.Parallel()

	plan, err := loyalty.PlanRedemption(rates(), membership.TierNone, decimal.NewFromInt(2499), account(50_000), 100)
	require.NoError(t, err)
	require.False(t, plan.Eligible)
	require.Equal(t, loyalty.ReasonTierIneligible, plan.Reason)
	require.Zero(t, plan.CoinsRedeemed)
	require.True(t, plan.Value.IsZero())
}

func TestPlanRedemptionBelowMinimumBalance(t *testing.T) {
	t.Parallel()

	plan, err := loyalty.PlanRedemption(rates(), membership.TierDiamond, decimal.NewFromInt(2499), account(5_000), 100)
	require.NoError(t, err)
	require.False(t, plan.Eligible)
	require.Equal(t, loyalty.ReasonBelowMinimumBalance, plan.Reason)
}

func TestPlanRedemptionMinimumBalanceIsInclusive(t *testing.T) {
	t.Parallel()

	plan, err := loyalty.PlanRedemption(rates(), membership.TierGold, decimal.NewFromInt(1000), account(10_000), 100)
	require.NoError(t, err)
	require.True(t, plan.Eligible, "balance exactly at the minimum is eligible")
}

func TestPlanRedemptionNegativeRequestClampsToZero(t *testing.T) {
	t.Parallel()

	plan, err := loyalty.PlanRedemption(rates(), membership.TierGold, decimal.NewFromInt(1000), account(20_000), -5)
	require.NoError(t, err)
	require.True(t, plan.Eligible)
	require.Zero(t, plan.CoinsRedeemed)
	require.True(t, plan.Value.IsZero())
}

func TestPlanRedemptionUnknownTier(t *testing.T) {
	t.Parallel()

	_, err := loyalty.PlanRedemption(rates(), membership.Tier("silver"), decimal.NewFromInt(1000), account(20_000), 1)
	require.ErrorIs(t, err, membership.ErrInvalidTier)
}

func TestPlanRedemptionValueFloors(t *testing.T) {
	t.Parallel()

	// 3 coins at 0.0333 -> 0.0999, floored to 0.09 so the value never
	// exceeds what the coin count represents.
	acct := loyalty.Account{Balance: 20_000, ExchangeRate: decimal.RequireFromString("0.0333")}
	plan, err := loyalty.PlanRedemption(rates(), membership.TierGold, decimal.NewFromInt(1000), acct, 3)
	require.NoError(t, err)
	require.True(t, plan.Value.Equal(decimal.RequireFromString("0.09")), "got %s", plan.Value)
}

func TestPlanRedemptionMaxCoinsIsExactFloor(t *testing.T) {
	t.Parallel()

	// diamond 20% of 4.5 -> cap 0.9 exactly. At this rate three coins are
	// worth 0.900000000000000009, just over the cap, but the division
	// 0.9 / rate rounds to 3 at fixed precision. MaxCoins must stay at 2.
	acct := loyalty.Account{Balance: 1_000_000, ExchangeRate: decimal.RequireFromString("0.300000000000000003")}
	plan, err := loyalty.PlanRedemption(rates(), membership.TierDiamond, decimal.RequireFromString("4.5"), acct, 100)
	require.NoError(t, err)
	require.Equal(t, int64(2), plan.MaxCoins)
	require.Equal(t, int64(2), plan.CoinsRedeemed)

	cap := decimal.RequireFromString("0.9")
	value := decimal.NewFromInt(plan.MaxCoins).Mul(acct.ExchangeRate)
	require.True(t, value.LessThanOrEqual(cap), "coin value %s exceeds cap %s", value, cap)
}

func TestMaxCoinsMonotonicInBase(t *testing.T) {
	t.Parallel()

	prev := int64(-1)
	for base := int64(0); base <= 5_000; base += 250 {
		plan, err := loyalty.PlanRedemption(rates(), membership.TierPlatinum, decimal.NewFromInt(base), account(1_000_000), 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, plan.MaxCoins, prev, "cap must not shrink as base grows (base=%d)", base)
		prev = plan.MaxCoins
	}
}

func TestPlanRedemptionNegativeBase(t *testing.T) {
	t.Parallel()

	plan, err := loyalty.PlanRedemption(rates(), membership.TierGold, decimal.NewFromInt(-100), account(20_000), 100)
	require.NoError(t, err)
	require.True(t, plan.Eligible)
	require.Zero(t, plan.MaxCoins)
	require.Zero(t, plan.CoinsRedeemed)
}
