package config_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/membership"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/pricing")
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.False(t, cfg.IsProduction())
	require.Equal(t, int64(10_000), cfg.MinimumCoinBalance)
	require.True(t, cfg.TaxPolicy().RatePct.Equal(decimal.NewFromInt(18)))

	rates := cfg.MembershipRates()
	require.True(t, rates.DiscountPct[membership.TierDiamond].Equal(decimal.NewFromInt(8)))

	loyalty := cfg.LoyaltyRates()
	require.True(t, loyalty.MaxRedemptionPct[membership.TierDiamond].Equal(decimal.NewFromInt(20)))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/pricing")
	t.Setenv("PORT", "9090")
	t.Setenv("TAX_RATE_PCT", "11")
	t.Setenv("COIN_MINIMUM_BALANCE", "5000")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.True(t, cfg.TaxRatePct.Equal(decimal.NewFromInt(11)))
	require.Equal(t, int64(5000), cfg.MinimumCoinBalance)
}

func TestCouponRules(t *testing.T) {
	cfg := config.Config{Coupons: "save10:percent:10, FLAT500:fixed:500"}
	rules, err := cfg.CouponRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "SAVE10", rules[0].Code)
	require.Equal(t, coupon.KindPercent, rules[0].Kind)
	require.Equal(t, "FLAT500", rules[1].Code)
	require.True(t, rules[1].Value.Equal(decimal.NewFromInt(500)))
}

func TestCouponRulesMalformed(t *testing.T) {
	cfg := config.Config{Coupons: "SAVE10:percent"}
	_, err := cfg.CouponRules()
	require.Error(t, err)

	cfg = config.Config{Coupons: "SAVE10:bogus:10"}
	_, err = cfg.CouponRules()
	require.Error(t, err)
}
