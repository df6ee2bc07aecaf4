package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/loyalty"
	"github.com/noah-isme/toko-pricing/internal/membership"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// Config carries runtime settings for the pricing service, loaded from the
// environment (optionally seeded from a .env file in development).
type Config struct {
	AppEnv    string
	Port      int
	LogLevel  string
	LogFormat string

	DatabaseURL string
	RedisURL    string

	CORSAllowedOrigins []string
	// RateLimit uses the limiter formatted syntax, e.g. "120-M".
	RateLimit string

	OTLPEndpoint   string
	OTLPInsecure   bool
	TraceSampling  float64
	MetricsBuckets string

	TierDiscountGoldPct     decimal.Decimal
	TierDiscountPlatinumPct decimal.Decimal
	TierDiscountDiamondPct  decimal.Decimal

	RedemptionCapGoldPct     decimal.Decimal
	RedemptionCapPlatinumPct decimal.Decimal
	RedemptionCapDiamondPct  decimal.Decimal
	CoinExchangeRate         decimal.Decimal
	MinimumCoinBalance       int64

	TaxRatePct decimal.Decimal

	// Coupons is a seed list in CODE:KIND:VALUE form, comma separated,
	// e.g. "SAVE10:percent:10,FLAT500:fixed:500".
	Coupons string

	SelectionTTL time.Duration

	LockTTL     time.Duration
	LockRetries int
	LockBackoff time.Duration

	RepairInterval time.Duration
	RepairBatch    int
}

// Load reads configuration from the environment. Missing keys fall back to
// development defaults; only DATABASE_URL and REDIS_URL are required.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Config{
		AppEnv:    stringOr(k, "app.env", "development"),
		Port:      intOr(k, "port", 8080),
		LogLevel:  stringOr(k, "log.level", "info"),
		LogFormat: stringOr(k, "log.format", "json"),

		DatabaseURL: k.String("database.url"),
		RedisURL:    stringOr(k, "redis.url", "redis://localhost:6379/0"),

		CORSAllowedOrigins: splitCSV(stringOr(k, "cors.allowed.origins", "*")),
		RateLimit:          stringOr(k, "rate.limit", "120-M"),

		OTLPEndpoint:   k.String("otlp.endpoint"),
		OTLPInsecure:   k.Bool("otlp.insecure"),
		TraceSampling:  floatOr(k, "trace.sampling", 1.0),
		MetricsBuckets: k.String("metrics.buckets.ms"),

		TierDiscountGoldPct:     decimalOr(k, "tier.discount.gold.pct", "3"),
		TierDiscountPlatinumPct: decimalOr(k, "tier.discount.platinum.pct", "5"),
		TierDiscountDiamondPct:  decimalOr(k, "tier.discount.diamond.pct", "8"),

		RedemptionCapGoldPct:     decimalOr(k, "redemption.cap.gold.pct", "5"),
		RedemptionCapPlatinumPct: decimalOr(k, "redemption.cap.platinum.pct", "10"),
		RedemptionCapDiamondPct:  decimalOr(k, "redemption.cap.diamond.pct", "20"),
		CoinExchangeRate:         decimalOr(k, "coin.exchange.rate", "0.05"),
		MinimumCoinBalance:       int64Or(k, "coin.minimum.balance", 10_000),

		TaxRatePct: decimalOr(k, "tax.rate.pct", "18"),

		Coupons: stringOr(k, "coupons", "SAVE10:percent:10,FLAT500:fixed:500"),

		SelectionTTL: durationOr(k, "selection.ttl", 30*24*time.Hour),

		LockTTL:     durationOr(k, "lock.ttl", 10*time.Second),
		LockRetries: intOr(k, "lock.retries", 3),
		LockBackoff: durationOr(k, "lock.backoff", 50*time.Millisecond),

		RepairInterval: durationOr(k, "repair.interval", 5*time.Minute),
		RepairBatch:    intOr(k, "repair.batch", 100),
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CoinExchangeRate.Sign() <= 0 {
		return Config{}, fmt.Errorf("COIN_EXCHANGE_RATE must be positive, got %s", cfg.CoinExchangeRate)
	}
	return cfg, nil
}

// HTTPAddr returns the listen address for the API server.
func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.Port) }

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool { return strings.EqualFold(c.AppEnv, "production") }

// MembershipRates builds the tier discount table from configuration.
func (c Config) MembershipRates() membership.RateTable {
	return membership.RateTable{DiscountPct: map[membership.Tier]decimal.Decimal{
		membership.TierGold:     c.TierDiscountGoldPct,
		membership.TierPlatinum: c.TierDiscountPlatinumPct,
		membership.TierDiamond:  c.TierDiscountDiamondPct,
	}}
}

// LoyaltyRates builds redemption parameters from configuration.
func (c Config) LoyaltyRates() loyalty.Rates {
	return loyalty.Rates{
		MinimumBalance: c.MinimumCoinBalance,
		MaxRedemptionPct: map[membership.Tier]decimal.Decimal{
			membership.TierGold:     c.RedemptionCapGoldPct,
			membership.TierPlatinum: c.RedemptionCapPlatinumPct,
			membership.TierDiamond:  c.RedemptionCapDiamondPct,
		},
	}
}

// TaxPolicy builds the tax policy from configuration.
func (c Config) TaxPolicy() tax.Policy {
	return tax.Policy{RatePct: c.TaxRatePct}
}

// CouponRules parses the seed coupon list into registry rules.
func (c Config) CouponRules() ([]coupon.Rule, error) {
	raw := strings.TrimSpace(c.Coupons)
	if raw == "" {
		return nil, nil
	}
	var rules []coupon.Rule
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("coupon entry %q: want CODE:KIND:VALUE", entry)
		}
		kind, err := parseCouponKind(parts[1])
		if err != nil {
			return nil, fmt.Errorf("coupon entry %q: %w", entry, err)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("coupon entry %q: %w", entry, err)
		}
		rules = append(rules, coupon.Rule{
			Code:  strings.ToUpper(strings.TrimSpace(parts[0])),
			Kind:  kind,
			Value: value,
		})
	}
	return rules, nil
}

func parseCouponKind(s string) (coupon.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent":
		return coupon.KindPercent, nil
	case "fixed":
		return coupon.KindFixed, nil
	}
	return "", fmt.Errorf("unknown coupon kind %q", s)
}

func stringOr(k *koanf.Koanf, key, def string) string {
	if v := strings.TrimSpace(k.String(key)); v != "" {
		return v
	}
	return def
}

func intOr(k *koanf.Koanf, key string, def int) int {
	if k.Exists(key) {
		return k.Int(key)
	}
	return def
}

func int64Or(k *koanf.Koanf, key string, def int64) int64 {
	if k.Exists(key) {
		return k.Int64(key)
	}
	return def
}

func floatOr(k *koanf.Koanf, key string, def float64) float64 {
	if k.Exists(key) {
		return k.Float64(key)
	}
	return def
}

func durationOr(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	if !k.Exists(key) {
		return def
	}
	d, err := time.ParseDuration(k.String(key))
	if err != nil {
		return def
	}
	return d
}

func decimalOr(k *koanf.Koanf, key, def string) decimal.Decimal {
	raw := stringOr(k, key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.RequireFromString(def)
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
