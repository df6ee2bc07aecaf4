// Package quote composes the pricing policies into one deterministic quote
// computation. The engine is pure: no I/O, no shared state, safe to call
// concurrently. Recomputation is the only update path — there is no way to
// adjust an existing breakdown, which keeps displayed figures and their
// derivation from drifting apart.
package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/loyalty"
	"github.com/noah-isme/toko-pricing/internal/membership"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// ErrMalformedCartLine is returned for non-positive quantities or negative
// prices. This is a caller bug, not a user-facing state.
var ErrMalformedCartLine = errors.New("quote: malformed cart line")

// Line is a read-only snapshot of one cart line.
type Line struct {
	ProductID     string
	UnitListPrice decimal.Decimal
	Quantity      int
}

// Breakdown is the immutable result of one quote computation. Every field is
// derived; the struct is rebuilt from scratch on every input change.
type Breakdown struct {
	GrossSubtotal      decimal.Decimal `json:"grossSubtotal"`
	MembershipDiscount decimal.Decimal `json:"membershipDiscount"`
	CouponDiscount     decimal.Decimal `json:"couponDiscount"`
	BaseAmount         decimal.Decimal `json:"baseAmount"`
	LoyaltyDiscount    decimal.Decimal `json:"loyaltyDiscount"`
	DiscountedBase     decimal.Decimal `json:"discountedBase"`
	TaxAmount          decimal.Decimal `json:"taxAmount"`
	Total              decimal.Decimal `json:"total"`
}

// Quote bundles the breakdown with the redemption plan for display.
type Quote struct {
	Breakdown     Breakdown    `json:"breakdown"`
	Redemption    loyalty.Plan `json:"redemption"`
	CouponApplied bool         `json:"couponApplied"`
}

// Engine wires the four policies together. All rate tables are explicit
// configuration; the engine holds no mutable state.
type Engine struct {
	Pricing membership.RateTable
	Coupons coupon.Registry
	Loyalty loyalty.Rates
	Tax     tax.Policy
}

// ComputeQuote turns a cart snapshot, tier, optional coupon code, and a
// requested coin redemption into an authoritative breakdown.
//
// The step order is load-bearing: membership pricing first, then coupon and
// loyalty are both measured against the same post-membership base and
// subtracted together — they are deliberately not chained, so the two
// deductions never compound multiplicatively. Tax applies to what remains.
func (e Engine) ComputeQuote(ctx context.Context, lines []Line, tier membership.Tier, couponCode string, requestedCoins int64, account loyalty.Account) (Quote, error) {
	gross := decimal.Zero
	discounted := decimal.Zero
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w: line %d quantity %d", ErrMalformedCartLine, i, line.Quantity)
		}
		if line.UnitListPrice.IsNegative() {
			return Quote{}, fmt.Errorf("%w: line %d negative price", ErrMalformedCartLine, i)
		}
		effective, err := e.Pricing.EffectiveUnitPrice(tier, line.UnitListPrice)
		if err != nil {
			return Quote{}, err
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		gross = gross.Add(line.UnitListPrice.Mul(qty))
		discounted = discounted.Add(effective.Mul(qty))
	}
	membershipDiscount := gross.Sub(discounted)

	couponDiscount := decimal.Zero
	couponApplied := false
	if couponCode != "" && e.Coupons != nil {
		rule, found, err := e.Coupons.Resolve(ctx, couponCode)
		if err != nil {
			return Quote{}, fmt.Errorf("resolve coupon: %w", err)
		}
		if found {
			couponDiscount = coupon.Apply(rule, discounted)
			couponApplied = true
		}
	}

	// Coupon and loyalty share this base; see step ordering note above.
	baseAmount := discounted

	plan, err := loyalty.PlanRedemption(e.Loyalty, tier, baseAmount, account, requestedCoins)
	if err != nil {
		return Quote{}, err
	}

	discountedBase := money.ClampNonNegative(baseAmount.Sub(couponDiscount).Sub(plan.Value))
	taxAmount := e.Tax.Compute(discountedBase)

	return Quote{
		Breakdown: Breakdown{
			GrossSubtotal:      gross,
			MembershipDiscount: membershipDiscount,
			CouponDiscount:     couponDiscount,
			BaseAmount:         baseAmount,
			LoyaltyDiscount:    plan.Value,
			DiscountedBase:     discountedBase,
			TaxAmount:          taxAmount,
			Total:              discountedBase.Add(taxAmount),
		},
		Redemption:    plan,
		CouponApplied: couponApplied,
	}, nil
}
