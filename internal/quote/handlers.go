package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/loyalty"
	"github.com/noah-isme/toko-pricing/internal/membership"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Handler exposes quote computation over HTTP.
type Handler struct {
	Engine       Engine
	Selections   *loyalty.SelectionStore
	ExchangeRate decimal.Decimal
	Validate     *validator.Validate
	Metrics      *obs.DomainMetrics
	Log          zerolog.Logger
}

type lineRequest struct {
	ProductID     string          `json:"productId" validate:"required"`
	UnitListPrice decimal.Decimal `json:"unitListPrice"`
	Quantity      int64           `json:"quantity" validate:"gt=0"`
}

type quoteRequest struct {
	Lines      []lineRequest `json:"lines" validate:"required,min=1,dive"`
	Tier       string        `json:"tier"`
	CouponCode string        `json:"couponCode"`
	// RequestedCoins omitted means "use the customer's saved selection".
	RequestedCoins *int64 `json:"requestedCoins"`
	CoinBalance    int64  `json:"coinBalance" validate:"gte=0"`
}

// Compute handles POST /quotes.
func (h Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
			return
		}
	}

	tier, err := membership.ParseTier(req.Tier)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_TIER", "unknown membership tier: "+req.Tier, nil)
		return
	}

	customerID, hasCustomer := common.CustomerID(r.Context())

	requested := int64(0)
	fromSelection := false
	switch {
	case req.RequestedCoins != nil:
		requested = *req.RequestedCoins
	case hasCustomer && h.Selections != nil:
		saved, ok, err := h.Selections.Load(r.Context(), customerID)
		if err != nil {
			h.Log.Warn().Err(err).Str("customer_id", customerID).Msg("load redemption selection failed")
		} else if ok {
			requested = saved
			fromSelection = true
		}
	}

	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, Line{ProductID: l.ProductID, UnitListPrice: l.UnitListPrice, Quantity: int(l.Quantity)})
	}
	account := loyalty.Account{Balance: req.CoinBalance, ExchangeRate: h.ExchangeRate}

	q, err := h.Engine.ComputeQuote(r.Context(), lines, tier, strings.TrimSpace(req.CouponCode), requested, account)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Persist the raw request, never the computed plan, so future quotes
	// re-clamp against their own cart.
	if req.RequestedCoins != nil && hasCustomer && h.Selections != nil {
		if err := h.Selections.Save(r.Context(), customerID, *req.RequestedCoins); err != nil {
			h.Log.Warn().Err(err).Str("customer_id", customerID).Msg("save redemption selection failed")
		}
	}

	if fromSelection {
		h.Log.Debug().Str("customer_id", customerID).Int64("coins", requested).Msg("quote used saved redemption selection")
	}

	if h.Metrics != nil {
		outcome := "none"
		if q.Redemption.Eligible && q.Redemption.CoinsRedeemed > 0 {
			outcome = "applied"
		} else if !q.Redemption.Eligible && q.Redemption.Reason != "" {
			outcome = strings.ToLower(string(q.Redemption.Reason))
		}
		h.Metrics.QuotesComputed.WithLabelValues(string(tier), outcome).Inc()
		if q.Redemption.Eligible && requested > q.Redemption.CoinsRedeemed {
			h.Metrics.RedemptionsClamped.Inc()
		}
	}

	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMalformedCartLine):
		common.JSONError(w, http.StatusBadRequest, "MALFORMED_CART", err.Error(), nil)
	case errors.Is(err, membership.ErrInvalidTier):
		common.JSONError(w, http.StatusBadRequest, "INVALID_TIER", err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("quote computation failed")
		common.WriteError(w, err)
	}
}
