package quote_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/loyalty"
	"github.com/noah-isme/toko-pricing/internal/quote"
)

type quoteEnvelope struct {
	Data struct {
		Breakdown struct {
			GrossSubtotal  decimal.Decimal `json:"grossSubtotal"`
			DiscountedBase decimal.Decimal `json:"discountedBase"`
			TaxAmount      decimal.Decimal `json:"taxAmount"`
			Total          decimal.Decimal `json:"total"`
		} `json:"breakdown"`
		Redemption struct {
			Eligible      bool   `json:"eligible"`
			Reason        string `json:"reason"`
			CoinsRedeemed int64  `json:"coinsRedeemed"`
			MaxCoins      int64  `json:"maxCoins"`
		} `json:"redemption"`
		CouponApplied bool `json:"couponApplied"`
	} `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	selections := &loyalty.SelectionStore{R: client, Prefix: "pricing", TTL: time.Hour}
	h := quote.Handler{
		Engine:       zeroDiscountEngine(),
		Selections:   selections,
		ExchangeRate: decimal.RequireFromString("0.05"),
		Validate:     validator.New(),
		Log:          zerolog.Nop(),
	}
	sel := loyalty.SelectionHandler{Store: selections, Log: zerolog.Nop()}

	r := chi.NewRouter()
	r.Use(common.CustomerMiddleware)
	r.Post("/api/v1/quotes", h.Compute)
	r.Route("/api/v1/customers/me/redemption-selection", func(r chi.Router) {
		r.Use(common.RequireCustomer)
		r.Get("/", sel.Get)
		r.Put("/", sel.Put)
		r.Delete("/", sel.Delete)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, client
}

func postQuote(t *testing.T, srv *httptest.Server, customerID, body string) (*http.Response, quoteEnvelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/quotes", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if customerID != "" {
		req.Header.Set(common.CustomerIDHeader, customerID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env quoteEnvelope
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

const diamondCart = `{
	"lines": [{"productId": "sku-1", "unitListPrice": 2499, "quantity": 1}],
	"tier": "diamond",
	"coinBalance": 50000,
	"requestedCoins": 10000
}`

func TestQuoteEndpointDiamondExample(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := postQuote(t, srv, "cust-1", diamondCart)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(9996), env.Data.Redemption.CoinsRedeemed)
	require.True(t, env.Data.Breakdown.DiscountedBase.Equal(decimal.RequireFromString("1999.2")))
	require.True(t, env.Data.Breakdown.TaxAmount.Equal(decimal.RequireFromString("359.86")))
	require.True(t, env.Data.Breakdown.Total.Equal(decimal.RequireFromString("2359.06")))
}

func TestQuoteEndpointSavesRawSelection(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postQuote(t, srv, "cust-1", diamondCart)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Omitting requestedCoins replays the saved raw request of 10000,
	// clamped again for the new cart.
	smaller := `{
		"lines": [{"productId": "sku-1", "unitListPrice": 1000, "quantity": 1}],
		"tier": "diamond",
		"coinBalance": 50000
	}`
	resp, env := postQuote(t, srv, "cust-1", smaller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(4000), env.Data.Redemption.MaxCoins)
	require.Equal(t, int64(4000), env.Data.Redemption.CoinsRedeemed)
}

func TestQuoteEndpointNoSelectionDefaultsToZero(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{
		"lines": [{"productId": "sku-1", "unitListPrice": 2499, "quantity": 1}],
		"tier": "diamond",
		"coinBalance": 50000
	}`
	resp, env := postQuote(t, srv, "cust-2", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(0), env.Data.Redemption.CoinsRedeemed)
	require.True(t, env.Data.Redemption.Eligible)
}

func TestQuoteEndpointInvalidTier(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"lines": [{"productId": "p", "unitListPrice": 10, "quantity": 1}], "tier": "silver"}`
	resp, _ := postQuote(t, srv, "cust-1", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuoteEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postQuote(t, srv, "cust-1", `{"lines": [], "tier": "gold"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postQuote(t, srv, "cust-1", `{"lines": [{"productId": "p", "unitListPrice": 10, "quantity": 0}], "tier": "gold"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSelectionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/customers/me/redemption-selection"

	do := func(method, body string, withCustomer bool) *http.Response {
		var rdr *strings.Reader
		if body == "" {
			rdr = strings.NewReader("")
		} else {
			rdr = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, base, rdr)
		require.NoError(t, err)
		if withCustomer {
			req.Header.Set(common.CustomerIDHeader, "cust-9")
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	// Identity is required.
	resp := do(http.MethodPut, `{"coins": 1200}`, false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(http.MethodGet, "", true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(http.MethodPut, `{"coins": 1200}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(http.MethodGet, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Data struct {
			Coins int64 `json:"coins"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, int64(1200), env.Data.Coins)

	resp = do(http.MethodDelete, "", true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(http.MethodGet, "", true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectionPutClampsNegative(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/customers/me/redemption-selection"

	req, err := http.NewRequest(http.MethodPut, base, strings.NewReader(`{"coins": -5}`))
	require.NoError(t, err)
	req.Header.Set(common.CustomerIDHeader, "cust-9")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data struct {
			Coins int64 `json:"coins"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, int64(0), env.Data.Coins)
}
