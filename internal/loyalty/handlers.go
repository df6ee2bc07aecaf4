package loyalty

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// SelectionHandler manages the customer's persisted coin-redemption request.
type SelectionHandler struct {
	Store *SelectionStore
	Log   zerolog.Logger
}

type selectionRequest struct {
	Coins int64 `json:"coins"`
}

type selectionResponse struct {
	Coins int64 `json:"coins"`
}

// Put stores the requested coin count. Negative values are stored as zero.
func (h SelectionHandler) Put(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	coins := req.Coins
	if coins < 0 {
		coins = 0
	}
	if err := h.Store.Save(r.Context(), customerID, coins); err != nil {
		h.Log.Error().Err(err).Str("customer_id", customerID).Msg("save redemption selection failed")
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": selectionResponse{Coins: coins}})
}

// Get returns the stored selection, or 404 when none exists.
func (h SelectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	coins, ok, err := h.Store.Load(r.Context(), customerID)
	if err != nil {
		h.Log.Error().Err(err).Str("customer_id", customerID).Msg("load redemption selection failed")
		common.WriteError(w, err)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no redemption selection stored", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": selectionResponse{Coins: coins}})
}

// Delete clears the stored selection.
func (h SelectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	if err := h.Store.Clear(r.Context(), customerID); err != nil {
		h.Log.Error().Err(err).Str("customer_id", customerID).Msg("clear redemption selection failed")
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
