package address

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/lock"
)

// Handler exposes address book CRUD over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Log      zerolog.Logger
}

// Routes mounts the address endpoints on the router. Callers must apply
// customer identification middleware first.
func (h Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{addressID}", h.get)
	r.Put("/{addressID}", h.update)
	r.Delete("/{addressID}", h.remove)
}

func (h Handler) list(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	page, perPage := common.ParsePagination(r, 20)

	addrs, err := h.Svc.List(r.Context(), customerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	total := len(addrs)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := min(start+perPage, total)
	pageItems := addrs[start:end]
	if pageItems == nil {
		pageItems = []Address{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": pageItems,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

func (h Handler) create(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	addr, err := h.Svc.Create(r.Context(), customerID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": addr})
}

func (h Handler) get(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	id, ok := h.addressID(w, r)
	if !ok {
		return
	}
	addr, err := h.Svc.Get(r.Context(), customerID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": addr})
}

func (h Handler) update(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	id, ok := h.addressID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	addr, err := h.Svc.Update(r.Context(), customerID, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": addr})
}

func (h Handler) remove(w http.ResponseWriter, r *http.Request) {
	customerID, _ := common.CustomerID(r.Context())
	id, ok := h.addressID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), customerID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return Input{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
			return Input{}, false
		}
	}
	return in, true
}

func (h Handler) addressID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "addressID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid address id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "address not found", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "address book is busy, retry shortly", nil)
	default:
		h.Log.Error().Err(err).Str("path", r.URL.Path).Msg("address handler error")
		common.WriteError(w, err)
	}
}
