package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const customerIDKey ctxKey = "customer/id"

// CustomerIDHeader carries the customer identity resolved by the upstream
// gateway. This service trusts it; authentication itself lives upstream.
const CustomerIDHeader = "X-Customer-ID"

// WithCustomerID stores the customer identifier on the context.
func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, customerIDKey, id)
}

// CustomerID extracts the customer identifier from the context if present.
func CustomerID(ctx context.Context) (string, bool) {
	v := ctx.Value(customerIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// CustomerMiddleware copies the gateway-resolved customer id from the request
// header onto the context.
func CustomerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(CustomerIDHeader)); id != "" {
			r = r.WithContext(WithCustomerID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCustomer rejects requests without a customer identity.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CustomerID(r.Context()); !ok {
			JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "customer identity required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
