package middleware

import (
	"context"
	"net/http"
)

// ClientIDKey is the context key for the authenticated client id
const ClientIDKey contextKey = "client_id"

// ClientIDHeader carries the validated client identity. It is set by the
// upstream authentication gateway; this service trusts it as-is.
const ClientIDHeader = "X-Client-ID"

// ClientID middleware extracts the authenticated client id from the gateway
// header and places it on the request context
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := r.Header.Get(ClientIDHeader)

		ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientID extracts the client id from context
func GetClientID(ctx context.Context) string {
	if id, ok := ctx.Value(ClientIDKey).(string); ok {
		return id
	}
	return ""
}
