package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDContextKey is a context key for storing request IDs.
type RequestIDContextKey struct{}

// WithRequestID makes outgoing requests made with ctx carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey{}, id)
}

// getRequestID reads request ID from X-Request-ID header or context, generates if missing.
func getRequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	if id, ok := r.Context().Value(RequestIDContextKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// RequestID sets X-Request-ID on every outgoing request so calls can be
// matched with BSN Cloud support logs.
func RequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		id := getRequestID(r)
		if r.Header.Get(RequestIDHeader) == id {
			return next.RoundTrip(r)
		}

		r = r.Clone(WithRequestID(r.Context(), id))
		r.Header.Set(RequestIDHeader, id)
		return next.RoundTrip(r)
	})
}
