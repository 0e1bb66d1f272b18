// Package middleware provides outbound http.RoundTripper wrappers that tag,
// trace and log every request the BSN Cloud client sends.
package middleware

import "net/http"

// Transport wraps a RoundTripper.
type Transport func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f(req).
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain applies transports around base. The first transport sees the request
// first.
func Chain(base http.RoundTripper, transports ...Transport) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(transports) - 1; i >= 0; i-- {
		base = transports[i](base)
	}
	return base
}
