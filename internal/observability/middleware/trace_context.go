package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceContextInjection writes the W3C trace context of the request context
// into Traceparent/Tracestate headers. Requests without a valid span context
// pass through unchanged.
func TraceContextInjection(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if !trace.SpanContextFromContext(r.Context()).IsValid() {
			return next.RoundTrip(r)
		}

		r = r.Clone(r.Context())
		otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(r.Header))
		return next.RoundTrip(r)
	})
}
