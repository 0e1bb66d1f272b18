package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging logs each request with method, host, path, status and duration.
// Headers and bodies are never logged.
func Logging(logger *slog.Logger) Transport {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("host", r.URL.Host),
				slog.String("path", r.URL.Path),
				slog.Duration("duration", time.Since(start)),
			}
			if id := r.Header.Get(RequestIDHeader); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
				logger.LogAttrs(r.Context(), slog.LevelWarn, "bsn cloud request failed", attrs...)
				return nil, err
			}

			attrs = append(attrs, slog.Int("status", resp.StatusCode))
			logger.LogAttrs(r.Context(), slog.LevelDebug, "bsn cloud request", attrs...)
			return resp, nil
		})
	}
}
