package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// headerServer records the headers of the last request.
func headerServer(t *testing.T) (*httptest.Server, func() http.Header) {
	t.Helper()

	var (
		mu   sync.Mutex
		last http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	return srv, func() http.Header {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func send(t *testing.T, rt http.RoundTripper, req *http.Request) *http.Response {
	t.Helper()

	resp, err := (&http.Client{Transport: rt}).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	srv, last := headerServer(t)
	rt := Chain(srv.Client().Transport, RequestID)

	t.Run("generates an id", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		send(t, rt, req)

		_, err = uuid.Parse(last().Get(RequestIDHeader))
		require.NoError(t, err)
		require.Empty(t, req.Header.Get(RequestIDHeader), "caller's request must not be modified")
	})

	t.Run("uses the context id", func(t *testing.T) {
		req, err := http.NewRequestWithContext(WithRequestID(context.Background(), "req-42"), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		send(t, rt, req)
		require.Equal(t, "req-42", last().Get(RequestIDHeader))
	})

	t.Run("keeps an explicit header", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set(RequestIDHeader, "explicit")

		send(t, rt, req)
		require.Equal(t, "explicit", last().Get(RequestIDHeader))
	})
}

func TestTraceContextInjection(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	srv, last := headerServer(t)
	rt := Chain(srv.Client().Transport, TraceContextInjection)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	send(t, rt, req)
	require.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", last().Get("Traceparent"))

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	send(t, rt, req)
	require.Empty(t, last().Get("Traceparent"))
}

func TestLoggingOmitsHeaders(t *testing.T) {
	t.Parallel()

	srv, _ := headerServer(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rt := Chain(srv.Client().Transport, RequestID, Logging(logger))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/rest/v1/info/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer top-secret")

	resp := send(t, rt, req)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	out := buf.String()
	require.Contains(t, out, "path=/rest/v1/info/")
	require.Contains(t, out, "status=204")
	require.Contains(t, out, "request_id=")
	require.NotContains(t, out, "top-secret")
}
