package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies this module's logs in the OTel pipeline.
const instrumentationName = "github.com/florianilch/bsncloud"

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel"
)

// OTel log exporters.
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config selects how logs are written.
type Config struct {
	Level  slog.Level
	Format string

	// Exporter is only used with FormatOTel. The OTLP exporters read their
	// endpoint from the standard OTEL_EXPORTER_OTLP_* variables.
	Exporter string

	// Writer receives text, json and stdout exporter output. Defaults to
	// os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes pending log records.
type ShutdownFunc func(ctx context.Context) error

// Instrument installs the default slog logger and the W3C trace context
// propagator. The returned function must be called before exit.
func Instrument(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger, shutdown, err := NewLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	return shutdown, nil
}

// NewLogger builds a logger for cfg without installing it.
func NewLogger(ctx context.Context, cfg Config) (*slog.Logger, ShutdownFunc, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	noop := func(context.Context) error { return nil }

	switch strings.ToLower(cfg.Format) {
	case FormatOTel:
		provider, err := newLoggerProvider(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		global.SetLoggerProvider(provider)

		handler := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
		return slog.New(handler), provider.Shutdown, nil
	default:
		handler, err := newStdoutHandler(cfg.Writer, cfg.Level, cfg.Format)
		if err != nil {
			return nil, nil, err
		}
		return slog.New(newCorrelationHandler(handler)), noop, nil
	}
}

// newStdoutHandler creates a handler for human-readable logs.
func newStdoutHandler(w io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text, otel)", logFormat)
	}

	return handler, nil
}

// newLoggerProvider wires exporter -> batch processor -> severity filter.
func newLoggerProvider(ctx context.Context, cfg Config) (*sdklog.LoggerProvider, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)
	switch strings.ToLower(cfg.Exporter) {
	case ExporterStdout, "":
		exporter, err = stdoutlog.New(stdoutlog.WithWriter(cfg.Writer))
	case ExporterOTLPHTTP:
		exporter, err = otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		exporter, err = otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported otel exporter %q (expected: stdout, otlp-http, otlp-grpc)", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", cfg.Exporter, err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(cfg.Level))

	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// severity maps a slog level onto the OTel severity floor.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q (expected: debug, info, warn, error)", s)
	}
	return level, nil
}
