package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/bsncloud/internal/config"
	"github.com/florianilch/bsncloud/internal/credentials"
	"github.com/florianilch/bsncloud/internal/observability/middleware"
	"github.com/florianilch/bsncloud/internal/session"
	"github.com/florianilch/bsncloud/pkg/bsn"
)

// maxParallelPlayers bounds concurrent rDWS calls in fan-out helpers.
const maxParallelPlayers = 4

// Option configures an App.
type Option func(*options)

type options struct {
	transport   http.RoundTripper
	credentials []credentials.Option
	logger      *slog.Logger
}

// WithTransport replaces http.DefaultTransport underneath the request
// middlewares.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithCredentialOptions passes extra options to the credential source.
func WithCredentialOptions(opts ...credentials.Option) Option {
	return func(o *options) {
		o.credentials = append(o.credentials, opts...)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// App wires configuration, credentials, the session and the API client.
type App struct {
	Config      *config.Config
	Credentials *credentials.Source
	Session     *session.Manager
	Client      *bsn.Client

	logger *slog.Logger
}

// New creates an App from cfg. Nothing is sent until the first API call.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: middleware.Chain(o.transport,
			middleware.RequestID,
			middleware.TraceContextInjection,
			middleware.Logging(o.logger),
		),
	}

	credOpts := []credentials.Option{credentials.WithDotEnv(cfg.Credentials.DotEnv)}
	if cfg.Credentials.Keyring {
		credOpts = append(credOpts, credentials.WithKeyring(cfg.Credentials.KeyringService))
	}
	src := credentials.NewSource(append(credOpts, o.credentials...)...)

	manager := session.New(src,
		session.WithHTTPClient(httpClient),
		session.WithTokenURL(cfg.AuthURL),
		session.WithAPIURL(cfg.APIURL),
		session.WithExpiryMargin(cfg.ExpiryMargin),
		session.WithLogger(o.logger),
	)

	client := bsn.NewWithSession(manager,
		bsn.WithAPIURL(cfg.APIURL),
		bsn.WithRDWSURL(cfg.RDWSURL),
		bsn.WithProvisionURL(cfg.ProvisionURL),
		bsn.WithLogger(o.logger),
	)

	return &App{
		Config:      cfg,
		Credentials: src,
		Session:     manager,
		Client:      client,
		logger:      o.logger,
	}, nil
}

// DeviceInfo fetches info for several players concurrently. The first
// failure cancels the remaining calls. The session logs in once for all of
// them.
func (a *App) DeviceInfo(ctx context.Context, serials []string) (map[string]json.RawMessage, error) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPlayers)

	var (
		mu      sync.Mutex
		results = make(map[string]json.RawMessage, len(serials))
	)

	for _, serial := range serials {
		g.Go(func() error {
			info, err := a.Client.GetDeviceInfo(gCtx, serial)
			if err != nil {
				a.logger.WarnContext(gCtx, "device info failed", "serial", serial, "error", err)
				return fmt.Errorf("%s: %w", serial, err)
			}

			mu.Lock()
			results[serial] = info
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
