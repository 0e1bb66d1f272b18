package bsn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/bsncloud/internal/credentials"
	"github.com/florianilch/bsncloud/internal/session"
)

// Service base URLs.
const (
	DefaultAPIURL       = session.DefaultAPIURL
	DefaultRDWSURL      = "https://ws.bsn.cloud/rest/v1"
	DefaultProvisionURL = "https://provision.bsn.cloud"
)

// Session sends authenticated requests. *session.Manager implements it.
type Session interface {
	Do(req *http.Request) (*http.Response, error)
	Network(ctx context.Context) (string, error)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	creds        session.CredentialResolver
	httpClient   *http.Client
	tokenURL     string
	apiURL       string
	rdwsURL      string
	provisionURL string
	margin       *time.Duration
	logger       *slog.Logger
}

// WithCredentialSource sets where credentials come from. By default they
// are read from the environment and ".env".
func WithCredentialSource(creds session.CredentialResolver) Option {
	return func(o *options) {
		o.creds = creds
	}
}

// WithHTTPClient sets the HTTP client for all requests, login included.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(o *options) {
		o.tokenURL = tokenURL
	}
}

// WithAPIURL overrides the BSN Cloud REST base URL.
func WithAPIURL(apiURL string) Option {
	return func(o *options) {
		o.apiURL = apiURL
	}
}

// WithRDWSURL overrides the remote DWS base URL.
func WithRDWSURL(rdwsURL string) Option {
	return func(o *options) {
		o.rdwsURL = rdwsURL
	}
}

// WithProvisionURL overrides the provisioning service base URL.
func WithProvisionURL(provisionURL string) Option {
	return func(o *options) {
		o.provisionURL = provisionURL
	}
}

// WithExpiryMargin sets how long before its reported expiry a token is
// replaced.
func WithExpiryMargin(margin time.Duration) Option {
	return func(o *options) {
		o.margin = &margin
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Client calls the BSN Cloud APIs through one shared session.
type Client struct {
	session      Session
	apiURL       string
	rdwsURL      string
	provisionURL string
	validate     *validator.Validate
	logger       *slog.Logger
}

// New creates a Client with its own session.Manager. Nothing is sent until
// the first call.
func New(opts ...Option) *Client {
	o := collect(opts)

	creds := o.creds
	if creds == nil {
		creds = credentials.NewSource()
	}

	sessOpts := []session.Option{
		session.WithAPIURL(o.apiURL),
		session.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		sessOpts = append(sessOpts, session.WithHTTPClient(o.httpClient))
	}
	if o.tokenURL != "" {
		sessOpts = append(sessOpts, session.WithTokenURL(o.tokenURL))
	}
	if o.margin != nil {
		sessOpts = append(sessOpts, session.WithExpiryMargin(*o.margin))
	}

	return newClient(session.New(creds, sessOpts...), o)
}

// NewWithSession creates a Client on top of an existing session. Options
// that configure the session itself are ignored.
func NewWithSession(sess Session, opts ...Option) *Client {
	return newClient(sess, collect(opts))
}

func collect(opts []Option) *options {
	o := &options{
		apiURL:       DefaultAPIURL,
		rdwsURL:      DefaultRDWSURL,
		provisionURL: DefaultProvisionURL,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newClient(sess Session, o *options) *Client {
	return &Client{
		session:      sess,
		apiURL:       strings.TrimSuffix(o.apiURL, "/"),
		rdwsURL:      strings.TrimSuffix(o.rdwsURL, "/"),
		provisionURL: strings.TrimSuffix(o.provisionURL, "/"),
		validate:     newValidator(),
		logger:       o.logger,
	}
}

// Session returns the session the Client sends requests through.
func (c *Client) Session() Session {
	return c.session
}

// Login forces a fresh login and network selection.
func (c *Client) Login(ctx context.Context) error {
	l, ok := c.session.(interface {
		Login(ctx context.Context) error
	})
	if !ok {
		return errors.New("session does not support explicit login")
	}
	return l.Login(ctx)
}
