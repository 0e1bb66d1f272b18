package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/bsncloud/internal/credentials"
)

const (
	// DefaultTokenURL is the BSN Cloud OAuth2 token endpoint.
	DefaultTokenURL = "https://auth.bsn.cloud/realms/bsncloud/protocol/openid-connect/token"

	// DefaultAPIURL is the base of the BSN Cloud REST API.
	DefaultAPIURL = "https://api.bsn.cloud/2022/06/REST"

	// DefaultExpiryMargin is subtracted from each token lifetime so requests
	// issued just before expiry still carry a live token.
	DefaultExpiryMargin = 15 * time.Second

	// DefaultHTTPTimeout bounds login and network selection requests.
	DefaultHTTPTimeout = 30 * time.Second

	networkPath = "/Self/Session/Network"

	// maxErrorBody caps how much of a failed response ends up in Error.Details.
	maxErrorBody = 64 << 10
)

// CredentialResolver supplies the client credentials on first login.
type CredentialResolver interface {
	Resolve() (credentials.Credentials, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for login, network selection and
// authenticated requests.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(m *Manager) {
		m.tokenURL = tokenURL
	}
}

// WithAPIURL overrides the REST base used for network selection.
func WithAPIURL(apiURL string) Option {
	return func(m *Manager) {
		m.apiURL = strings.TrimSuffix(apiURL, "/")
	}
}

// WithExpiryMargin sets how long before the reported expiry a token is
// considered stale. Zero compares against the reported expiry exactly.
func WithExpiryMargin(margin time.Duration) Option {
	return func(m *Manager) {
		m.margin = margin
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager owns the session state for one BSN Cloud client and network.
// It logs in lazily, tracks token expiry and selects the network after every
// login. A Manager is safe for concurrent use; concurrent callers observing a
// stale token share a single login.
type Manager struct {
	creds      CredentialResolver
	httpClient *http.Client
	tokenURL   string
	apiURL     string
	margin     time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.RWMutex
	state    State
	resolved *credentials.Credentials

	logins singleflight.Group
}

// New creates a Manager in the uninitialized state. No I/O happens until the
// first EnsureAuthenticated, Login or Do.
func New(creds CredentialResolver, opts ...Option) *Manager {
	m := &Manager{
		creds:      creds,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		tokenURL:   DefaultTokenURL,
		apiURL:     DefaultAPIURL,
		margin:     DefaultExpiryMargin,
		now:        time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// State returns a snapshot of the current token generation.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// EnsureAuthenticated returns immediately while the token is valid and the
// network selected. Otherwise it resolves credentials, logs in and selects
// the network. Failures leave the previous state in place and are returned as
// *Error; nothing is retried.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	if m.ready() {
		return nil
	}
	return m.login(ctx, false)
}

// Login forces a fresh login and network selection regardless of the current
// token.
func (m *Manager) Login(ctx context.Context) error {
	return m.login(ctx, true)
}

// Do sends req with the current bearer token, authenticating first if needed.
// Authentication failures are returned unchanged and the request is not sent.
// The response is returned as received; the caller closes its body.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	if err := m.EnsureAuthenticated(req.Context()); err != nil {
		return nil, err
	}

	st := m.State()

	req = req.Clone(req.Context())
	st.token().SetAuthHeader(req)

	return m.httpClient.Do(req)
}

// Network returns the network name from the resolved credentials. Resolution
// reads only local sources, so ctx is not consulted; it is accepted so
// Manager satisfies the session interface of pkg/bsn.
func (m *Manager) Network(_ context.Context) (string, error) {
	creds, err := m.credentials()
	if err != nil {
		return "", err
	}
	return creds.Network, nil
}

func (m *Manager) ready() bool {
	st := m.State()
	return st.Valid(m.now()) && st.Selected()
}

// login runs the login sequence at most once at a time. Callers arriving
// while a login is in flight wait for its result. The flight is detached from
// the caller that started it, so one caller giving up does not fail the
// others; each caller stops waiting when its own ctx is done.
func (m *Manager) login(ctx context.Context, force bool) error {
	ch := m.logins.DoChan("login", func() (any, error) {
		// another caller may have finished a login while this one queued
		if !force && m.ready() {
			return nil, nil
		}

		flightCtx := context.WithoutCancel(ctx)
		if timeout := m.httpClient.Timeout; timeout > 0 {
			// token exchange plus network selection
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, 2*timeout)
			defer cancel()
		}
		return nil, m.authenticate(flightCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return &Error{Code: CodeAuthentication, Details: ctx.Err().Error(), Err: ctx.Err()}
	}
}

// authenticate performs the token exchange and network selection and
// publishes the new state only when both succeed.
func (m *Manager) authenticate(ctx context.Context) error {
	creds, err := m.credentials()
	if err != nil {
		return err
	}

	logger := m.logger.With("network", creds.Network)
	logger.DebugContext(ctx, "logging in to bsn cloud", "client_id", creds.ClientID)

	issuedAt := m.now()
	tok, err := m.exchange(ctx, creds)
	if err != nil {
		logger.WarnContext(ctx, "bsn cloud login failed", "error", err)
		return err
	}

	lifetime := tokenLifetime(tok)
	if lifetime <= 0 {
		err := &Error{Code: CodeAuthentication, Details: "token response carries no lifetime"}
		logger.WarnContext(ctx, "bsn cloud login failed", "error", err)
		return err
	}
	if lifetime > m.margin {
		lifetime -= m.margin
	}

	next := State{
		accessToken: tok.AccessToken,
		tokenType:   tok.TokenType,
		expiresAt:   issuedAt.Add(lifetime),
	}

	if err := m.selectNetwork(ctx, next, creds.Network); err != nil {
		logger.WarnContext(ctx, "bsn cloud network selection failed", "error", err)
		return err
	}
	next.networkSelected = true

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	logger.InfoContext(ctx, "bsn cloud session established", "expires_at", next.expiresAt)
	return nil
}

// credentials resolves the credentials once per Manager.
func (m *Manager) credentials() (credentials.Credentials, error) {
	m.mu.RLock()
	if m.resolved != nil {
		creds := *m.resolved
		m.mu.RUnlock()
		return creds, nil
	}
	m.mu.RUnlock()

	creds, err := m.creds.Resolve()
	if err != nil {
		return credentials.Credentials{}, &Error{Code: CodeConfiguration, Details: err.Error(), Err: err}
	}

	m.mu.Lock()
	m.resolved = &creds
	m.mu.Unlock()

	return creds, nil
}

// exchange runs the OAuth2 client credentials grant with the client id and
// secret in the Authorization header.
func (m *Manager) exchange(ctx context.Context, creds credentials.Credentials) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.Secret,
		TokenURL:     m.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, m.httpClient))
	if err == nil {
		return tok, nil
	}

	loginErr := &Error{Code: CodeAuthentication, Details: err.Error(), Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			loginErr.StatusCode = retrieveErr.Response.StatusCode
		}
		if retrieveErr.ErrorCode != "" {
			loginErr.Details = strings.TrimSpace(retrieveErr.ErrorCode + ": " + retrieveErr.ErrorDescription)
		} else if len(retrieveErr.Body) > 0 {
			loginErr.Details = string(retrieveErr.Body)
		}
	}

	return nil, loginErr
}

// selectNetwork activates network for the token in st.
func (m *Manager) selectNetwork(ctx context.Context, st State, network string) error {
	body, err := json.Marshal(map[string]string{"name": network})
	if err != nil {
		return &Error{Code: CodeNetworkSelection, Details: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, m.apiURL+networkPath, bytes.NewReader(body))
	if err != nil {
		return &Error{Code: CodeNetworkSelection, Details: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	st.token().SetAuthHeader(req)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &Error{Code: CodeNetworkSelection, Details: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	details, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		Code:       CodeNetworkSelection,
		StatusCode: resp.StatusCode,
		Details:    fmt.Sprintf("selecting network %q: %s", network, strings.TrimSpace(string(details))),
	}
}

// tokenLifetime reads the lifetime the server reported for tok. The wire
// value of expires_in is preferred over tok.Expiry, which x/oauth2 stamps
// against the wall clock when it parses the response.
func tokenLifetime(tok *oauth2.Token) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v * float64(time.Second))
	case int64:
		// form-encoded responses
		return time.Duration(v) * time.Second
	case json.Number:
		if secs, err := v.Float64(); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	case string:
		// some servers send the number quoted
		if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}

	if !tok.Expiry.IsZero() {
		return tok.Expiry.Sub(time.Now())
	}
	return 0
}
