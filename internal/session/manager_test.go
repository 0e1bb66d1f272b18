package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/florianilch/bsncloud/internal/credentials"
)

// fakeBSN serves the token, network selection and one API endpoint and
// records every call in order.
type fakeBSN struct {
	mu            sync.Mutex
	calls         []string
	issued        int
	tokenStatus   int
	networkStatus int
	expiresIn     int
	expiresInRaw  any
	tokenDelay    time.Duration
	lastAuth      string
	lastNetwork   string

	server *httptest.Server
}

func newFakeBSN(t *testing.T) *fakeBSN {
	t.Helper()

	f := &fakeBSN{
		tokenStatus:   http.StatusOK,
		networkStatus: http.StatusNoContent,
		expiresIn:     3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("PUT /REST/Self/Session/Network", f.handleNetwork)
	mux.HandleFunc("GET /REST/Devices/", f.handleDevices)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBSN) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBSN) handleToken(w http.ResponseWriter, r *http.Request) {
	f.record("token")

	f.mu.Lock()
	delay, status, expiresIn, expiresInRaw := f.tokenDelay, f.tokenStatus, f.expiresIn, f.expiresInRaw
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	id, secret, ok := r.BasicAuth()
	if !ok || id != "client" || secret != "secret" || r.FormValue("grant_type") != "client_credentials" {
		status = http.StatusUnauthorized
	}

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "unauthorized_client",
			"error_description": "Invalid client credentials",
		})
		return
	}

	f.mu.Lock()
	f.issued++
	body := map[string]any{
		"access_token": fmt.Sprintf("tok-%d", f.issued),
		"token_type":   "Bearer",
	}
	f.mu.Unlock()
	switch {
	case expiresInRaw != nil:
		body["expires_in"] = expiresInRaw
	case expiresIn > 0:
		body["expires_in"] = expiresIn
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeBSN) handleNetwork(w http.ResponseWriter, r *http.Request) {
	f.record("network")

	var body struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.lastNetwork = body.Name
	status := f.networkStatus
	f.mu.Unlock()

	if status != http.StatusNoContent && status != http.StatusOK {
		http.Error(w, "network not found", status)
		return
	}
	w.WriteHeader(status)
}

func (f *fakeBSN) handleDevices(w http.ResponseWriter, r *http.Request) {
	f.record("devices")

	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"items":[]}`)
}

func (f *fakeBSN) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBSN) count(call string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBSN) set(fn func(f *fakeBSN)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticResolver struct {
	creds credentials.Credentials
	err   error
}

func (s staticResolver) Resolve() (credentials.Credentials, error) {
	return s.creds, s.err
}

var testCreds = credentials.Credentials{ClientID: "client", Secret: "secret", Network: "Lobby"}

func newTestManager(t *testing.T, f *fakeBSN, clock *fakeClock, opts ...Option) *Manager {
	t.Helper()

	base := []Option{
		WithHTTPClient(f.server.Client()),
		WithTokenURL(f.server.URL + "/token"),
		WithAPIURL(f.server.URL + "/REST/"),
		WithExpiryMargin(0),
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(staticResolver{creds: testCreds}, append(base, opts...)...)
}

func newDevicesRequest(t *testing.T, f *fakeBSN) *http.Request {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.server.URL+"/REST/Devices/", nil)
	require.NoError(t, err)
	return req
}

func doDevices(t *testing.T, m *Manager, f *fakeBSN) {
	t.Helper()

	resp, err := m.Do(newDevicesRequest(t, f))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEnsureAuthenticatedFastPath(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, f, clock)

	require.True(t, m.State().Empty())

	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.Equal(t, []string{"token", "network"}, f.callLog())

	for range 10 {
		clock.Advance(time.Minute)
		require.NoError(t, m.EnsureAuthenticated(context.Background()))
	}
	require.Equal(t, []string{"token", "network"}, f.callLog(), "valid session must not trigger any I/O")
	require.Equal(t, "Lobby", f.lastNetwork)
}

func TestStateValidityBoundary(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	m := newTestManager(t, f, clock)

	require.NoError(t, m.Login(context.Background()))

	st := m.State()
	require.Equal(t, start.Add(time.Hour), st.ExpiresAt())
	require.True(t, st.Selected())
	require.True(t, st.Valid(start))
	require.True(t, st.Valid(start.Add(time.Hour-time.Nanosecond)))
	require.False(t, st.Valid(start.Add(time.Hour)))
	require.False(t, st.Valid(start.Add(2*time.Hour)))

	require.False(t, State{}.Valid(start), "empty state is never valid")
}

func TestExpiryMargin(t *testing.T) {
	t.Parallel()

	t.Run("margin shortens lifetime", func(t *testing.T) {
		f := newFakeBSN(t)
		start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		m := newTestManager(t, f, &fakeClock{now: start}, WithExpiryMargin(15*time.Second))

		require.NoError(t, m.Login(context.Background()))
		require.Equal(t, start.Add(time.Hour-15*time.Second), m.State().ExpiresAt())
	})

	t.Run("margin larger than lifetime is ignored", func(t *testing.T) {
		f := newFakeBSN(t)
		f.set(func(f *fakeBSN) { f.expiresIn = 10 })
		start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		m := newTestManager(t, f, &fakeClock{now: start}, WithExpiryMargin(15*time.Second))

		require.NoError(t, m.Login(context.Background()))
		require.Equal(t, start.Add(10*time.Second), m.State().ExpiresAt())
	})
}

func TestExpiryFollowsInjectedClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		start    time.Time
		lifetime any
		want     time.Duration
	}{
		{name: "clock far in the future", start: time.Date(2099, 6, 1, 8, 0, 0, 0, time.UTC), lifetime: 3600, want: time.Hour},
		{name: "clock far in the past", start: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), lifetime: 3600, want: time.Hour},
		{name: "quoted lifetime", start: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), lifetime: "1800", want: 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeBSN(t)
			f.set(func(f *fakeBSN) { f.expiresInRaw = tt.lifetime })
			m := newTestManager(t, f, &fakeClock{now: tt.start})

			require.NoError(t, m.Login(context.Background()))
			require.Equal(t, tt.start.Add(tt.want), m.State().ExpiresAt())
		})
	}
}

func TestExpiredTokenTriggersOneLogin(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, f, clock)

	doDevices(t, m, f)
	require.Equal(t, "Bearer tok-1", f.lastAuth)

	clock.Advance(time.Hour)
	doDevices(t, m, f)

	require.Equal(t, []string{"token", "network", "devices", "token", "network", "devices"}, f.callLog())
	require.Equal(t, "Bearer tok-2", f.lastAuth)
}

func TestConsecutiveCallsShareOneLogin(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})

	doDevices(t, m, f)
	doDevices(t, m, f)

	require.Equal(t, 1, f.count("token"))
	require.Equal(t, 1, f.count("network"))
	require.Equal(t, 2, f.count("devices"))
}

func TestFailedLoginKeepsState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		breakFn  func(f *fakeBSN)
		wantCode string
		wantLog  []string
	}{
		{
			name:     "token endpoint rejects client",
			breakFn:  func(f *fakeBSN) { f.tokenStatus = http.StatusUnauthorized },
			wantCode: CodeAuthentication,
			wantLog:  []string{"token"},
		},
		{
			name:     "network selection fails",
			breakFn:  func(f *fakeBSN) { f.networkStatus = http.StatusNotFound },
			wantCode: CodeNetworkSelection,
			wantLog:  []string{"token", "network"},
		},
		{
			name:     "token without lifetime",
			breakFn:  func(f *fakeBSN) { f.expiresIn = 0 },
			wantCode: CodeAuthentication,
			wantLog:  []string{"token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			t.Run("from uninitialized", func(t *testing.T) {
				f := newFakeBSN(t)
				f.set(tt.breakFn)
				m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})

				err := m.EnsureAuthenticated(context.Background())
				var sessErr *Error
				require.ErrorAs(t, err, &sessErr)
				require.Equal(t, tt.wantCode, sessErr.Code)
				require.Equal(t, State{}, m.State())
				require.Equal(t, tt.wantLog, f.callLog())
			})

			t.Run("from active", func(t *testing.T) {
				f := newFakeBSN(t)
				m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})
				require.NoError(t, m.Login(context.Background()))
				before := m.State()

				f.set(tt.breakFn)
				err := m.Login(context.Background())

				var sessErr *Error
				require.ErrorAs(t, err, &sessErr)
				require.Equal(t, tt.wantCode, sessErr.Code)
				require.Equal(t, before, m.State())
			})
		})
	}
}

func TestLoginErrorCarriesStatusAndDetails(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	f.set(func(f *fakeBSN) { f.tokenStatus = http.StatusUnauthorized })
	m := newTestManager(t, f, &fakeClock{now: time.Now()})

	err := m.Login(context.Background())

	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, http.StatusUnauthorized, sessErr.StatusCode)
	require.Contains(t, sessErr.Details, "unauthorized_client")
}

func TestRetryAfterFailureStartsOver(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	f.set(func(f *fakeBSN) { f.networkStatus = http.StatusBadGateway })
	m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})

	require.Error(t, m.EnsureAuthenticated(context.Background()))

	f.set(func(f *fakeBSN) { f.networkStatus = http.StatusOK })
	require.NoError(t, m.EnsureAuthenticated(context.Background()))

	require.Equal(t, []string{"token", "network", "token", "network"}, f.callLog())
	require.Equal(t, "tok-2", m.State().AccessToken())
}

func TestLoginForcesNewGeneration(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})

	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.NoError(t, m.Login(context.Background()))

	require.Equal(t, []string{"token", "network", "token", "network"}, f.callLog())
	require.Equal(t, "tok-2", m.State().AccessToken())
}

func TestConfigurationErrorSkipsNetwork(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	cfgErr := &credentials.ConfigError{Missing: []string{credentials.EnvSecret}}
	m := New(staticResolver{err: cfgErr},
		WithHTTPClient(f.server.Client()),
		WithTokenURL(f.server.URL+"/token"),
		WithAPIURL(f.server.URL+"/REST"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	resp, err := m.Do(newDevicesRequest(t, f))
	require.Nil(t, resp)

	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, CodeConfiguration, sessErr.Code)
	require.True(t, errors.Is(err, credentials.ErrMissing))
	require.Empty(t, f.callLog())

	_, err = m.Network(context.Background())
	require.ErrorIs(t, err, credentials.ErrMissing)
}

func TestDoDoesNotSendWhenLoginFails(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	f.set(func(f *fakeBSN) { f.tokenStatus = http.StatusInternalServerError })
	m := newTestManager(t, f, &fakeClock{now: time.Now()})

	resp, err := m.Do(newDevicesRequest(t, f))
	require.Nil(t, resp)
	require.Error(t, err)
	require.Zero(t, f.count("devices"))
}

func TestConcurrentCallersShareLogin(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	f.set(func(f *fakeBSN) { f.tokenDelay = 50 * time.Millisecond })
	m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})

	const callers = 20
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.EnsureAuthenticated(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.count("token"))
	require.Equal(t, 1, f.count("network"))
}

func TestCanceledCallerDoesNotFailSharedLogin(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	f.set(func(f *fakeBSN) { f.tokenDelay = 200 * time.Millisecond })
	m := newTestManager(t, f, &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)})

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- m.EnsureAuthenticated(firstCtx) }()

	require.Eventually(t, func() bool { return f.count("token") == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- m.EnsureAuthenticated(context.Background()) }()

	cancel()

	err := <-first
	require.ErrorIs(t, err, context.Canceled)
	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	require.Equal(t, CodeAuthentication, sessErr.Code)

	require.NoError(t, <-second)
	require.True(t, m.State().Selected())
	require.Equal(t, 1, f.count("token"))
	require.Equal(t, 1, f.count("network"))
}

func TestNetworkReturnsResolvedName(t *testing.T) {
	t.Parallel()

	f := newFakeBSN(t)
	m := newTestManager(t, f, &fakeClock{now: time.Now()})

	network, err := m.Network(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Lobby", network)
	require.Empty(t, f.callLog(), "resolving the network name needs no login")
}
