// Package credentials resolves the BSN Cloud client credentials.
//
// Values are layered with koanf, lowest precedence first:
//
//  1. a dotenv file (".env" by default), canonical or legacy variable names
//  2. the process environment, canonical or legacy variable names
//  3. the OS keyring, for the secret only, when enabled
//  4. values passed to Source.Configure, which replace all of the above
//
// Resolution happens once. The first successful Resolve fixes the credentials
// for the lifetime of the Source.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"github.com/zalando/go-keyring"
)

// Environment variable names read by the Source.
const (
	EnvClientID = "BSN_CLIENT_ID"
	EnvSecret   = "BSN_SECRET"
	EnvNetwork  = "BSN_NETWORK"
)

const (
	keyClientID = "client_id"
	keySecret   = "secret"
	keyNetwork  = "network"
)

// DefaultKeyringService is the keyring service name secrets are stored under.
const DefaultKeyringService = "bsncloud"

var (
	canonicalNames = map[string]string{
		EnvClientID: keyClientID,
		EnvSecret:   keySecret,
		EnvNetwork:  keyNetwork,
	}

	// legacyNames are the camel-case names older .env files use.
	legacyNames = map[string]string{
		"bsnClientID": keyClientID,
		"bsnSecret":   keySecret,
		"bsnNetwork":  keyNetwork,
	}

	envNames = map[string]string{
		keyClientID: EnvClientID,
		keySecret:   EnvSecret,
		keyNetwork:  EnvNetwork,
	}
)

var (
	// ErrMissing matches any ConfigError.
	ErrMissing = errors.New("credentials incomplete")

	// ErrAlreadyResolved is returned by Configure once credentials are in use.
	ErrAlreadyResolved = errors.New("credentials already resolved")

	// ErrKeyringDisabled is returned by the keyring helpers when the Source
	// was created without WithKeyring.
	ErrKeyringDisabled = errors.New("keyring storage not enabled")
)

// Credentials identify a BSN Cloud API client and the network it works in.
type Credentials struct {
	ClientID string `koanf:"client_id" validate:"required"`
	Secret   string `koanf:"secret" validate:"required"`
	Network  string `koanf:"network" validate:"required"`
}

// LogValue keeps the secret out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client_id", c.ClientID),
		slog.String("network", c.Network),
		slog.String("secret", "REDACTED"),
	)
}

// ConfigError reports credential values that could not be found.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf(
		"bsn cloud credentials missing: %s (call Configure, set %s, %s and %s, or provide a .env file)",
		strings.Join(e.Missing, ", "), EnvClientID, EnvSecret, EnvNetwork,
	)
}

// Is reports whether target is ErrMissing.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissing
}

// Option configures a Source.
type Option func(*Source)

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) Option {
	return func(s *Source) {
		s.environ = environ
	}
}

// WithDotEnv sets the dotenv file to read. An empty path disables it.
func WithDotEnv(path string) Option {
	return func(s *Source) {
		s.dotenvPath = path
	}
}

// WithKeyring enables reading the secret from the OS keyring under service.
func WithKeyring(service string) Option {
	return func(s *Source) {
		s.keyringService = service
	}
}

// Source resolves Credentials. It is safe for concurrent use.
type Source struct {
	environ        func() []string
	dotenvPath     string
	keyringService string
	validate       *validator.Validate

	mu         sync.Mutex
	configured *Credentials
	resolved   *Credentials
}

// NewSource creates a Source reading the process environment and ".env".
func NewSource(opts ...Option) *Source {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("koanf")
	})

	s := &Source{
		environ:    os.Environ,
		dotenvPath: ".env",
		validate:   validate,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Configure sets credentials explicitly. They take priority over every
// other layer. It fails with ErrAlreadyResolved after the first Resolve.
func (s *Source) Configure(clientID, secret, network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved != nil {
		return ErrAlreadyResolved
	}

	s.configured = &Credentials{
		ClientID: clientID,
		Secret:   secret,
		Network:  network,
	}
	return nil
}

// Resolve returns the credentials, loading them on first use. A failed
// resolution is not cached, so a later call sees fixed configuration.
func (s *Source) Resolve() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved != nil {
		return *s.resolved, nil
	}

	creds, err := s.load()
	if err != nil {
		return Credentials{}, err
	}

	s.resolved = &creds
	return creds, nil
}

// load merges all layers and validates the result. Callers hold s.mu.
func (s *Source) load() (Credentials, error) {
	if s.configured != nil {
		return s.check(*s.configured)
	}

	k := koanf.New(".")

	if s.dotenvPath != "" {
		values, err := godotenv.Read(s.dotenvPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// the dotenv file is optional
		case err != nil:
			return Credentials{}, fmt.Errorf("reading %s: %w", s.dotenvPath, err)
		default:
			for _, names := range []map[string]string{legacyNames, canonicalNames} {
				if err := k.Load(confmap.Provider(pick(values, names), "."), nil); err != nil {
					return Credentials{}, fmt.Errorf("loading %s: %w", s.dotenvPath, err)
				}
			}
		}
	}

	for _, names := range []map[string]string{legacyNames, canonicalNames} {
		if err := k.Load(envProvider(s.environ, names), nil); err != nil {
			return Credentials{}, fmt.Errorf("loading environment: %w", err)
		}
	}

	var creds Credentials
	if err := k.Unmarshal("", &creds); err != nil {
		return Credentials{}, fmt.Errorf("decoding credentials: %w", err)
	}

	if creds.Secret == "" && creds.ClientID != "" && s.keyringService != "" {
		secret, err := keyring.Get(s.keyringService, creds.ClientID)
		switch {
		case errors.Is(err, keyring.ErrNotFound):
		case err != nil:
			return Credentials{}, fmt.Errorf("reading secret from keyring: %w", err)
		default:
			creds.Secret = secret
		}
	}

	return s.check(creds)
}

// check converts validation failures into a ConfigError.
func (s *Source) check(creds Credentials) (Credentials, error) {
	err := s.validate.Struct(creds)
	if err == nil {
		return creds, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Credentials{}, fmt.Errorf("validating credentials: %w", err)
	}

	missing := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		missing = append(missing, envNames[fe.Field()])
	}
	return Credentials{}, &ConfigError{Missing: missing}
}

// StoreSecret saves secret in the OS keyring for clientID.
func (s *Source) StoreSecret(clientID, secret string) error {
	if s.keyringService == "" {
		return ErrKeyringDisabled
	}
	if clientID == "" || secret == "" {
		return errors.New("client id and secret cannot be empty")
	}
	if err := keyring.Set(s.keyringService, clientID, secret); err != nil {
		return fmt.Errorf("writing secret to keyring: %w", err)
	}
	return nil
}

// DeleteSecret removes the keyring entry for clientID. A missing entry is
// not an error.
func (s *Source) DeleteSecret(clientID string) error {
	if s.keyringService == "" {
		return ErrKeyringDisabled
	}
	err := keyring.Delete(s.keyringService, clientID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting secret from keyring: %w", err)
	}
	return nil
}

// pick maps the non-empty values named in names to their credential keys.
func pick(values map[string]string, names map[string]string) map[string]any {
	out := make(map[string]any, len(names))
	for name, key := range names {
		if v := values[name]; v != "" {
			out[key] = v
		}
	}
	return out
}

// envProvider reads only the variables listed in names, skipping empty ones.
func envProvider(environ func() []string, names map[string]string) *env.Env {
	return env.Provider(".", env.Opt{
		EnvironFunc: environ,
		TransformFunc: func(k, v string) (string, any) {
			key, ok := names[k]
			if !ok || v == "" {
				return "", nil
			}
			return key, v
		},
	})
}
