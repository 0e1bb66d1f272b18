// Package config loads bsncloud settings.
//
// Layers, lowest precedence first: built-in defaults, an optional TOML file,
// BSNCLOUD_* environment variables and explicit overrides (CLI flags).
// Nested keys use "__" in variable names, so BSNCLOUD_LOG__LEVEL sets
// log.level.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/florianilch/bsncloud/internal/credentials"
	"github.com/florianilch/bsncloud/internal/session"
	"github.com/florianilch/bsncloud/pkg/bsn"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BSNCLOUD_"

// Config is the complete bsncloud configuration.
type Config struct {
	AuthURL      string        `koanf:"auth_url" validate:"required,url"`
	APIURL       string        `koanf:"api_url" validate:"required,url"`
	RDWSURL      string        `koanf:"rdws_url" validate:"required,url"`
	ProvisionURL string        `koanf:"provision_url" validate:"required,url"`
	HTTPTimeout  time.Duration `koanf:"http_timeout" validate:"gt=0"`
	ExpiryMargin time.Duration `koanf:"expiry_margin" validate:"gte=0"`

	Credentials Credentials `koanf:"credentials"`
	Log         Log         `koanf:"log"`
	OTel        OTel        `koanf:"otel"`
}

// Credentials controls where client credentials are read from. The values
// themselves never live in the config file.
type Credentials struct {
	// DotEnv is the dotenv file to read. Empty disables it.
	DotEnv         string `koanf:"dotenv"`
	Keyring        bool   `koanf:"keyring"`
	KeyringService string `koanf:"keyring_service" validate:"required_if=Keyring true"`
}

// Log configures logging.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `koanf:"format" validate:"oneof=text json otel"`
}

// OTel configures the OTel log pipeline used with log.format=otel.
type OTel struct {
	Exporter string `koanf:"exporter" validate:"oneof=stdout otlp-http otlp-grpc"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"auth_url":                    session.DefaultTokenURL,
		"api_url":                     session.DefaultAPIURL,
		"rdws_url":                    bsn.DefaultRDWSURL,
		"provision_url":               bsn.DefaultProvisionURL,
		"http_timeout":                session.DefaultHTTPTimeout.String(),
		"expiry_margin":               session.DefaultExpiryMargin.String(),
		"credentials.dotenv":          ".env",
		"credentials.keyring":         false,
		"credentials.keyring_service": credentials.DefaultKeyringService,
		"log.level":                   "info",
		"log.format":                  "text",
		"otel.exporter":               "stdout",
	}
}

// Load merges all layers and validates the result. An empty path skips the
// file layer. Keys in overrides use dotted paths such as "log.level".
func Load(path string, environ func() []string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		EnvironFunc:   environ,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// transformEnv maps BSNCLOUD_LOG__LEVEL to log.level.
func transformEnv(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), v
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("koanf")
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is Config.log.level; drop the root type name.
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		msgs = append(msgs, fmt.Sprintf("%s: failed %s check (got %v)", key, fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
