package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/florianilch/bsncloud/internal/session"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bsncloud.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", environ(), nil)
	require.NoError(t, err)

	require.Equal(t, session.DefaultTokenURL, cfg.AuthURL)
	require.Equal(t, session.DefaultAPIURL, cfg.APIURL)
	require.Equal(t, "https://ws.bsn.cloud/rest/v1", cfg.RDWSURL)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 15*time.Second, cfg.ExpiryMargin)
	require.Equal(t, ".env", cfg.Credentials.DotEnv)
	require.False(t, cfg.Credentials.Keyring)
	require.Equal(t, "bsncloud", cfg.Credentials.KeyringService)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, "stdout", cfg.OTel.Exporter)
}

func TestLoadLayers(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
expiry_margin = "30s"
rdws_url = "https://rdws.example.com/rest/v1"

[log]
level = "warn"
format = "json"

[credentials]
keyring = true
`)

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := Load(path, environ(), nil)
		require.NoError(t, err)
		require.Equal(t, 30*time.Second, cfg.ExpiryMargin)
		require.Equal(t, "https://rdws.example.com/rest/v1", cfg.RDWSURL)
		require.Equal(t, "warn", cfg.Log.Level)
		require.True(t, cfg.Credentials.Keyring)
	})

	t.Run("environment over file", func(t *testing.T) {
		cfg, err := Load(path, environ(
			"BSNCLOUD_LOG__LEVEL=debug",
			"BSNCLOUD_HTTP_TIMEOUT=5s",
			"BSN_SECRET=ignored",
		), nil)
		require.NoError(t, err)
		require.Equal(t, "debug", cfg.Log.Level)
		require.Equal(t, "json", cfg.Log.Format)
		require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	})

	t.Run("overrides over environment", func(t *testing.T) {
		cfg, err := Load(path, environ("BSNCLOUD_LOG__LEVEL=debug"), map[string]any{
			"log.level":  "error",
			"log.format": "text",
		})
		require.NoError(t, err)
		require.Equal(t, "error", cfg.Log.Level)
		require.Equal(t, "text", cfg.Log.Format)
	})
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		environ []string
		want    string
	}{
		{name: "log format", environ: []string{"BSNCLOUD_LOG__FORMAT=xml"}, want: "log.format"},
		{name: "exporter", environ: []string{"BSNCLOUD_OTEL__EXPORTER=kafka"}, want: "otel.exporter"},
		{name: "api url", environ: []string{"BSNCLOUD_API_URL=not a url"}, want: "api_url"},
		{name: "negative margin", environ: []string{"BSNCLOUD_EXPIRY_MARGIN=-1s"}, want: "expiry_margin"},
		{name: "keyring without service", environ: []string{"BSNCLOUD_CREDENTIALS__KEYRING=true", "BSNCLOUD_CREDENTIALS__KEYRING_SERVICE="}, want: "credentials.keyring_service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load("", environ(tt.environ...), nil)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"), environ(), nil)
	require.ErrorContains(t, err, "absent.toml")
}
