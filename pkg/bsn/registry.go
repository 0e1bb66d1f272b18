package bsn

import (
	"context"
	"encoding/json"
	"net/http"
)

// GetPropertyLock returns the registry property lock settings.
func (c *Client) GetPropertyLock(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("advanced", "property-lock"), nil, nil)
}

// SetPropertyLock changes whether registry settings override presentation
// settings.
func (c *Client) SetPropertyLock(ctx context.Context, serial string, forceRegistrySettings, registryEnableSettings bool) (json.RawMessage, error) {
	data := map[string]any{
		"forceRegistrySettings":  forceRegistrySettings,
		"registryEnableSettings": registryEnableSettings,
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("advanced", "property-lock"), nil, data)
}

// GetRegistry dumps the whole player registry.
func (c *Client) GetRegistry(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("registry"), nil, nil)
}

// GetRegistryKey reads one registry value.
func (c *Client) GetRegistryKey(ctx context.Context, serial, section, key string) (json.RawMessage, error) {
	if err := c.checkSectionKey(section, key); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodGet, serial, joinPath("registry", section, key), nil, nil)
}

// SetRegistryKey writes one registry value, creating the section if needed.
func (c *Client) SetRegistryKey(ctx context.Context, serial, section, key string, value any) (json.RawMessage, error) {
	if err := c.checkSectionKey(section, key); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("registry", section, key), nil, map[string]any{"value": value})
}

// DeleteRegistryKey deletes a key, or the whole section when key is empty.
func (c *Client) DeleteRegistryKey(ctx context.Context, serial, section, key string) (json.RawMessage, error) {
	if err := c.checkVar("section", section, "required"); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodDelete, serial, joinPath("registry", section, key), nil, nil)
}

// FlushRegistry writes pending registry changes to storage.
func (c *Client) FlushRegistry(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodPut, serial, joinPath("registry", "flush"), nil, nil)
}

// GetRecoveryURL returns the recovery URL the player falls back to.
func (c *Client) GetRecoveryURL(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("registry", "recovery-url"), nil, nil)
}

// SetRecoveryURL changes the recovery URL.
func (c *Client) SetRecoveryURL(ctx context.Context, serial, recoveryURL string) (json.RawMessage, error) {
	if err := c.checkVar("url", recoveryURL, "required,url"); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("registry", "recovery-url"), nil, map[string]any{"url": recoveryURL})
}

func (c *Client) checkSectionKey(section, key string) error {
	if err := c.checkVar("section", section, "required"); err != nil {
		return err
	}
	return c.checkVar("key", key, "required")
}
