package bsn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// RebootMode selects how a player reboots.
type RebootMode string

const (
	RebootNormal         RebootMode = ""
	RebootCrashReport    RebootMode = "crash_report"
	RebootFactoryReset   RebootMode = "factory_reset"
	RebootDisableAutorun RebootMode = "disable_autorun"
)

// GetDeviceInfo returns general information about the player.
func (c *Client) GetDeviceInfo(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("info"), nil, nil)
}

// GetDeviceTime returns the player clock.
func (c *Client) GetDeviceTime(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("time"), nil, nil)
}

// DeviceTime sets the player clock. With ApplyTimezone the values are read
// in the timezone configured on the player, otherwise in UTC.
type DeviceTime struct {
	// Time is hh:mm:ss, optionally followed by a timezone.
	Time string `json:"time" validate:"required,player_time"`
	// Date is yyyy-mm-dd.
	Date          string `json:"date" validate:"required,player_date"`
	ApplyTimezone bool   `json:"applyTimezone"`
}

// SetDeviceTime sets the player clock.
func (c *Client) SetDeviceTime(ctx context.Context, serial string, t DeviceTime) (json.RawMessage, error) {
	if err := c.check(t); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("time"), nil, t)
}

// GetDeviceHealth returns the player health status.
func (c *Client) GetDeviceHealth(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("health"), nil, nil)
}

// GetDeviceLogs returns the player log.
func (c *Client) GetDeviceLogs(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("logs"), nil, nil)
}

// GetDeviceCrashDumps returns the crash dumps stored on the player.
func (c *Client) GetDeviceCrashDumps(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("crash-dump"), nil, nil)
}

// RebootDevice reboots the player. The player usually drops the connection
// instead of answering.
func (c *Client) RebootDevice(ctx context.Context, serial string, mode RebootMode) (json.RawMessage, error) {
	var data any
	switch mode {
	case RebootNormal:
	case RebootCrashReport:
		data = map[string]any{"crash_report": true}
	case RebootFactoryReset:
		data = map[string]any{"factory_reset": true}
	case RebootDisableAutorun:
		data = map[string]any{"autorun": "disable"}
	default:
		return nil, badArgument("mode", "must be one of: crash_report, factory_reset, disable_autorun, or empty")
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("control", "reboot"), nil, data)
}

// GetDevicePassword reports whether a DWS password is set.
func (c *Client) GetDevicePassword(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("control", "dws-password"), nil, nil)
}

// SetDevicePassword changes the DWS password. An empty password removes it.
func (c *Client) SetDevicePassword(ctx context.Context, serial, password, previous string) (json.RawMessage, error) {
	data := map[string]any{
		"password":         password,
		"previousPassword": previous,
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("control", "dws-password"), nil, data)
}

// GetLocalDWS reports whether the local diagnostic web server is enabled.
func (c *Client) GetLocalDWS(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("control", "local-dws"), nil, nil)
}

// SetLocalDWS enables or disables the local diagnostic web server.
func (c *Client) SetLocalDWS(ctx context.Context, serial string, enable bool) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodPut, serial, joinPath("control", "local-dws"), nil, map[string]any{"enable": enable})
}

// ResetSSHHostKeys regenerates the SSH host keys. A nil reboot leaves the
// choice to the player.
func (c *Client) ResetSSHHostKeys(ctx context.Context, serial string, reboot *bool) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodPut, serial, joinPath("control", "ssh-host-keys", "reset"), nil, rebootData(reboot))
}

// ResetDWSDefaultCerts restores the default DWS certificates.
func (c *Client) ResetDWSDefaultCerts(ctx context.Context, serial string, reboot *bool) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodPut, serial, joinPath("control", "dws-default-certs", "reset"), nil, rebootData(reboot))
}

// the reset endpoints take the flag as a string
func rebootData(reboot *bool) any {
	if reboot == nil {
		return nil
	}
	if *reboot {
		return map[string]any{"reboot": "true"}
	}
	return map[string]any{"reboot": "false"}
}

// ReformatStorage erases a storage device and formats it as exFAT.
func (c *Client) ReformatStorage(ctx context.Context, serial, device string) (json.RawMessage, error) {
	device = orDefaultString(device, "sd")
	if err := c.checkVar("device", device, "oneof=sd usb ssd"); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodDelete, serial, joinPath("storage", device), nil, map[string]any{"fs": "exfat"})
}

// ReprovisionDevice makes the player run provisioning again on next boot.
func (c *Client) ReprovisionDevice(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("re-provision"), nil, nil)
}

// TakeSnapshot captures the current screen contents.
func (c *Client) TakeSnapshot(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodPost, serial, joinPath("snapshot"), nil, nil)
}

// SendCustomCommand sends command to the running presentation. With
// returnImmediately the player answers before the command is handled.
func (c *Client) SendCustomCommand(ctx context.Context, serial, command string, returnImmediately bool) (json.RawMessage, error) {
	if err := c.checkVar("command", command, "required"); err != nil {
		return nil, err
	}
	data := map[string]any{
		"command":           command,
		"returnImmediately": returnImmediately,
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("custom"), nil, data)
}

// DownloadFirmware makes the player download and apply the firmware at
// firmwareURL.
func (c *Client) DownloadFirmware(ctx context.Context, serial, firmwareURL string) (json.RawMessage, error) {
	if err := c.checkVar("url", firmwareURL, "required,url"); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodGet, serial, joinPath("download-firmware"), url.Values{"url": {firmwareURL}}, nil)
}

func orDefaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
