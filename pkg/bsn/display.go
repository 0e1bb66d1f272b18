package bsn

import (
	"context"
	"encoding/json"
	"net/http"
)

// Display control only works on displays with a built-in player running
// BOS 9.0.189 or later.

// GetDisplayControl returns all display control settings.
func (c *Client) GetDisplayControl(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("display-control"), nil, nil)
}

func (c *Client) displayGet(ctx context.Context, serial, setting string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("display-control", setting), nil, nil)
}

func (c *Client) displayPut(ctx context.Context, serial, setting string, data map[string]any) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodPut, serial, joinPath("display-control", setting), nil, data)
}

// GetDisplayBrightness returns the display brightness.
func (c *Client) GetDisplayBrightness(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "brightness")
}

// SetDisplayBrightness sets the brightness, 0 to 100.
func (c *Client) SetDisplayBrightness(ctx context.Context, serial string, brightness int) (json.RawMessage, error) {
	if err := c.checkVar("brightness", brightness, "min=0,max=100"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "brightness", map[string]any{"brightness": brightness})
}

// GetDisplayContrast returns the display contrast.
func (c *Client) GetDisplayContrast(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "contrast")
}

// SetDisplayContrast sets the contrast, 0 to 100.
func (c *Client) SetDisplayContrast(ctx context.Context, serial string, contrast int) (json.RawMessage, error) {
	if err := c.checkVar("contrast", contrast, "min=0,max=100"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "contrast", map[string]any{"contrast": contrast})
}

// GetDisplayAlwaysConnected reports whether the display stays connected.
func (c *Client) GetDisplayAlwaysConnected(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "always-connected")
}

// SetDisplayAlwaysConnected sets whether the display stays connected.
func (c *Client) SetDisplayAlwaysConnected(ctx context.Context, serial string, enable bool) (json.RawMessage, error) {
	return c.displayPut(ctx, serial, "always-connected", map[string]any{"enable": enable})
}

// GetDisplayAlwaysOn reports whether the display stays on.
func (c *Client) GetDisplayAlwaysOn(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "always-on")
}

// SetDisplayAlwaysOn sets whether the display stays on.
func (c *Client) SetDisplayAlwaysOn(ctx context.Context, serial string, enable bool) (json.RawMessage, error) {
	return c.displayPut(ctx, serial, "always-on", map[string]any{"enable": enable})
}

// UpdateDisplayFirmware updates the display firmware from a file on the SD
// card or from a URL. Exactly one must be given. The player reboots.
func (c *Client) UpdateDisplayFirmware(ctx context.Context, serial, filePath, firmwareURL string) (json.RawMessage, error) {
	if err := exactlyOne("filepath", "url", filePath != "", firmwareURL != ""); err != nil {
		return nil, err
	}

	data := map[string]any{"filepath": filePath}
	if firmwareURL != "" {
		if err := c.checkVar("url", firmwareURL, "url"); err != nil {
			return nil, err
		}
		data = map[string]any{"url": firmwareURL}
	}
	return c.displayPut(ctx, serial, "firmware", data)
}

// GetDisplayInfo returns model and firmware information of the display.
func (c *Client) GetDisplayInfo(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "info")
}

// GetDisplayPowerSettings returns the display power state.
func (c *Client) GetDisplayPowerSettings(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "power-settings")
}

// SetDisplayPowerSettings changes the display power state, for example "on"
// or "standby".
func (c *Client) SetDisplayPowerSettings(ctx context.Context, serial, setting string) (json.RawMessage, error) {
	if err := c.checkVar("setting", setting, "required"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "power-settings", map[string]any{"setting": setting})
}

// GetDisplayStandbyTimeout returns the standby timeout.
func (c *Client) GetDisplayStandbyTimeout(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "standby-timeout")
}

// SetDisplayStandbyTimeout sets the standby timeout in seconds.
func (c *Client) SetDisplayStandbyTimeout(ctx context.Context, serial string, seconds int) (json.RawMessage, error) {
	if err := c.checkVar("seconds", seconds, "gte=0"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "standby-timeout", map[string]any{"seconds": seconds})
}

// GetDisplaySDConnection reports whether the SD card belongs to the player
// or the display.
func (c *Client) GetDisplaySDConnection(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "sd-connection")
}

// SetDisplaySDConnection hands the SD card to "brightsign" or "display".
func (c *Client) SetDisplaySDConnection(ctx context.Context, serial, connection string) (json.RawMessage, error) {
	if err := c.checkVar("connection", connection, "oneof=brightsign display"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "sd-connection", map[string]any{"connection": connection})
}

// GetDisplayVideoOutput returns the selected display input.
func (c *Client) GetDisplayVideoOutput(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "video-output")
}

// SetDisplayVideoOutput selects the display input.
func (c *Client) SetDisplayVideoOutput(ctx context.Context, serial, output string) (json.RawMessage, error) {
	if err := c.checkVar("output", output, "required"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "video-output", map[string]any{"output": output})
}

// GetDisplayVolume returns the display volume.
func (c *Client) GetDisplayVolume(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "volume")
}

// SetDisplayVolume sets the volume, 0 to 100.
func (c *Client) SetDisplayVolume(ctx context.Context, serial string, volume int) (json.RawMessage, error) {
	if err := c.checkVar("volume", volume, "min=0,max=100"); err != nil {
		return nil, err
	}
	return c.displayPut(ctx, serial, "volume", map[string]any{"volume": volume})
}

// GetDisplayWhiteBalance returns the white balance.
func (c *Client) GetDisplayWhiteBalance(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.displayGet(ctx, serial, "white-balance")
}

// WhiteBalance holds the per-channel balance values.
type WhiteBalance struct {
	Red   int `json:"redbalance"`
	Green int `json:"greenbalance"`
	Blue  int `json:"bluebalance"`
}

// SetDisplayWhiteBalance sets the white balance.
func (c *Client) SetDisplayWhiteBalance(ctx context.Context, serial string, wb WhiteBalance) (json.RawMessage, error) {
	data := map[string]any{
		"redbalance":   wb.Red,
		"greenbalance": wb.Green,
		"bluebalance":  wb.Blue,
	}
	return c.displayPut(ctx, serial, "white-balance", data)
}
