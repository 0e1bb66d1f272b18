package bsn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// VideoOutput addresses one video output. The zero value is hdmi output 0.
type VideoOutput struct {
	Connector string `json:"connector"`
	Device    int    `json:"device" validate:"gte=0"`
}

func (c *Client) videoPath(out VideoOutput, rest ...string) (string, error) {
	if err := c.check(out); err != nil {
		return "", err
	}
	segments := append([]string{"video", orDefaultString(out.Connector, "hdmi"), "output", strconv.Itoa(out.Device)}, rest...)
	return joinPath(segments...), nil
}

// ModeKind selects which video mode GetCurrentVideoMode reports.
type ModeKind string

const (
	ModeCurrent    ModeKind = ""
	ModeBest       ModeKind = "best"
	ModeActive     ModeKind = "active"
	ModeConfigured ModeKind = "configured"
)

// GetVideoMode returns the video mode summary of the player.
func (c *Client) GetVideoMode(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("video-mode"), nil, nil)
}

// GetVideoOutput returns the state of a video output.
func (c *Client) GetVideoOutput(ctx context.Context, serial string, out VideoOutput) (json.RawMessage, error) {
	return c.videoGet(ctx, serial, out)
}

// GetVideoEDID returns the EDID reported by the attached display.
func (c *Client) GetVideoEDID(ctx context.Context, serial string, out VideoOutput) (json.RawMessage, error) {
	return c.videoGet(ctx, serial, out, "edid")
}

// GetVideoPowerSave reports whether power save is enabled on an output.
func (c *Client) GetVideoPowerSave(ctx context.Context, serial string, out VideoOutput) (json.RawMessage, error) {
	return c.videoGet(ctx, serial, out, "power-save")
}

// SetVideoPowerSave enables or disables power save on an output.
func (c *Client) SetVideoPowerSave(ctx context.Context, serial string, out VideoOutput, enabled bool) (json.RawMessage, error) {
	path, err := c.videoPath(out, "power-save")
	if err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, path, nil, map[string]any{"enabled": enabled})
}

// GetVideoModes lists the modes an output supports.
func (c *Client) GetVideoModes(ctx context.Context, serial string, out VideoOutput) (json.RawMessage, error) {
	return c.videoGet(ctx, serial, out, "modes")
}

// GetCurrentVideoMode returns the current, best, active or configured mode
// of an output.
func (c *Client) GetCurrentVideoMode(ctx context.Context, serial string, out VideoOutput, kind ModeKind) (json.RawMessage, error) {
	if err := c.checkVar("kind", string(kind), "omitempty,oneof=best active configured"); err != nil {
		return nil, err
	}
	path, err := c.videoPath(out, "mode")
	if err != nil {
		return nil, err
	}

	var q url.Values
	if kind != ModeCurrent {
		q = url.Values{string(kind): {"1"}}
	}
	return c.rdws(ctx, http.MethodGet, serial, path, q, nil)
}

// VideoMode is a mode to apply. Optional fields are left to the player when
// unset.
type VideoMode struct {
	Name       string `json:"modename" validate:"required"`
	ColorDepth string `json:"colordepth,omitempty" validate:"omitempty,oneof=8bit 10bit 12bit"`
	ColorSpace string `json:"colorspace,omitempty" validate:"omitempty,oneof=rgb yuv420 yuv422"`
	Overscan   *bool  `json:"overscan,omitempty"`
}

// SetVideoMode applies a video mode. The player usually reboots.
func (c *Client) SetVideoMode(ctx context.Context, serial string, out VideoOutput, mode VideoMode) (json.RawMessage, error) {
	if err := c.check(mode); err != nil {
		return nil, err
	}
	path, err := c.videoPath(out, "mode")
	if err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, path, nil, map[string]any{"name": mode})
}

func (c *Client) videoGet(ctx context.Context, serial string, out VideoOutput, rest ...string) (json.RawMessage, error) {
	path, err := c.videoPath(out, rest...)
	if err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodGet, serial, path, nil, nil)
}
