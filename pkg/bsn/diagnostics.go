package bsn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// GetDiagnostics runs the player's built-in network diagnostics.
func (c *Client) GetDiagnostics(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics"), nil, nil)
}

// DNSLookup resolves domain from the player.
func (c *Client) DNSLookup(ctx context.Context, serial, domain string) (json.RawMessage, error) {
	if err := c.checkVar("domain", domain, "required"); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "dns-lookup", domain), nil, nil)
}

// Ping pings domain from the player.
func (c *Client) Ping(ctx context.Context, serial, domain string) (json.RawMessage, error) {
	if err := c.checkVar("domain", domain, "required"); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "ping", domain), nil, nil)
}

// Traceroute traces the route from the player to domain. resolveAddress
// resolves hop addresses to names.
func (c *Client) Traceroute(ctx context.Context, serial, domain string, resolveAddress bool) (json.RawMessage, error) {
	if err := c.checkVar("domain", domain, "required"); err != nil {
		return nil, err
	}
	q := url.Values{"resolveAddress": {strconv.FormatBool(resolveAddress)}}
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "trace-route", domain), q, nil)
}

// GetNetworkConfig returns the configuration of a network interface. An
// empty iface means eth0.
func (c *Client) GetNetworkConfig(ctx context.Context, serial, iface string) (json.RawMessage, error) {
	path := joinPath("diagnostics", "network-configuration", orDefaultString(iface, "eth0"))
	return c.rdws(ctx, http.MethodGet, serial, path, nil, nil)
}

// SetNetworkConfig replaces the configuration of a network interface. The
// config object is passed through unchanged.
func (c *Client) SetNetworkConfig(ctx context.Context, serial, iface string, config map[string]any) (json.RawMessage, error) {
	if err := c.checkVar("iface", iface, "required"); err != nil {
		return nil, err
	}
	if err := c.checkVar("config", config, "required"); err != nil {
		return nil, err
	}
	path := joinPath("diagnostics", "network-configuration", iface)
	return c.rdws(ctx, http.MethodPut, serial, path, nil, config)
}

// GetNetworkNeighborhood lists the players the device sees on its network.
func (c *Client) GetNetworkNeighborhood(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "network-neighborhood"), nil, nil)
}

// GetPacketCaptureStatus reports whether a packet capture is running.
func (c *Client) GetPacketCaptureStatus(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "packet-capture"), nil, nil)
}

// PacketCapture configures a capture. Use NewPacketCapture for the player
// defaults.
type PacketCapture struct {
	Filename   string `json:"filename" validate:"required"`
	Interface  string `json:"interface" validate:"required"`
	Duration   int    `json:"duration" validate:"gte=0"`
	MaxPackets int    `json:"maxPackets" validate:"gte=0"`
	Snaplen    int    `json:"snaplen" validate:"gte=0"`
	Filter     string `json:"filter"`
}

// NewPacketCapture returns a five minute capture of eth0 into capture.pcap.
func NewPacketCapture() PacketCapture {
	return PacketCapture{
		Filename:  "capture.pcap",
		Interface: "eth0",
		Duration:  300,
	}
}

// StartPacketCapture starts a packet capture on the player.
func (c *Client) StartPacketCapture(ctx context.Context, serial string, pc PacketCapture) (json.RawMessage, error) {
	if err := c.check(pc); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPost, serial, joinPath("diagnostics", "packet-capture"), nil, pc)
}

// StopPacketCapture stops the running packet capture.
func (c *Client) StopPacketCapture(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodDelete, serial, joinPath("diagnostics", "packet-capture"), nil, nil)
}

// GetTelnetStatus returns the telnet server configuration.
func (c *Client) GetTelnetStatus(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "telnet"), nil, nil)
}

// TelnetConfig configures the telnet server. Password is optional.
type TelnetConfig struct {
	Enabled    bool    `json:"enabled"`
	PortNumber int     `json:"portnumber" validate:"min=1,max=65535"`
	Reboot     bool    `json:"reboot"`
	Password   *string `json:"password,omitempty"`
}

// NewTelnetConfig returns a config for port 23 that reboots to apply.
func NewTelnetConfig(enabled bool) TelnetConfig {
	return TelnetConfig{Enabled: enabled, PortNumber: 23, Reboot: true}
}

// SetTelnetConfig changes the telnet server configuration.
func (c *Client) SetTelnetConfig(ctx context.Context, serial string, cfg TelnetConfig) (json.RawMessage, error) {
	if err := c.check(cfg); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("diagnostics", "telnet"), nil, cfg)
}

// GetSSHStatus returns the SSH server configuration.
func (c *Client) GetSSHStatus(ctx context.Context, serial string) (json.RawMessage, error) {
	return c.rdws(ctx, http.MethodGet, serial, joinPath("diagnostics", "ssh"), nil, nil)
}

// SSHConfig configures the SSH server. At most one of Password and
// ObfuscatedPassword may be set.
type SSHConfig struct {
	Enabled            bool    `json:"enabled"`
	PortNumber         int     `json:"portnumber" validate:"min=1,max=65535"`
	Reboot             bool    `json:"reboot"`
	Password           *string `json:"password,omitempty"`
	ObfuscatedPassword *string `json:"obfuscatedPassword,omitempty"`
}

// NewSSHConfig returns a config for port 22 that reboots to apply.
func NewSSHConfig(enabled bool) SSHConfig {
	return SSHConfig{Enabled: enabled, PortNumber: 22, Reboot: true}
}

// SetSSHConfig changes the SSH server configuration.
func (c *Client) SetSSHConfig(ctx context.Context, serial string, cfg SSHConfig) (json.RawMessage, error) {
	if cfg.Password != nil && cfg.ObfuscatedPassword != nil {
		return nil, badArgument("password", "cannot be combined with obfuscatedPassword")
	}
	if err := c.check(cfg); err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, joinPath("diagnostics", "ssh"), nil, cfg)
}
