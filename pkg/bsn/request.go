package bsn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/florianilch/bsncloud/internal/session"
)

// maxErrorBody caps how much of a failed response ends up in APIError.Details.
const maxErrorBody = 64 << 10

var successBody = json.RawMessage(`{"success":true}`)

// call describes one API request.
type call struct {
	method string
	url    string
	query  url.Values

	// body is JSON encoded when set.
	body any

	// raw is sent as application/octet-stream when set. It takes precedence
	// over body.
	raw []byte
}

// do sends c through the session and interprets the response.
func (c *Client) do(ctx context.Context, r call) (json.RawMessage, error) {
	req, err := newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	resp, err := c.session.Do(req)
	if err != nil {
		var sessErr *session.Error
		if errors.As(err, &sessErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %w", r.method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		details, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.DebugContext(ctx, "bsn cloud request failed",
			"method", r.method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
		)
		return nil, &APIError{
			Code:       CodeHTTPStatus,
			StatusCode: resp.StatusCode,
			Details:    string(details),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", r.method, req.URL.Path, err)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return successBody, nil
	}

	if !json.Valid(body) {
		return nil, &APIError{
			Code:       CodeInvalidResponse,
			StatusCode: resp.StatusCode,
			Details:    truncate(string(body), maxErrorBody),
		}
	}

	return json.RawMessage(body), nil
}

func newRequest(ctx context.Context, r call) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
		contentType = "application/octet-stream"
	case r.body != nil:
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	target := r.url
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// player addresses an rDWS request to the player with the given serial.
func player(serial string, extra url.Values) url.Values {
	q := url.Values{}
	q.Set("destinationType", "player")
	q.Set("destinationName", serial)
	for k, vs := range extra {
		q[k] = vs
	}
	return q
}

// rdws sends an rDWS request for path, relative to the rDWS base. A non-nil
// data is wrapped in {"data": ...}.
func (c *Client) rdws(ctx context.Context, method, serial, path string, extra url.Values, data any) (json.RawMessage, error) {
	if err := c.checkVar("serial", serial, "required"); err != nil {
		return nil, err
	}

	r := call{
		method: method,
		url:    c.rdwsURL + "/" + path,
		query:  player(serial, extra),
	}
	if data != nil {
		r.body = map[string]any{"data": data}
	}
	return c.do(ctx, r)
}

// joinPath escapes each segment and appends a trailing slash. Segments may
// themselves contain slashes, which are kept as separators.
func joinPath(segments ...string) string {
	var b strings.Builder
	for _, seg := range segments {
		for _, part := range strings.Split(strings.Trim(seg, "/"), "/") {
			if part == "" {
				continue
			}
			b.WriteString(url.PathEscape(part))
			b.WriteByte('/')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
