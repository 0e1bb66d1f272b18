package bsn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// GetDevices lists the devices of the selected network, sorted by name. A
// non-empty description filters on devices whose description contains it.
func (c *Client) GetDevices(ctx context.Context, description string) (json.RawMessage, error) {
	q := url.Values{}
	if description != "" {
		q.Set("filter", "[Description] IS '*"+description+"*'")
	}
	q.Set("sort", "[Settings].[Name] ASC")
	q.Set("pageSize", "100")

	return c.do(ctx, call{
		method: http.MethodGet,
		url:    c.apiURL + "/Devices/",
		query:  q,
	})
}
