package bsn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

const (
	setupPath  = "/rest-setup/v3/setup"
	devicePath = "/rest-device/v2/device/"
)

// SetupQuery pages through B-Deploy setups.
type SetupQuery struct {
	PageNumber int `json:"pageNumber" validate:"gte=0"`
	PageSize   int `json:"pageSize" validate:"gte=0"`

	// NetworkName defaults to the session network.
	NetworkName string `json:"networkName"`
}

// GetSetups lists setup packages sorted by package name. Zero page values
// default to page 1 of 100.
func (c *Client) GetSetups(ctx context.Context, query SetupQuery) (json.RawMessage, error) {
	if err := c.check(query); err != nil {
		return nil, err
	}

	network := query.NetworkName
	if network == "" {
		var err error
		if network, err = c.session.Network(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("page[pageNum]", strconv.Itoa(orDefault(query.PageNumber, 1)))
	q.Set("page[pageSize]", strconv.Itoa(orDefault(query.PageSize, 100)))
	q.Set("sort[packageName]", "1")
	q.Set("query[networkName]", network)

	return c.do(ctx, call{
		method: http.MethodGet,
		url:    c.provisionURL + setupPath + "/",
		query:  q,
	})
}

// UpdateSetup uploads a setup package document as-is on behalf of username.
func (c *Client) UpdateSetup(ctx context.Context, setup []byte, username string) (json.RawMessage, error) {
	if len(setup) == 0 {
		return nil, badArgument("setup", "is required")
	}
	if err := c.checkVar("username", username, "required"); err != nil {
		return nil, err
	}

	return c.do(ctx, call{
		method: http.MethodPut,
		url:    c.provisionURL + setupPath,
		query:  url.Values{"username": {username}},
		raw:    setup,
	})
}

// RecordQuery pages through provisioning records of the session network.
type RecordQuery struct {
	// SortDescending sorts by serial number in descending order.
	SortDescending bool `json:"sortDescending"`
	PageNumber     int  `json:"pageNumber" validate:"gte=0"`
	PageSize       int  `json:"pageSize" validate:"gte=0"`
}

// ListProvisioningRecords lists provisioning records. Zero page values
// default to page 1 of 100.
func (c *Client) ListProvisioningRecords(ctx context.Context, query RecordQuery) (json.RawMessage, error) {
	if err := c.check(query); err != nil {
		return nil, err
	}

	network, err := c.session.Network(ctx)
	if err != nil {
		return nil, err
	}

	sort := "1"
	if query.SortDescending {
		sort = "0"
	}

	q := url.Values{}
	q.Set("query[NetworkName]", network)
	q.Set("sort[SerialNumber]", sort)
	q.Set("page[pageNum]", strconv.Itoa(orDefault(query.PageNumber, 1)))
	q.Set("page[pageSize]", strconv.Itoa(orDefault(query.PageSize, 100)))

	return c.do(ctx, call{
		method: http.MethodGet,
		url:    c.provisionURL + devicePath,
		query:  q,
	})
}

// RecordRef identifies one provisioning record. ID wins when both are set.
type RecordRef struct {
	ID     string `json:"_id"`
	Serial string `json:"serial"`
}

func (r RecordRef) query() (url.Values, error) {
	if err := atLeastOne("id", "serial", r.ID != "", r.Serial != ""); err != nil {
		return nil, err
	}
	if r.ID != "" {
		return url.Values{"_id": {r.ID}}, nil
	}
	return url.Values{"serial": {r.Serial}}, nil
}

// GetProvisioningRecord fetches one provisioning record.
func (c *Client) GetProvisioningRecord(ctx context.Context, ref RecordRef) (json.RawMessage, error) {
	q, err := ref.query()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, call{
		method: http.MethodGet,
		url:    c.provisionURL + devicePath,
		query:  q,
	})
}

// Record is a provisioning record. Either SetupID or SetupName must be set.
type Record struct {
	Serial   string `json:"serial" validate:"required"`
	Username string `json:"username" validate:"required"`

	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	SetupID     string `json:"setupId,omitempty"`
	SetupName   string `json:"setupName,omitempty"`
	URL         string `json:"url,omitempty"`
	Model       string `json:"model,omitempty"`
	Userdata    string `json:"userdata,omitempty"`
}

func (c *Client) checkRecord(rec Record) error {
	if err := atLeastOne("setupId", "setupName", rec.SetupID != "", rec.SetupName != ""); err != nil {
		return err
	}
	return c.check(rec)
}

type recordPayload struct {
	ID          string `json:"_id,omitempty"`
	NetworkName string `json:"NetworkName"`
	Record
}

// CreateProvisioningRecord registers a player for provisioning in the
// session network.
func (c *Client) CreateProvisioningRecord(ctx context.Context, rec Record) (json.RawMessage, error) {
	if err := c.checkRecord(rec); err != nil {
		return nil, err
	}

	network, err := c.session.Network(ctx)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, call{
		method: http.MethodPost,
		url:    c.provisionURL + devicePath,
		body:   recordPayload{NetworkName: network, Record: rec},
	})
}

// UpdateProvisioningRecord replaces the record with the given id.
func (c *Client) UpdateProvisioningRecord(ctx context.Context, id string, rec Record) (json.RawMessage, error) {
	if err := c.checkVar("id", id, "required"); err != nil {
		return nil, err
	}
	if err := c.checkRecord(rec); err != nil {
		return nil, err
	}

	network, err := c.session.Network(ctx)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, call{
		method: http.MethodPut,
		url:    c.provisionURL + devicePath,
		query:  url.Values{"_id": {id}},
		body:   recordPayload{ID: id, NetworkName: network, Record: rec},
	})
}

// DeleteProvisioningRecord deletes one provisioning record.
func (c *Client) DeleteProvisioningRecord(ctx context.Context, ref RecordRef) (json.RawMessage, error) {
	q, err := ref.query()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, call{
		method: http.MethodDelete,
		url:    c.provisionURL + devicePath,
		query:  q,
	})
}

// DeleteProvisioningRecords deletes several provisioning records by id.
func (c *Client) DeleteProvisioningRecords(ctx context.Context, ids []string) (json.RawMessage, error) {
	if err := c.checkVar("ids", ids, "required,min=1,dive,required"); err != nil {
		return nil, err
	}
	return c.do(ctx, call{
		method: http.MethodDelete,
		url:    c.provisionURL + devicePath,
		query:  url.Values{"_ids": ids},
	})
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
