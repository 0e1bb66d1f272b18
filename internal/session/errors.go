package session

import "fmt"

// Error codes carried by Error.
const (
	CodeConfiguration    = "configuration_error"
	CodeAuthentication   = "authentication_failed"
	CodeNetworkSelection = "network_selection_failed"
	CodeHTTPStatus       = "http_error"
	CodeInvalidResponse  = "invalid_response"
)

// Error is the structured failure returned for configuration, login,
// network selection and API responses. Endpoint helpers reuse it for non-2xx
// responses so callers handle a single shape.
type Error struct {
	// Code is one of the Code* constants.
	Code string `json:"error"`

	// StatusCode is the HTTP status of the failing response, or 0 when no
	// response was received.
	StatusCode int `json:"status,omitempty"`

	// Details is the response body or a description of the failure.
	Details string `json:"details"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}
