// Package bsn is a client for the BrightSign BSN Cloud APIs.
//
// It covers three services that share one session:
//
//   - the BSN Cloud REST API (devices)
//   - the provisioning service (B-Deploy setups and provisioning records)
//   - remote DWS (rDWS), which relays diagnostic web server calls to a
//     single player identified by its serial number
//
// A Client owns a session.Manager that logs in lazily, selects the network
// and refreshes the token after it expires. Every method validates its
// arguments locally first; a bad argument is reported as *ValidationError
// without any network traffic.
//
// Methods return the response body as json.RawMessage. Responses without a
// body (204 No Content) are reported as {"success":true}. Non-2xx responses
// become *APIError carrying the status code and body.
//
//	client := bsn.New()
//	devices, err := client.GetDevices(ctx, "lobby")
package bsn
