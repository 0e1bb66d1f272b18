// Package session keeps a BSN Cloud API session alive.
//
// BSN Cloud issues short-lived bearer tokens through the OAuth2 client
// credentials grant. Each new token must also be bound to a network (the
// tenant) through PUT /Self/Session/Network before other calls are accepted.
// Manager hides both steps behind a lazy guard:
//
//	src := credentials.NewSource()
//	m := session.New(src)
//	resp, err := m.Do(req) // logs in and selects the network on first use
//
// # Lifecycle
//
// A Manager starts uninitialized. The first EnsureAuthenticated, Login or Do
// resolves credentials, exchanges them for a token and selects the network.
// Only when both succeed is the new State published, so a failed attempt
// leaves the previous State untouched. While State.Valid and State.Selected
// hold, EnsureAuthenticated returns without any I/O. Once the token expires
// the next call repeats the whole sequence.
//
// # Concurrency
//
// Logins run through a singleflight group. Any number of goroutines that find
// the token stale cause exactly one token request and one network selection,
// and all of them receive its result.
//
// # Errors
//
// Failures are returned as *Error with a Code describing the failing step.
// Transport faults from Do itself are returned unwrapped from net/http.
package session
