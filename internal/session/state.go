package session

import (
	"time"

	"golang.org/x/oauth2"
)

// State is one token generation: the access token, its expiry and whether the
// configured network was selected with it. The zero value is an
// uninitialized session. State values are immutable; a login replaces the
// whole value.
type State struct {
	accessToken     string
	tokenType       string
	expiresAt       time.Time
	networkSelected bool
}

// Valid reports whether a token is present and now is strictly before its
// expiry.
func (s State) Valid(now time.Time) bool {
	return s.accessToken != "" && now.Before(s.expiresAt)
}

// Selected reports whether the network was selected for this token.
func (s State) Selected() bool {
	return s.networkSelected
}

// Empty reports whether no token has been issued yet.
func (s State) Empty() bool {
	return s.accessToken == ""
}

// AccessToken returns the raw access token.
func (s State) AccessToken() string {
	return s.accessToken
}

// ExpiresAt returns the instant the token stops being used.
func (s State) ExpiresAt() time.Time {
	return s.expiresAt
}

// token converts the state for use with oauth2.Token.SetAuthHeader.
func (s State) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: s.accessToken,
		TokenType:   s.tokenType,
		Expiry:      s.expiresAt,
	}
}
