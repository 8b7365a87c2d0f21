// Package common contains shared constants, sentinel errors and small helpers
// used by both the auth server and its clients.
package common

import "time"

const (
	// AuthorizationHeaderName carries the bearer access token on API requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	// RefreshCookieName is the httpOnly cookie holding the refresh token.
	RefreshCookieName = "cf_refresh"

	// TwoFactorCodeLength is the number of digits in a second-factor code.
	TwoFactorCodeLength = 6

	// DefaultRequestTimeout bounds every outbound network call.
	DefaultRequestTimeout = 30 * time.Second
)
