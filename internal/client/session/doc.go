// Package session is the client side of authentication: it holds the token
// pair, attaches it to API calls and keeps it fresh.
//
// A Controller owns one StateStore. Every sign-in transition
// (restoring, anonymous, authenticating, pending second factor,
// authenticated) is published there, and UI code subscribes instead of
// polling globals.
//
// Refresh tokens are single use, so the controller never rotates twice for
// the same pair: a 401 from any number of concurrent requests leads to one
// shared refresh call, and each request is retried once with the new access
// token. A second 401 ends the session locally. A timer refreshes ahead of
// access-token expiry so the common path never sees a 401.
package session
