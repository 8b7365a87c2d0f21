// Package client talks to the cryptofolio auth HTTP API.
//
// # Overview
//
// The package provides:
//  1. A transport contract (see the Client interface) covering the
//     unauthenticated auth endpoints plus a generic Do for everything else.
//  2. A concrete net/http implementation (see HTTPClient) that bounds every
//     call with a timeout, attaches bearer tokens when asked to, and maps
//     error responses back to the sentinels in internal/common.
//
// # Error Handling
//
// Server failures come back as *APIError, which unwraps to the matching
// sentinel so callers use errors.Is (common.ErrTokenReused, ...) or
// errors.As (*common.AccountLockedError for the remaining cool-down).
// Transport failures wrap common.ErrRequestTimeout or common.ErrNetwork.
// Nothing is retried here; retry policy belongs to the caller.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
