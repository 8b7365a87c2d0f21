// Package cli provides the interactive cryptofolio command-line client.
//
// It wires configuration, the local token database, the HTTP API client and
// the session controller, then runs a REPL. A previous session is restored
// on start; the controller keeps it fresh in the background.
//
// Key features:
//   - register, login (with a second-factor prompt), logout
//   - email verification, email change, password reset and change
//   - two-factor setup and removal
//   - status, which shows how the route guard treats a few sample routes
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
