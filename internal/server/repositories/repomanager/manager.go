// Package repomanager vends the credential store repositories as one unit of
// work, so services can run several repository calls in a single transaction.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/loginattempts"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/onetimetokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/tickets"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/users"
)

// Store is the credential store. Repositories returned by a Store passed to
// a WithTx callback run inside that transaction.
type Store interface {
	Users() users.Repository
	Sessions() sessions.Repository
	RefreshTokens() refreshtokens.Repository
	Tickets() tickets.Repository
	OneTimeTokens() onetimetokens.Repository
	LoginAttempts() loginattempts.Repository

	// WithTx runs fn atomically. A nested call joins the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
