// Package refreshtokens declares the server-side repository contract for
// the single-use links of a session chain.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

// Repository stores refresh tokens by hash only.
type Repository interface {
	Create(ctx context.Context, t *models.RefreshToken) error

	// FindByHash returns common.ErrNotFound when the hash is unknown.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// MarkRotated atomically consumes the token. It reports false when the
	// token was already rotated or superseded, so of two concurrent callers
	// exactly one sees true.
	MarkRotated(ctx context.Context, hash string, at time.Time) (bool, error)

	// RevokeSession supersedes every unused token of the chain.
	RevokeSession(ctx context.Context, sessionID string, at time.Time) error
}
