// Package onetimetokens stores single-use email verification, email change
// and password reset tokens.
package onetimetokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.OneTimeToken) error
	// FindByHash returns common.ErrNotFound for unknown tokens.
	FindByHash(ctx context.Context, hash string) (*models.OneTimeToken, error)
	// Consume marks the token used. It reports false if it already was.
	Consume(ctx context.Context, hash string, at time.Time) (bool, error)
	// InvalidateForUser marks every unused token of the purpose as used.
	InvalidateForUser(ctx context.Context, userID string, purpose models.TokenPurpose, at time.Time) error
}
