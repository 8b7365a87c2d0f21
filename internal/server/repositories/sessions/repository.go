// Package sessions stores refresh-token chains.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	// Revoke marks the chain revoked. Revoking twice is not an error.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAllForUser revokes every live chain of userID except keepID
	// (pass "" to keep none) and returns how many were revoked.
	RevokeAllForUser(ctx context.Context, userID, keepID string, at time.Time) (int64, error)
}
