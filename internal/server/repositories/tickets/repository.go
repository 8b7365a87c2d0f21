// Package tickets stores pending two-factor tickets.
package tickets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Ticket) error
	// FindByHash returns common.ErrNotFound for unknown tickets.
	FindByHash(ctx context.Context, hash string) (*models.Ticket, error)
	// ClaimAttempt spends one attempt of an unconsumed ticket and returns
	// the new count. It reports false once the budget is gone.
	ClaimAttempt(ctx context.Context, id string) (int, bool, error)
	// Consume marks the ticket used. It reports false if it already was.
	Consume(ctx context.Context, id string, at time.Time) (bool, error)
}
