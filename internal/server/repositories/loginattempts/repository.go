// Package loginattempts keeps the authoritative server-side lockout counters.
package loginattempts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrNotFound when key has no recorded failures.
	Get(ctx context.Context, key string) (*models.LoginAttempt, error)
	// RecordFailure atomically increments the counter and returns its new value.
	RecordFailure(ctx context.Context, key string, at time.Time) (int, error)
	// Lock starts a cool-down that ends at until.
	Lock(ctx context.Context, key string, until time.Time) error
	// Reset forgets the counter. Resetting an unknown key is not an error.
	Reset(ctx context.Context, key string) error
}
