// Package users declares the account repository contract and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID. A taken email yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate is GetByID holding a row lock until the surrounding
	// transaction ends. Use it before Update.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	// GetByEmail matches the normalized live email only, never a pending one.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByProvider(ctx context.Context, provider identity.AuthProvider, subject string) (*models.User, error)
	// Update writes every mutable column of user. A taken email yields
	// common.ErrAlreadyExists.
	Update(ctx context.Context, user *models.User) error
	// SetPassword and SetTwoFactor write only their own columns, so they
	// cannot undo a concurrent email change.
	SetPassword(ctx context.Context, id, hash string) error
	SetTwoFactor(ctx context.Context, id string, enabled bool, totpSecret []byte) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
