package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
)

type Store interface {
	Load(ctx context.Context) (*models.TokenPair, error)
	Save(ctx context.Context, pair *models.TokenPair) error
	Touch(ctx context.Context, at time.Time) error
	LastActivity(ctx context.Context) (time.Time, error)
	Clear(ctx context.Context) error
}
