package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/dbx"
)

const (
	keyAccessToken     = "access_token"
	keyRefreshToken    = "refresh_token"
	keyAccessExpiresAt = "access_expires_at"
	keyLastActivity    = "last_activity"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.TokenPair, error) {
	repo := &kvRepository{db: s.db}

	access, err := repo.Get(ctx, keyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := repo.Get(ctx, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	if len(access) == 0 || len(refresh) == 0 {
		return nil, nil
	}

	pair := &models.TokenPair{AccessToken: string(access), RefreshToken: string(refresh)}

	expires, err := repo.Get(ctx, keyAccessExpiresAt)
	if err != nil {
		return nil, err
	}
	if len(expires) > 0 {
		if pair.AccessExpiresAt, err = time.Parse(time.RFC3339Nano, string(expires)); err != nil {
			return nil, fmt.Errorf("corrupt %s: %w", keyAccessExpiresAt, err)
		}
	}
	return pair, nil
}

// Save replaces the stored pair in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, pair *models.TokenPair) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := &kvRepository{db: tx}
		if err := repo.Set(ctx, keyAccessToken, []byte(pair.AccessToken)); err != nil {
			return err
		}
		if err := repo.Set(ctx, keyRefreshToken, []byte(pair.RefreshToken)); err != nil {
			return err
		}
		return repo.Set(ctx, keyAccessExpiresAt, []byte(pair.AccessExpiresAt.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *SQLiteStore) Touch(ctx context.Context, at time.Time) error {
	repo := &kvRepository{db: s.db}
	return repo.Set(ctx, keyLastActivity, []byte(at.UTC().Format(time.RFC3339Nano)))
}

// LastActivity returns the zero time when no activity was recorded.
func (s *SQLiteStore) LastActivity(ctx context.Context) (time.Time, error) {
	repo := &kvRepository{db: s.db}
	v, err := repo.Get(ctx, keyLastActivity)
	if err != nil || len(v) == 0 {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt %s: %w", keyLastActivity, err)
	}
	return t, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	repo := &kvRepository{db: s.db}
	return repo.Clear(ctx)
}
