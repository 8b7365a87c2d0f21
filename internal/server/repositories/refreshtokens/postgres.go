package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/dbx"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query :=
		`INSERT INTO refresh_tokens (token_hash, session_id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, t.TokenHash, t.SessionID, t.UserID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query :=
		`SELECT token_hash, session_id, user_id, expires_at, created_at, rotated_at, revoked_at
		 FROM refresh_tokens WHERE token_hash = $1`

	var (
		t                models.RefreshToken
		rotated, revoked sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&t.TokenHash, &t.SessionID, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &rotated, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if rotated.Valid {
		t.RotatedAt = &rotated.Time
	}
	if revoked.Valid {
		t.RevokedAt = &revoked.Time
	}
	return &t, nil
}

func (r *PostgresRepository) MarkRotated(ctx context.Context, hash string, at time.Time) (bool, error) {
	query :=
		`UPDATE refresh_tokens SET rotated_at = $2
		 WHERE token_hash = $1 AND rotated_at IS NULL AND revoked_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, hash, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	query :=
		`UPDATE refresh_tokens SET revoked_at = $2
		 WHERE session_id = $1 AND rotated_at IS NULL AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, sessionID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
