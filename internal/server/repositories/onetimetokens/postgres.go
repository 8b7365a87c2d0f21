package onetimetokens

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

func (r *PostgresRepository) Create(ctx context.Context, t *models.OneTimeToken) error {
	query :=
		`INSERT INTO one_time_tokens (token_hash, user_id, purpose, email, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		t.TokenHash, t.UserID, string(t.Purpose), t.Email, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.OneTimeToken, error) {
	query :=
		`SELECT token_hash, user_id, purpose, email, expires_at, used_at, created_at
		 FROM one_time_tokens WHERE token_hash = $1`

	var (
		t       models.OneTimeToken
		purpose string
		used    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&t.TokenHash, &t.UserID, &purpose, &t.Email, &t.ExpiresAt, &used, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Purpose = models.TokenPurpose(purpose)
	if used.Valid {
		t.UsedAt = &used.Time
	}
	return &t, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, hash string, at time.Time) (bool, error) {
	query := `UPDATE one_time_tokens SET used_at = $2 WHERE token_hash = $1 AND used_at IS NULL`

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

func (r *PostgresRepository) InvalidateForUser(ctx context.Context, userID string, purpose models.TokenPurpose, at time.Time) error {
	query :=
		`UPDATE one_time_tokens SET used_at = $3
		 WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, userID, string(purpose), at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
