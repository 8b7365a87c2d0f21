package loginattempts

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

func (r *PostgresRepository) Get(ctx context.Context, key string) (*models.LoginAttempt, error) {
	query := `SELECT key, failures, locked_until, updated_at FROM login_attempts WHERE key = $1`

	var (
		a      models.LoginAttempt
		locked sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&a.Key, &a.Failures, &locked, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if locked.Valid {
		a.LockedUntil = &locked.Time
	}
	return &a, nil
}

func (r *PostgresRepository) RecordFailure(ctx context.Context, key string, at time.Time) (int, error) {
	query :=
		`INSERT INTO login_attempts (key, failures, updated_at)
		 VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET failures = login_attempts.failures + 1, updated_at = $2
		 RETURNING failures`

	var failures int
	if err := r.db.QueryRowContext(ctx, query, key, at).Scan(&failures); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return failures, nil
}

func (r *PostgresRepository) Lock(ctx context.Context, key string, until time.Time) error {
	query := `UPDATE login_attempts SET locked_until = $2 WHERE key = $1`

	if _, err := r.db.ExecContext(ctx, query, key, until); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Reset(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE key = $1`, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
