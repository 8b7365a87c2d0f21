package tickets

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

func (r *PostgresRepository) Create(ctx context.Context, t *models.Ticket) error {
	query :=
		`INSERT INTO twofactor_tickets (id, ticket_hash, user_id, channel, code_hash, max_attempts, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.TicketHash, t.UserID, string(t.Channel), t.CodeHash, t.MaxAttempts, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.Ticket, error) {
	query :=
		`SELECT id, ticket_hash, user_id, channel, code_hash, attempts, max_attempts, expires_at, consumed_at, created_at
		 FROM twofactor_tickets WHERE ticket_hash = $1`

	var (
		t        models.Ticket
		channel  string
		consumed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&t.ID, &t.TicketHash, &t.UserID, &channel, &t.CodeHash, &t.Attempts, &t.MaxAttempts,
		&t.ExpiresAt, &consumed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Channel = models.TwoFactorChannel(channel)
	if consumed.Valid {
		t.ConsumedAt = &consumed.Time
	}
	return &t, nil
}

func (r *PostgresRepository) ClaimAttempt(ctx context.Context, id string) (int, bool, error) {
	query :=
		`UPDATE twofactor_tickets SET attempts = attempts + 1
		 WHERE id = $1 AND attempts < max_attempts AND consumed_at IS NULL
		 RETURNING attempts`

	var attempts int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}
	return attempts, true, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE twofactor_tickets SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
