package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/dbx"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/migrations"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/loginattempts"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/onetimetokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/tickets"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore binds the PostgreSQL repositories to a database handle or,
// inside WithTx, to the open transaction.
type PostgresStore struct {
	db   *sql.DB
	q    dbx.DBTX
	inTx bool
}

// NewPostgresStore wraps an open pgx database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// OpenPostgres opens dsn with the pgx stdlib driver and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (s *PostgresStore) Users() users.Repository {
	return users.NewPostgresRepository(s.q)
}

func (s *PostgresStore) Sessions() sessions.Repository {
	return sessions.NewPostgresRepository(s.q)
}

func (s *PostgresStore) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(s.q)
}

func (s *PostgresStore) Tickets() tickets.Repository {
	return tickets.NewPostgresRepository(s.q)
}

func (s *PostgresStore) OneTimeTokens() onetimetokens.Repository {
	return onetimetokens.NewPostgresRepository(s.q)
}

func (s *PostgresStore) LoginAttempts() loginattempts.Repository {
	return loginattempts.NewPostgresRepository(s.q)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &PostgresStore{db: s.db, q: tx, inTx: true})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}
