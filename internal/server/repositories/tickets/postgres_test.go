package tickets

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(5 * time.Minute)
	now := time.Now()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+twofactor_tickets\b.*VALUES\s*\(\$1,.*\$8\)$`).
		WithArgs("t1", "h1", "u1", "email", "ch", 3, exp, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Ticket{
		ID: "t1", TicketHash: "h1", UserID: "u1", Channel: models.ChannelEmail,
		CodeHash: "ch", MaxAttempts: 3, ExpiresAt: exp, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByHash(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*ticket_hash,.*FROM\s+twofactor_tickets\s+WHERE\s+ticket_hash\s*=\s*\$1$`
	cols := []string{"id", "ticket_hash", "user_id", "channel", "code_hash", "attempts", "max_attempts", "expires_at", "consumed_at", "created_at"}

	t.Run("found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectQuery(q).WithArgs("h1").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("t1", "h1", "u1", "totp", "", 1, 3, time.Now(), nil, time.Now()))

		got, err := repo.FindByHash(context.Background(), "h1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Channel != models.ChannelTOTP || got.Attempts != 1 || got.ConsumedAt != nil {
			t.Fatalf("unexpected ticket: %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectQuery(q).WithArgs("x").WillReturnError(sql.ErrNoRows)

		if _, err := repo.FindByHash(context.Background(), "x"); !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectQuery(q).WithArgs("x").WillReturnError(errors.New("db err"))

		_, err := repo.FindByHash(context.Background(), "x")
		if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
			t.Fatalf("expected wrapped db error, got %v", err)
		}
	})
}

func TestClaimAttempt(t *testing.T) {
	q := `(?s)^UPDATE\s+twofactor_tickets\s+SET\s+attempts\s*=\s*attempts\s*\+\s*1\s+WHERE\s+id\s*=\s*\$1\s+AND\s+attempts\s*<\s*max_attempts\s+AND\s+consumed_at\s+IS\s+NULL\s+RETURNING\s+attempts$`

	t.Run("claimed", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectQuery(q).WithArgs("t1").
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))

		n, ok, err := repo.ClaimAttempt(context.Background(), "t1")
		if err != nil || !ok || n != 2 {
			t.Fatalf("got (%d, %v, %v), want (2, true, nil)", n, ok, err)
		}
	})

	t.Run("budget spent", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectQuery(q).WithArgs("t1").WillReturnError(sql.ErrNoRows)

		n, ok, err := repo.ClaimAttempt(context.Background(), "t1")
		if err != nil || ok || n != 0 {
			t.Fatalf("got (%d, %v, %v), want (0, false, nil)", n, ok, err)
		}
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectQuery(q).WithArgs("t1").WillReturnError(errors.New("boom"))

		_, ok, err := repo.ClaimAttempt(context.Background(), "t1")
		if err == nil || ok {
			t.Fatalf("got (%v, %v), want error", ok, err)
		}
	})
}

func TestConsume(t *testing.T) {
	q := `(?s)^UPDATE\s+twofactor_tickets\s+SET\s+consumed_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+consumed_at\s+IS\s+NULL$`
	at := time.Now()

	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	mock.ExpectExec(q).WithArgs("t1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("t1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Consume(context.Background(), "t1", at)
	if err != nil || !ok {
		t.Fatalf("first consume: got (%v, %v)", ok, err)
	}
	ok, err = repo.Consume(context.Background(), "t1", at)
	if err != nil || ok {
		t.Fatalf("second consume: got (%v, %v)", ok, err)
	}
}
