package refreshtokens

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

const (
	insertQ = `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)$`
	findQ   = `(?s)^SELECT\s+token_hash,.*FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`
	rotateQ = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+rotated_at\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+rotated_at\s+IS\s+NULL\s+AND\s+revoked_at\s+IS\s+NULL$`
	revokeQ = `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+session_id\s*=\s*\$1`
)

var findCols = []string{"token_hash", "session_id", "user_id", "expires_at", "created_at", "rotated_at", "revoked_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	now := time.Now()
	mock.ExpectExec(insertQ).
		WithArgs("h1", "s1", "u1", exp, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.RefreshToken{
		TokenHash: "h1", SessionID: "s1", UserID: "u1", ExpiresAt: exp, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.RefreshToken{TokenHash: "h1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(10 * time.Minute)
	rotated := time.Now()
	mock.ExpectQuery(findQ).WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(findCols).AddRow("h1", "s1", "u1", exp, time.Now(), rotated, nil))

	got, err := repo.FindByHash(context.Background(), "h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SessionID != "s1" || !got.ExpiresAt.Equal(exp) || got.RotatedAt == nil || got.RevokedAt != nil {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFindByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestFindByHash_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).WithArgs("h1").WillReturnError(errors.New("db err"))

	_, err := repo.FindByHash(context.Background(), "h1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMarkRotated(t *testing.T) {
	at := time.Now()

	t.Run("first use wins", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(rotateQ).WithArgs("h1", at).WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.MarkRotated(context.Background(), "h1", at)
		if err != nil || !ok {
			t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
		}
	})

	t.Run("already rotated", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(rotateQ).WithArgs("h1", at).WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.MarkRotated(context.Background(), "h1", at)
		if err != nil || ok {
			t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()
		mock.ExpectExec(rotateQ).WillReturnError(errors.New("db err"))

		if _, err := repo.MarkRotated(context.Background(), "h1", at); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRevokeSession(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(revokeQ).WithArgs("s1", at).WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.RevokeSession(context.Background(), "s1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
