package tokens

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpenDatabase_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	assert.True(t, tableExists(t, db, "goose_db_version"))
	assert.True(t, tableExists(t, db, "client_state"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	pair, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pair)

	at, err := s.LastActivity(context.Background())
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestSQLiteStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(openTestDB(t))

	want := &models.TokenPair{
		AccessToken:     "access-1",
		RefreshToken:    "refresh-1",
		AccessExpiresAt: time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))

	want.AccessToken, want.RefreshToken = "access-2", "refresh-2"
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", got.RefreshToken)

	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	require.NoError(t, s.Touch(ctx, now))
	at, err := s.LastActivity(ctx)
	require.NoError(t, err)
	assert.True(t, now.Equal(at))

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	at, err = s.LastActivity(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "client.db")

	db, err := OpenDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteStore(db).Save(ctx, &models.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, db.Close())

	db, err = OpenDatabase(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewSQLiteStore(db).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r", got.RefreshToken)
}

func TestSQLiteStore_CorruptExpiry(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	require.NoError(t, s.Save(ctx, &models.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	_, err := db.Exec(`UPDATE client_state SET value = ? WHERE key = ?`, []byte("yesterday"), keyAccessExpiresAt)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.ErrorContains(t, err, "corrupt")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	pair := &models.TokenPair{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, s.Save(ctx, pair))
	pair.AccessToken = "mutated"

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken, "store keeps its own copy")

	require.NoError(t, s.Touch(ctx, time.Unix(100, 0)))
	require.NoError(t, s.Clear(ctx))
	got, _ = s.Load(ctx)
	assert.Nil(t, got)
	at, _ := s.LastActivity(ctx)
	assert.True(t, at.IsZero())
}
