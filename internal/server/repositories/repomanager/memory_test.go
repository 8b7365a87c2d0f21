package repomanager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func email(s string) *string { return &s }

func TestMemoryStore_UsersUniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.Users().Create(ctx, &models.User{Email: email("a@b.c"), Role: identity.RoleUser})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = s.Users().Create(ctx, &models.User{Email: email("a@b.c")})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	// accounts without email never collide
	_, err = s.Users().Create(ctx, &models.User{})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, &models.User{})
	require.NoError(t, err)

	got, err := s.Users().GetByEmail(ctx, " A@B.C ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.Users().Create(ctx, &models.User{Email: email("a@b.c")})
	require.NoError(t, err)

	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.EmailVerified = true

	again, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, again.EmailVerified)
}

func TestMemoryStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.WithTx(ctx, func(ctx context.Context, tx Store) error {
		require.NoError(t, tx.Sessions().Create(ctx, &models.Session{ID: "s1", UserID: "u1"}))
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = s.Sessions().Get(ctx, "s1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.WithTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.WithTx(ctx, func(ctx context.Context, tx Store) error {
			return tx.Sessions().Create(ctx, &models.Session{ID: "s1", UserID: "u1"})
		})
	})
	require.NoError(t, err)

	got, err := s.Sessions().Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestMemoryStore_MarkRotatedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.RefreshTokens().Create(ctx, &models.RefreshToken{TokenHash: "h", SessionID: "s1"}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RefreshTokens().MarkRotated(ctx, "h", time.Now())
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_RevokeSessionSkipsRotated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rt := s.RefreshTokens()
	require.NoError(t, rt.Create(ctx, &models.RefreshToken{TokenHash: "old", SessionID: "s1"}))
	require.NoError(t, rt.Create(ctx, &models.RefreshToken{TokenHash: "new", SessionID: "s1"}))

	ok, err := rt.MarkRotated(ctx, "old", time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, rt.RevokeSession(ctx, "s1", time.Now()))

	old, _ := rt.FindByHash(ctx, "old")
	assert.NotNil(t, old.RotatedAt)
	assert.Nil(t, old.RevokedAt)

	cur, _ := rt.FindByHash(ctx, "new")
	assert.NotNil(t, cur.RevokedAt)
}

func TestMemoryStore_LoginAttempts(t *testing.T) {
	ctx := context.Background()
	la := NewMemoryStore().LoginAttempts()

	for i := 1; i <= 3; i++ {
		n, err := la.RecordFailure(ctx, "k", time.Now())
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	until := time.Now().Add(time.Minute)
	require.NoError(t, la.Lock(ctx, "k", until))

	a, err := la.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, a.LockedAt(time.Now()))

	require.NoError(t, la.Reset(ctx, "k"))
	_, err = la.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_NarrowUserWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.Users().Create(ctx, &models.User{Email: email("a@b.c"), PendingEmail: email("n@b.c"), PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, s.Users().SetPassword(ctx, u.ID, "new"))
	secret := []byte{1, 2, 3}
	require.NoError(t, s.Users().SetTwoFactor(ctx, u.ID, true, secret))
	secret[0] = 9

	got, err := s.Users().GetByIDForUpdate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.True(t, got.TwoFactorEnabled)
	assert.Equal(t, []byte{1, 2, 3}, got.TOTPSecret)
	require.NotNil(t, got.PendingEmail)
	assert.Equal(t, "n@b.c", *got.PendingEmail)

	require.NoError(t, s.Users().SetTwoFactor(ctx, u.ID, false, nil))
	got, err = s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.TwoFactorEnabled)
	assert.Nil(t, got.TOTPSecret)

	assert.ErrorIs(t, s.Users().SetPassword(ctx, "ghost", "x"), common.ErrNotFound)
	assert.ErrorIs(t, s.Users().SetTwoFactor(ctx, "ghost", false, nil), common.ErrNotFound)
}

func TestMemoryStore_TicketAttemptBudget(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Tickets().Create(ctx, &models.Ticket{ID: "t1", TicketHash: "h1", MaxAttempts: 2}))

	const n = 6
	var claimed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.Tickets().ClaimAttempt(ctx, "t1")
			assert.NoError(t, err)
			if ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 2, claimed.Load())

	_, ok, err := s.Tickets().ClaimAttempt(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Tickets().Create(ctx, &models.Ticket{ID: "t2", TicketHash: "h2", MaxAttempts: 3}))
	consumed, err := s.Tickets().Consume(ctx, "t2", time.Now())
	require.NoError(t, err)
	require.True(t, consumed)
	_, ok, err = s.Tickets().ClaimAttempt(ctx, "t2")
	require.NoError(t, err)
	assert.False(t, ok)
}
