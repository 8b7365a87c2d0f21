package tokens

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newIssuer(t *testing.T) (*Issuer, *repomanager.MemoryStore, *models.User, *clock) {
	t.Helper()
	store := repomanager.NewMemoryStore()
	user, err := store.Users().Create(context.Background(), &models.User{Role: identity.RoleModerator})
	require.NoError(t, err)

	c := &clock{t: time.Now()}
	iss := NewIssuer(store, []byte("0123456789abcdef0123456789abcdef"), 15*time.Minute, 24*time.Hour, logging.Nop{})
	iss.SetClock(c.Now)
	return iss, store, user, c
}

func TestIssue_VerifyAccessResolvesSameUser(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)
	assert.Len(t, pair.RefreshToken, 64)
	assert.NotEmpty(t, pair.SessionID)

	id, err := iss.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, pair.SessionID, id.SessionID)
	assert.Equal(t, identity.RoleModerator, id.Role)
}

func TestIssue_StoresOnlyHash(t *testing.T) {
	ctx := context.Background()
	iss, store, user, _ := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	_, err = store.RefreshTokens().FindByHash(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.RefreshTokens().FindByHash(ctx, common.HashToken(pair.RefreshToken))
	assert.NoError(t, err)
}

func TestIssue_SupersedesPriorTokenInChain(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	first, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)
	second, err := iss.Issue(ctx, user, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	_, err = iss.Rotate(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)

	_, err = iss.Rotate(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestVerifyAccess_Expired(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	// expiry is checked against the wall clock, so mint in the past
	iss.SetClock(func() time.Time { return time.Now().Add(-16 * time.Minute) })
	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	_, err = iss.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerifyAccess_Garbage(t *testing.T) {
	iss, _, _, _ := newIssuer(t)

	_, err := iss.VerifyAccess(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestRotate_ReuseRevokesWholeChain(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	next, err := iss.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.SessionID, next.SessionID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = iss.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenReused)

	// every token of the chain is dead now
	_, err = iss.VerifyAccess(ctx, next.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	_, err = iss.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	_, err = iss.Rotate(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestRotate_ConcurrentExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, errs[k] = iss.Rotate(ctx, pair.RefreshToken)
		}(k)
	}
	wg.Wait()

	var ok, reused int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrTokenReused)
		reused++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, reused)
}

func TestRotate_ExpiredAndUnknown(t *testing.T) {
	ctx := context.Background()
	iss, _, user, c := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	_, err = iss.Rotate(ctx, "not-a-token")
	assert.ErrorIs(t, err, common.ErrTokenInvalid)

	c.Advance(25 * time.Hour)
	_, err = iss.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRotate_UsesFreshRole(t *testing.T) {
	ctx := context.Background()
	iss, store, user, _ := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	user.Role = identity.RoleAdmin
	require.NoError(t, store.Users().Update(ctx, user))

	next, err := iss.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)

	id, err := iss.VerifyAccess(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, id.Role)
}

func TestRevoke_Idempotent(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	pair, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	require.NoError(t, iss.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, iss.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, iss.Revoke(ctx, "never-issued"))

	_, err = iss.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	_, err = iss.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestRevokeUser_KeepsOneSession(t *testing.T) {
	ctx := context.Background()
	iss, _, user, _ := newIssuer(t)

	a, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)
	b, err := iss.Issue(ctx, user, "")
	require.NoError(t, err)

	require.NoError(t, iss.RevokeUser(ctx, user.ID, b.SessionID))

	_, err = iss.VerifyAccess(ctx, a.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	_, err = iss.VerifyAccess(ctx, b.AccessToken)
	assert.NoError(t, err)
}
