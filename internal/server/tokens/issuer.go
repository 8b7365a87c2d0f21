// Package tokens mints, verifies, rotates and revokes access/refresh pairs.
//
// Each pair belongs to a session chain. The access token is a JWT naming the
// chain; the refresh token is an opaque single-use string stored by hash.
// Exchanging a refresh token a second time is treated as theft: the whole
// chain is revoked and every token minted in it stops working.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/auth"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// TokenPair is what a successful login or refresh hands to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// Identity is the caller behind a verified access token.
type Identity struct {
	UserID    string
	SessionID string
	Role      identity.Role
	ExpiresAt time.Time
}

type Issuer struct {
	store      repomanager.Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     logging.Logger
	now        func() time.Time
}

func NewIssuer(store repomanager.Store, secret []byte, accessTTL, refreshTTL time.Duration, logger logging.Logger) *Issuer {
	return &Issuer{
		store:      store,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger.With("module", "tokens"),
		now:        time.Now,
	}
}

// SetClock replaces the time source. Tests use it to step past expiries.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue mints a pair for user. An empty sessionID starts a new chain;
// otherwise unused refresh tokens of that chain are superseded first.
func (i *Issuer) Issue(ctx context.Context, user *models.User, sessionID string) (*TokenPair, error) {
	var pair *TokenPair
	err := i.store.WithTx(ctx, func(ctx context.Context, s repomanager.Store) error {
		var err error
		pair, err = i.issue(ctx, s, user, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (i *Issuer) issue(ctx context.Context, s repomanager.Store, user *models.User, sessionID string) (*TokenPair, error) {
	now := i.now()

	if sessionID == "" {
		sessionID = uuid.NewString()
		if err := s.Sessions().Create(ctx, &models.Session{ID: sessionID, UserID: user.ID, CreatedAt: now}); err != nil {
			return nil, fmt.Errorf("error creating session: %w", err)
		}
	} else if err := s.RefreshTokens().RevokeSession(ctx, sessionID, now); err != nil {
		return nil, fmt.Errorf("error superseding refresh tokens: %w", err)
	}

	refresh, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	rt := &models.RefreshToken{
		TokenHash: common.HashToken(refresh),
		SessionID: sessionID,
		UserID:    user.ID,
		ExpiresAt: now.Add(i.refreshTTL),
		CreatedAt: now,
	}
	if err := s.RefreshTokens().Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	accessExp := now.Add(i.accessTTL)
	access, err := auth.GenerateToken(user.ID, sessionID, user.Role, i.secret, now, accessExp)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rt.ExpiresAt,
		SessionID:        sessionID,
	}, nil
}

// VerifyAccess checks signature and expiry, and that the chain is still live.
func (i *Issuer) VerifyAccess(ctx context.Context, token string) (*Identity, error) {
	claims, err := auth.ParseToken(token, i.secret)
	if err != nil {
		return nil, err
	}

	sess, err := i.store.Sessions().Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, err
	}
	if sess.Revoked() || sess.UserID != claims.Subject {
		return nil, common.ErrTokenInvalid
	}

	return &Identity{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Rotate exchanges a refresh token for a new pair in the same chain.
// A token that was already exchanged yields common.ErrTokenReused and the
// chain is revoked before returning.
func (i *Issuer) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := common.HashToken(refreshToken)

	rt, err := i.store.RefreshTokens().FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, err
	}

	if rt.RotatedAt != nil {
		return nil, i.reused(ctx, rt)
	}
	if rt.RevokedAt != nil {
		return nil, common.ErrTokenInvalid
	}

	now := i.now()
	if !now.Before(rt.ExpiresAt) {
		return nil, common.ErrTokenExpired
	}

	var pair *TokenPair
	err = i.store.WithTx(ctx, func(ctx context.Context, s repomanager.Store) error {
		ok, err := s.RefreshTokens().MarkRotated(ctx, hash, now)
		if err != nil {
			return err
		}
		if !ok {
			// lost the race: rotated by a sibling, or superseded by a revoke
			cur, err := s.RefreshTokens().FindByHash(ctx, hash)
			if err != nil {
				return err
			}
			if cur.RotatedAt != nil {
				return common.ErrTokenReused
			}
			return common.ErrTokenInvalid
		}

		sess, err := s.Sessions().Get(ctx, rt.SessionID)
		if err != nil {
			return err
		}
		if sess.Revoked() {
			return common.ErrTokenInvalid
		}

		// role comes from the stored account, never from the old claims
		user, err := s.Users().GetByID(ctx, rt.UserID)
		if err != nil {
			return err
		}

		pair, err = i.issue(ctx, s, user, rt.SessionID)
		return err
	})
	if errors.Is(err, common.ErrTokenReused) {
		return nil, i.reused(ctx, rt)
	}
	if err != nil {
		return nil, err
	}

	return pair, nil
}

func (i *Issuer) reused(ctx context.Context, rt *models.RefreshToken) error {
	i.logger.Warn(ctx, "refresh token reuse detected, revoking session",
		"user_id", rt.UserID, "session_id", rt.SessionID)

	if err := i.revokeSession(ctx, rt.SessionID); err != nil {
		return err
	}
	return common.ErrTokenReused
}

// Revoke ends the chain of refreshToken. Unknown or already revoked tokens
// are not an error.
func (i *Issuer) Revoke(ctx context.Context, refreshToken string) error {
	rt, err := i.store.RefreshTokens().FindByHash(ctx, common.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	return i.revokeSession(ctx, rt.SessionID)
}

// RevokeSession ends a chain by id.
func (i *Issuer) RevokeSession(ctx context.Context, sessionID string) error {
	return i.revokeSession(ctx, sessionID)
}

func (i *Issuer) revokeSession(ctx context.Context, sessionID string) error {
	now := i.now()
	return i.store.WithTx(ctx, func(ctx context.Context, s repomanager.Store) error {
		if err := s.Sessions().Revoke(ctx, sessionID, now); err != nil {
			return err
		}
		return s.RefreshTokens().RevokeSession(ctx, sessionID, now)
	})
}

// RevokeUser ends every chain of userID except keepSessionID ("" keeps none).
func (i *Issuer) RevokeUser(ctx context.Context, userID, keepSessionID string) error {
	n, err := i.store.Sessions().RevokeAllForUser(ctx, userID, keepSessionID, i.now())
	if err != nil {
		return err
	}
	i.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return nil
}
