package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
)

// Refresh rotates a refresh token. Presenting an already rotated token
// revokes its session chain and yields common.ErrSessionExpired wrapping
// common.ErrTokenReused.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*tokens.TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrTokenInvalid
	}

	pair, err := s.issuer.Rotate(ctx, refreshToken)
	if errors.Is(err, common.ErrTokenReused) {
		return nil, fmt.Errorf("%w: %w", common.ErrSessionExpired, common.ErrTokenReused)
	}
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}
	return pair, nil
}

// Logout revokes the chain of refreshToken. It succeeds for unknown, expired
// and already revoked tokens.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.fail(ctx, "logout", s.issuer.Revoke(ctx, refreshToken))
}

// Authenticate verifies an access token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*tokens.Identity, error) {
	id, err := s.issuer.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, s.fail(ctx, "authenticate", err)
	}
	return id, nil
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrTokenInvalid
	}
	if err != nil {
		return nil, s.fail(ctx, "me", err)
	}
	return user, nil
}
