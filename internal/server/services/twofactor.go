package services

import (
	"context"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/auth"
)

// SetupTOTP generates an authenticator secret. Nothing is stored until
// EnableTOTP confirms the user can produce codes from it.
func (s *AuthService) SetupTOTP(ctx context.Context, userID string) (*auth.TOTPKey, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled && len(user.TOTPSecret) > 0 {
		return nil, common.NewValidationError("authenticator already enabled")
	}

	account := user.EmailAddress()
	if account == "" {
		account = user.ID
	}
	key, err := auth.GenerateTOTP(s.policy.TOTPIssuer, account)
	if err != nil {
		return nil, s.fail(ctx, "setup totp", err)
	}
	return key, nil
}

// EnableTOTP turns on authenticator based two-factor for userID.
func (s *AuthService) EnableTOTP(ctx context.Context, userID, secret, code string) error {
	if secret == "" {
		return common.NewValidationError("secret is required")
	}
	if !common.IsNumericCode(code, common.TwoFactorCodeLength) || !auth.ValidateTOTP(code, secret, s.now()) {
		return common.ErrInvalidCode
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.Users().SetTwoFactor(ctx, user.ID, true, s.box.Seal([]byte(secret))); err != nil {
		return s.fail(ctx, "enable totp", err)
	}

	s.logger.Info(ctx, "two-factor enabled", "user_id", user.ID, "channel", "totp")
	return nil
}

// EnableEmailTwoFactor turns on emailed sign-in codes. The account needs a
// verified email; local accounts confirm with their password.
func (s *AuthService) EnableEmailTwoFactor(ctx context.Context, userID, password string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasEmail() || !user.EmailVerified {
		return common.NewValidationError("a verified email is required")
	}
	if user.AuthProvider.UsesPassword() && !auth.CheckPassword(user.PasswordHash, password) {
		return common.ErrInvalidCredentials
	}

	if err := s.store.Users().SetTwoFactor(ctx, user.ID, true, nil); err != nil {
		return s.fail(ctx, "enable email 2fa", err)
	}

	s.logger.Info(ctx, "two-factor enabled", "user_id", user.ID, "channel", "email")
	return nil
}

// DisableTwoFactor turns two-factor off. Authenticator users prove
// possession with a current code, email-code users with their password.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID, code, password string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return nil
	}

	if len(user.TOTPSecret) > 0 {
		if !common.IsNumericCode(code, common.TwoFactorCodeLength) {
			return common.ErrInvalidCode
		}
		secret, err := s.box.Open(user.TOTPSecret)
		if err != nil {
			return s.fail(ctx, "disable 2fa", err)
		}
		ok := auth.ValidateTOTP(code, string(secret), s.now())
		common.WipeByteArray(secret)
		if !ok {
			return common.ErrInvalidCode
		}
	} else if user.AuthProvider.UsesPassword() && !auth.CheckPassword(user.PasswordHash, password) {
		return common.ErrInvalidCredentials
	}

	if err := s.store.Users().SetTwoFactor(ctx, user.ID, false, nil); err != nil {
		return s.fail(ctx, "disable 2fa", err)
	}

	s.logger.Info(ctx, "two-factor disabled", "user_id", user.ID)
	return nil
}
