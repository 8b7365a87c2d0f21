package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/auth"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
)

const oneTimeTokenBytes = 32

// normalizeAddress accepts a bare address only, no display name.
func normalizeAddress(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", common.NewValidationError("invalid email address")
	}
	return common.NormalizeEmail(addr.Address), nil
}

func (s *AuthService) hashNewPassword(password string) (string, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return "", common.NewValidationError(err.Error())
	}
	return auth.HashPassword(password, s.policy.BcryptCost)
}

// Register creates an unverified local account and mails the signup
// verification link.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	addr, err := normalizeAddress(email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashNewPassword(password)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	user, err := s.store.Users().Create(ctx, &models.User{
		Email:        &addr,
		PasswordHash: hash,
		Role:         identity.RoleUser,
		AuthProvider: identity.ProviderLocal,
	})
	if errors.Is(err, common.ErrAlreadyExists) {
		return nil, common.ErrEmailInUse
	}
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}
	s.logger.Info(ctx, "account registered", "user_id", user.ID)

	if _, err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// issueOneTimeToken stores a new token for purpose and returns the raw value.
// With replace set, earlier unused tokens of the same purpose stop working.
func (s *AuthService) issueOneTimeToken(ctx context.Context, st repomanager.Store, userID string,
	purpose models.TokenPurpose, email string, ttl time.Duration, replace bool) (string, error) {
	now := s.now()
	if replace {
		if err := st.OneTimeTokens().InvalidateForUser(ctx, userID, purpose, now); err != nil {
			return "", err
		}
	}

	raw, err := common.MakeRandHexString(oneTimeTokenBytes)
	if err != nil {
		return "", err
	}
	err = st.OneTimeTokens().Create(ctx, &models.OneTimeToken{
		TokenHash: common.HashToken(raw),
		UserID:    userID,
		Purpose:   purpose,
		Email:     email,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) (bool, error) {
	if !user.HasEmail() || user.EmailVerified {
		return false, nil
	}
	var raw string
	err := s.store.WithTx(ctx, func(ctx context.Context, st repomanager.Store) error {
		var err error
		raw, err = s.issueOneTimeToken(ctx, st, user.ID, models.PurposeVerifyEmail,
			user.EmailAddress(), s.policy.VerifyEmailTTL, true)
		return err
	})
	if err != nil {
		return false, err
	}
	s.send(ctx, verifyEmailMessage(user.EmailAddress(), s.link("/verify-email", raw), s.policy.VerifyEmailTTL))
	return true, nil
}

// RequestEmailVerification re-sends the signup link. It reports false when
// there is nothing to verify.
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID string) (bool, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return false, err
	}
	sent, err := s.sendVerification(ctx, user)
	if err != nil {
		return false, s.fail(ctx, "request email verification", err)
	}
	return sent, nil
}

// VerifyEmail consumes a verification or email change token. Verifying an
// address that is already verified succeeds and changes nothing.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrTokenInvalid
	}
	hash := common.HashToken(token)
	now := s.now()

	var out *models.User
	err := s.store.WithTx(ctx, func(ctx context.Context, st repomanager.Store) error {
		ot, err := st.OneTimeTokens().FindByHash(ctx, hash)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if ot.Purpose != models.PurposeVerifyEmail && ot.Purpose != models.PurposeChangeEmail {
			return common.ErrTokenInvalid
		}

		user, err := st.Users().GetByIDForUpdate(ctx, ot.UserID)
		if err != nil {
			return err
		}
		if user.EmailVerified && user.EmailAddress() == ot.Email {
			out = user
			return nil
		}
		if ot.UsedAt != nil {
			return common.ErrTokenInvalid
		}
		if !now.Before(ot.ExpiresAt) {
			return common.ErrVerificationExpired
		}

		switch ot.Purpose {
		case models.PurposeVerifyEmail:
			if user.EmailAddress() != ot.Email {
				return common.ErrTokenInvalid
			}
		case models.PurposeChangeEmail:
			if user.PendingEmail == nil || *user.PendingEmail != ot.Email {
				return common.ErrTokenInvalid
			}
			email := ot.Email
			user.Email = &email
			user.PendingEmail = nil
		}
		user.EmailVerified = true

		ok, err := st.OneTimeTokens().Consume(ctx, hash, now)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrTokenInvalid
		}

		if err := st.Users().Update(ctx, user); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return common.ErrEmailInUse
			}
			return err
		}
		out = user
		s.logger.Info(ctx, "email verified", "user_id", user.ID, "purpose", string(ot.Purpose))
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "verify email", err)
	}
	return out, nil
}

// RequestEmailChange records newEmail as pending and mails a confirmation
// link to it. The live address keeps working until the link is used.
func (s *AuthService) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	addr, err := normalizeAddress(newEmail)
	if err != nil {
		return err
	}

	var user *models.User
	var raw string
	err = s.store.WithTx(ctx, func(ctx context.Context, st repomanager.Store) error {
		var err error
		user, err = st.Users().GetByIDForUpdate(ctx, userID)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if user.EmailAddress() == addr {
			return common.NewValidationError("new email matches the current one")
		}

		other, err := st.Users().GetByEmail(ctx, addr)
		switch {
		case err == nil && other.ID != user.ID:
			return common.ErrEmailInUse
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		}

		user.PendingEmail = &addr
		if err := st.Users().Update(ctx, user); err != nil {
			return err
		}

		raw, err = s.issueOneTimeToken(ctx, st, user.ID, models.PurposeChangeEmail, addr, s.policy.ChangeEmailTTL, true)
		return err
	})
	if err != nil {
		return s.fail(ctx, "request email change", err)
	}

	s.send(ctx, changeEmailMessage(addr, s.link("/verify-email", raw), s.policy.ChangeEmailTTL))
	if user.HasEmail() {
		s.send(ctx, emailChangingMessage(user.EmailAddress()))
	}
	s.logger.Info(ctx, "email change requested", "user_id", user.ID)
	return nil
}

// RequestPasswordReset mails a reset link when a local account owns email.
// The outcome is the same whether or not it does.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	addr := common.NormalizeEmail(email)
	if addr == "" {
		return nil
	}

	user, err := s.store.Users().GetByEmail(ctx, addr)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "password reset lookup failed", "error", err)
		}
		return nil
	}
	if !user.AuthProvider.UsesPassword() {
		return nil
	}

	raw, err := s.issueOneTimeToken(ctx, s.store, user.ID, models.PurposeResetPassword, addr, s.policy.ResetPasswordTTL, false)
	if err != nil {
		s.logger.Error(ctx, "password reset token not stored", "user_id", user.ID, "error", err)
		return nil
	}
	s.send(ctx, resetPasswordMessage(addr, s.link("/reset-password", raw), s.policy.ResetPasswordTTL))
	s.logger.Info(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password from a reset link. Every session chain
// of the account is revoked, other reset links stop working and the login
// lockout is cleared.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.hashNewPassword(newPassword)
	if err != nil {
		return s.fail(ctx, "reset password", err)
	}
	if token == "" {
		return common.ErrTokenInvalid
	}
	tokenHash := common.HashToken(token)
	now := s.now()

	var userID string
	err = s.store.WithTx(ctx, func(ctx context.Context, st repomanager.Store) error {
		ot, err := st.OneTimeTokens().FindByHash(ctx, tokenHash)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if ot.Purpose != models.PurposeResetPassword || ot.UsedAt != nil {
			return common.ErrTokenInvalid
		}
		if !now.Before(ot.ExpiresAt) {
			return common.ErrVerificationExpired
		}

		ok, err := st.OneTimeTokens().Consume(ctx, tokenHash, now)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrTokenInvalid
		}

		user, err := st.Users().GetByID(ctx, ot.UserID)
		if err != nil {
			return err
		}
		if err := st.Users().SetPassword(ctx, user.ID, hash); err != nil {
			return err
		}

		if err := st.OneTimeTokens().InvalidateForUser(ctx, user.ID, models.PurposeResetPassword, now); err != nil {
			return err
		}
		if _, err := st.Sessions().RevokeAllForUser(ctx, user.ID, "", now); err != nil {
			return err
		}
		if user.HasEmail() {
			if err := st.LoginAttempts().Reset(ctx, user.EmailAddress()); err != nil {
				return err
			}
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return s.fail(ctx, "reset password", err)
	}

	s.logger.Info(ctx, "password reset", "user_id", userID)
	return nil
}

// ChangePassword replaces the password of a signed-in user. Sessions other
// than keepSessionID are revoked and outstanding reset links stop working.
func (s *AuthService) ChangePassword(ctx context.Context, userID, keepSessionID, current, next string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !user.AuthProvider.UsesPassword() {
		return common.ErrUnsupported
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return common.ErrInvalidCredentials
	}
	hash, err := s.hashNewPassword(next)
	if err != nil {
		return s.fail(ctx, "change password", err)
	}

	now := s.now()
	err = s.store.WithTx(ctx, func(ctx context.Context, st repomanager.Store) error {
		if err := st.Users().SetPassword(ctx, user.ID, hash); err != nil {
			return err
		}
		if err := st.OneTimeTokens().InvalidateForUser(ctx, user.ID, models.PurposeResetPassword, now); err != nil {
			return err
		}
		_, err := st.Sessions().RevokeAllForUser(ctx, user.ID, keepSessionID, now)
		return err
	})
	if err != nil {
		return s.fail(ctx, "change password", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}
