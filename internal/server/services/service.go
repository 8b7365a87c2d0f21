// Package services contains the server-side session manager: login with
// lockout and second factor, refresh, logout, password reset, email
// verification and email change.
//
// Every exported method returns either nil or an error from the taxonomy in
// internal/common. Storage failures are logged and reported as
// common.ErrInternal.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/cryptox"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/config"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/mailer"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
)

// Policy holds the lifetimes and limits the session manager enforces.
type Policy struct {
	LockoutThreshold int
	LockoutCooldown  time.Duration

	TOTPTicketTTL      time.Duration
	EmailCodeTicketTTL time.Duration
	TicketMaxAttempts  int
	TOTPIssuer         string

	VerifyEmailTTL   time.Duration
	ChangeEmailTTL   time.Duration
	ResetPasswordTTL time.Duration

	BcryptCost int
	PublicURL  string
	MailFrom   string
}

// PolicyFromConfig copies the relevant settings out of the server config.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		LockoutThreshold:   cfg.LockoutThreshold,
		LockoutCooldown:    cfg.LockoutCooldown,
		TOTPTicketTTL:      cfg.TOTPTicketTTL,
		EmailCodeTicketTTL: cfg.EmailCodeTicketTTL,
		TicketMaxAttempts:  cfg.TicketMaxAttempts,
		TOTPIssuer:         cfg.TOTPIssuer,
		VerifyEmailTTL:     cfg.VerifyEmailTTL,
		ChangeEmailTTL:     cfg.ChangeEmailTTL,
		ResetPasswordTTL:   cfg.ResetPasswordTTL,
		BcryptCost:         cfg.BcryptCost,
		PublicURL:          cfg.PublicURL,
		MailFrom:           cfg.MailFrom,
	}
}

// AuthService is the session manager.
type AuthService struct {
	store  repomanager.Store
	issuer *tokens.Issuer
	mailer mailer.Sender
	box    *cryptox.Box
	policy Policy
	logger logging.Logger
	now    func() time.Time
}

// NewAuthService wires the session manager. box seals TOTP secrets at rest.
func NewAuthService(store repomanager.Store, issuer *tokens.Issuer, sender mailer.Sender,
	box *cryptox.Box, policy Policy, logger logging.Logger) *AuthService {
	return &AuthService{
		store:  store,
		issuer: issuer,
		mailer: sender,
		box:    box,
		policy: policy,
		logger: logger.With("module", "auth"),
		now:    time.Now,
	}
}

// SetClock replaces the time source of the service and its issuer.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
	s.issuer.SetClock(now)
}

// Issuer exposes the token issuer for access token verification.
func (s *AuthService) Issuer() *tokens.Issuer {
	return s.issuer
}

var publicErrors = []error{
	common.ErrInvalidCredentials,
	common.ErrAccountLocked,
	common.ErrTokenExpired,
	common.ErrTokenInvalid,
	common.ErrTokenReused,
	common.ErrSessionExpired,
	common.ErrTicketExpired,
	common.ErrInvalidCode,
	common.ErrVerificationExpired,
	common.ErrEmailInUse,
	common.ErrValidation,
	common.ErrUnsupported,
}

// fail passes taxonomy errors through unchanged and hides everything else
// behind common.ErrInternal.
func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	for _, e := range publicErrors {
		if errors.Is(err, e) {
			return err
		}
	}
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrInternal
}

func (s *AuthService) send(ctx context.Context, msg mailer.Message) {
	msg.From = s.policy.MailFrom
	msg.CreatedAt = s.now()
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "email delivery failed", "kind", msg.Kind, "error", err)
	}
}
