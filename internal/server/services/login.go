package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/auth"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
	"github.com/google/uuid"
)

const ticketTokenBytes = 32

// LoginResult is either a token pair or, for two-factor accounts, a pending
// ticket. TempToken cannot authenticate API calls.
type LoginResult struct {
	Tokens *tokens.TokenPair
	User   *models.User

	Requires2FA     bool
	TempToken       string
	Channel         models.TwoFactorChannel
	TicketExpiresAt time.Time
}

// Login checks a password. Failures count towards the lockout of the
// normalized email whether or not the account exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	key := common.NormalizeEmail(email)
	if key == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}
	now := s.now()

	if err := s.checkLockout(ctx, key, now); err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	user, err := s.store.Users().GetByEmail(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, s.fail(ctx, "login", err)
		}
		auth.CompareDummy(password)
		return nil, s.fail(ctx, "login", s.loginFailed(ctx, key, now))
	}

	if !user.AuthProvider.UsesPassword() {
		auth.CompareDummy(password)
		return nil, s.fail(ctx, "login", s.loginFailed(ctx, key, now))
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, s.fail(ctx, "login", s.loginFailed(ctx, key, now))
	}

	if err := s.store.LoginAttempts().Reset(ctx, key); err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	res, err := s.completeLogin(ctx, user)
	return res, s.fail(ctx, "login", err)
}

func (s *AuthService) checkLockout(ctx context.Context, key string, now time.Time) error {
	a, err := s.store.LoginAttempts().Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	if a.LockedAt(now) {
		return &common.AccountLockedError{Remaining: a.LockedUntil.Sub(now)}
	}
	if a.LockedUntil != nil {
		// cool-down over, start counting afresh
		return s.store.LoginAttempts().Reset(ctx, key)
	}
	return nil
}

// loginFailed always returns an error: invalid credentials, or the lockout
// this failure just triggered.
func (s *AuthService) loginFailed(ctx context.Context, key string, now time.Time) error {
	n, err := s.store.LoginAttempts().RecordFailure(ctx, key, now)
	if err != nil {
		return err
	}
	if n < s.policy.LockoutThreshold {
		return common.ErrInvalidCredentials
	}

	if err := s.store.LoginAttempts().Lock(ctx, key, now.Add(s.policy.LockoutCooldown)); err != nil {
		return err
	}
	s.logger.Warn(ctx, "account locked", "failures", n)
	return &common.AccountLockedError{Remaining: s.policy.LockoutCooldown}
}

// completeLogin either mints tokens or opens a second-factor ticket.
func (s *AuthService) completeLogin(ctx context.Context, user *models.User) (*LoginResult, error) {
	if user.TwoFactorEnabled {
		return s.startTwoFactor(ctx, user)
	}
	return s.finishLogin(ctx, user)
}

func (s *AuthService) finishLogin(ctx context.Context, user *models.User) (*LoginResult, error) {
	pair, err := s.issuer.Issue(ctx, user, "")
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	s.logger.Info(ctx, "login succeeded", "user_id", user.ID, "session_id", pair.SessionID)
	return &LoginResult{Tokens: pair, User: user}, nil
}

func (s *AuthService) startTwoFactor(ctx context.Context, user *models.User) (*LoginResult, error) {
	channel := models.ChannelEmail
	ttl := s.policy.EmailCodeTicketTTL
	if len(user.TOTPSecret) > 0 {
		channel = models.ChannelTOTP
		ttl = s.policy.TOTPTicketTTL
	}
	if channel == models.ChannelEmail && !user.HasEmail() {
		return nil, fmt.Errorf("user %s has email two-factor without an email", user.ID)
	}

	temp, err := common.MakeRandHexString(ticketTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &models.Ticket{
		ID:          uuid.NewString(),
		TicketHash:  common.HashToken(temp),
		UserID:      user.ID,
		Channel:     channel,
		MaxAttempts: s.policy.TicketMaxAttempts,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	var code string
	if channel == models.ChannelEmail {
		code, err = common.MakeRandDigits(common.TwoFactorCodeLength)
		if err != nil {
			return nil, err
		}
		t.CodeHash = ticketCodeHash(t.ID, code)
	}

	if err := s.store.Tickets().Create(ctx, t); err != nil {
		return nil, err
	}
	if channel == models.ChannelEmail {
		s.send(ctx, twoFactorCodeMessage(user.EmailAddress(), code, ttl))
	}

	s.logger.Info(ctx, "two-factor challenge issued", "user_id", user.ID, "channel", string(channel))
	return &LoginResult{
		Requires2FA:     true,
		TempToken:       temp,
		Channel:         channel,
		TicketExpiresAt: t.ExpiresAt,
	}, nil
}

// ticketCodeHash binds an emailed code to its ticket.
func ticketCodeHash(ticketID, code string) string {
	return common.HashToken(ticketID + ":" + code)
}

// Complete2FA exchanges a pending ticket and a 6-digit code for tokens.
// Wrong codes spend the ticket's own attempt budget, not the login lockout.
func (s *AuthService) Complete2FA(ctx context.Context, tempToken, code string) (*LoginResult, error) {
	if tempToken == "" {
		return nil, common.ErrTicketExpired
	}
	if !common.IsNumericCode(code, common.TwoFactorCodeLength) {
		return nil, common.ErrInvalidCode
	}

	t, err := s.store.Tickets().FindByHash(ctx, common.HashToken(tempToken))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrTicketExpired
		}
		return nil, s.fail(ctx, "complete 2fa", err)
	}

	now := s.now()
	if t.ConsumedAt != nil || !now.Before(t.ExpiresAt) || t.Attempts >= t.MaxAttempts {
		return nil, common.ErrTicketExpired
	}

	// every well-formed guess spends budget before it is evaluated
	n, claimed, err := s.store.Tickets().ClaimAttempt(ctx, t.ID)
	if err != nil {
		return nil, s.fail(ctx, "complete 2fa", err)
	}
	if !claimed {
		return nil, common.ErrTicketExpired
	}

	user, err := s.store.Users().GetByID(ctx, t.UserID)
	if err != nil {
		return nil, s.fail(ctx, "complete 2fa", err)
	}

	ok, err := s.checkTicketCode(t, user, code, now)
	if err != nil {
		return nil, s.fail(ctx, "complete 2fa", err)
	}
	if !ok {
		s.logger.Info(ctx, "two-factor code rejected", "user_id", user.ID, "attempts", n)
		return nil, common.ErrInvalidCode
	}

	consumed, err := s.store.Tickets().Consume(ctx, t.ID, now)
	if err != nil {
		return nil, s.fail(ctx, "complete 2fa", err)
	}
	if !consumed {
		return nil, common.ErrTicketExpired
	}

	res, err := s.finishLogin(ctx, user)
	return res, s.fail(ctx, "complete 2fa", err)
}

func (s *AuthService) checkTicketCode(t *models.Ticket, user *models.User, code string, now time.Time) (bool, error) {
	switch t.Channel {
	case models.ChannelTOTP:
		if len(user.TOTPSecret) == 0 {
			return false, nil
		}
		secret, err := s.box.Open(user.TOTPSecret)
		if err != nil {
			return false, fmt.Errorf("error opening totp secret: %w", err)
		}
		defer common.WipeByteArray(secret)
		return auth.ValidateTOTP(code, string(secret), now), nil
	case models.ChannelEmail:
		want := ticketCodeHash(t.ID, code)
		return subtle.ConstantTimeCompare([]byte(want), []byte(t.CodeHash)) == 1, nil
	default:
		return false, fmt.Errorf("unknown two-factor channel %q", t.Channel)
	}
}

// SocialProfile is what the OAuth collaborator learned from a provider.
// Email may be empty, Telegram never shares one.
type SocialProfile struct {
	Provider identity.AuthProvider
	Subject  string
	Email    string
}

// SocialLogin finds or creates the account behind a provider identity and
// logs it in. Two-factor is enforced as for password logins.
func (s *AuthService) SocialLogin(ctx context.Context, p SocialProfile) (*LoginResult, error) {
	if !p.Provider.IsSocial() || p.Subject == "" {
		return nil, common.NewValidationError("a social provider and subject are required")
	}

	var created bool
	var user *models.User
	err := s.store.WithTx(ctx, func(ctx context.Context, st repomanager.Store) error {
		var err error
		user, err = st.Users().GetByProvider(ctx, p.Provider, p.Subject)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		u := &models.User{
			Role:            identity.RoleUser,
			AuthProvider:    p.Provider,
			ProviderSubject: p.Subject,
		}
		if email := common.NormalizeEmail(p.Email); email != "" {
			u.Email = &email
			u.EmailVerified = p.Provider.PreVerifiesEmail()
		}

		user, err = st.Users().Create(ctx, u)
		if errors.Is(err, common.ErrAlreadyExists) {
			return common.ErrEmailInUse
		}
		created = err == nil
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "social login", err)
	}

	if created {
		s.logger.Info(ctx, "social account created", "user_id", user.ID, "provider", string(p.Provider))
		if user.HasEmail() && !user.EmailVerified {
			if _, err := s.sendVerification(ctx, user); err != nil {
				s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
			}
		}
	}

	res, err := s.completeLogin(ctx, user)
	return res, s.fail(ctx, "social login", err)
}
