package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/cryptox"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/auth"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/mailer"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery"

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

type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

func (o *outbox) last(t *testing.T) mailer.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs, "no email sent")
	return o.msgs[len(o.msgs)-1]
}

var (
	linkTokenRe = regexp.MustCompile(`token=([0-9a-f]{64})`)
	codeRe      = regexp.MustCompile(`code is (\d{6})`)
)

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	m := linkTokenRe.FindStringSubmatch(o.last(t).Body)
	require.Len(t, m, 2, "no token link in email")
	return m[1]
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	m := codeRe.FindStringSubmatch(o.last(t).Body)
	require.Len(t, m, 2, "no code in email")
	return m[1]
}

type fixture struct {
	svc   *AuthService
	store *repomanager.MemoryStore
	mail  *outbox
	clock *clock
}

func testPolicy() Policy {
	return Policy{
		LockoutThreshold:   5,
		LockoutCooldown:    5 * time.Minute,
		TOTPTicketTTL:      5 * time.Minute,
		EmailCodeTicketTTL: 3 * time.Minute,
		TicketMaxAttempts:  3,
		TOTPIssuer:         "Cryptofolio",
		VerifyEmailTTL:     72 * time.Hour,
		ChangeEmailTTL:     24 * time.Hour,
		ResetPasswordTTL:   time.Hour,
		BcryptCost:         bcrypt.MinCost,
		PublicURL:          "https://app.example.com/",
		MailFrom:           "no-reply@example.com",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(s repomanager.Store) repomanager.Store { return s })
}

// newFixtureWith lets a test put a wrapper between the service and the store.
func newFixtureWith(t *testing.T, wrap func(repomanager.Store) repomanager.Store) *fixture {
	t.Helper()
	store := repomanager.NewMemoryStore()
	box, err := cryptox.NewBox(cryptox.DeriveKey([]byte("test-secret"), []byte("totp")))
	require.NoError(t, err)

	iss := tokens.NewIssuer(store, []byte("0123456789abcdef0123456789abcdef"), 15*time.Minute, 30*24*time.Hour, logging.Nop{})
	mail := &outbox{}
	svc := NewAuthService(wrap(store), iss, mail, box, testPolicy(), logging.Nop{})

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.SetClock(c.Now)
	return &fixture{svc: svc, store: store, mail: mail, clock: c}
}

// addUser stores a local account with testPassword.
func (f *fixture) addUser(t *testing.T, email string, verified bool) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	u, err := f.store.Users().Create(context.Background(), &models.User{
		Email:         &email,
		PasswordHash:  hash,
		Role:          identity.RoleUser,
		EmailVerified: verified,
		AuthProvider:  identity.ProviderLocal,
	})
	require.NoError(t, err)
	return u
}

// enableTOTP turns on authenticator 2FA and returns the raw secret.
func (f *fixture) enableTOTP(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()
	key, err := f.svc.SetupTOTP(ctx, userID)
	require.NoError(t, err)
	code, err := auth.TOTPCode(key.Secret, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableTOTP(ctx, userID, key.Secret, code))
	return key.Secret
}

func (f *fixture) totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := auth.TOTPCode(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

// otherCode returns a well-formed code different from code.
func otherCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
