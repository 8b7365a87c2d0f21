// Package servertest runs the real auth HTTP stack on an httptest server
// backed by the in-memory store, for client-side tests.
package servertest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/cryptox"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/httpapi"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/mailer"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/services"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/tokens"
	"golang.org/x/crypto/bcrypt"
)

var linkTokenRe = regexp.MustCompile(`token=([0-9a-f]{64})`)

// Outbox records every message the service sends.
type Outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (o *Outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

// LastLinkToken returns the token of the newest link mailed to address.
func (o *Outbox) LastLinkToken(t testing.TB, address string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To != address {
			continue
		}
		if m := linkTokenRe.FindStringSubmatch(o.msgs[i].Body); len(m) == 2 {
			return m[1]
		}
	}
	t.Fatalf("no link mailed to %s", address)
	return ""
}

// Server is a running auth API.
type Server struct {
	URL     string
	Client  *http.Client
	Service *services.AuthService
	Outbox  *Outbox

	// Rotations counts POST /auth/refresh calls.
	Rotations atomic.Int32

	clockMu sync.Mutex
	offset  time.Duration
}

// New starts a server that is closed with the test. AccessTTL is 15 minutes
// and refresh TTL a day.
func New(t testing.TB) *Server {
	t.Helper()

	store := repomanager.NewMemoryStore()
	box, err := cryptox.NewBox(cryptox.DeriveKey([]byte("servertest-secret"), []byte("totp")))
	if err != nil {
		t.Fatalf("box: %v", err)
	}

	iss := tokens.NewIssuer(store, []byte("0123456789abcdef0123456789abcdef"), 15*time.Minute, 24*time.Hour, logging.Nop{})
	s := &Server{Outbox: &Outbox{}}
	s.Service = services.NewAuthService(store, iss, s.Outbox, box, services.Policy{
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
		PublicURL:          "https://app.example.com",
	}, logging.Nop{})
	s.Service.SetClock(s.now)

	cookies := httpapi.NewRefreshCookie(bytes.Repeat([]byte("h"), 32), bytes.Repeat([]byte("b"), 32), false, 24*time.Hour)
	api := httpapi.NewServer(":0", logging.Nop{}, s.Service, cookies, httpapi.Options{})

	handler := api.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/auth/refresh" {
			s.Rotations.Add(1)
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	s.URL = srv.URL
	s.Client = srv.Client()
	return s
}

func (s *Server) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	return time.Now().Add(s.offset)
}

// ShiftClock moves the service clock. A negative shift makes tokens issued
// afterwards expire early in real time.
func (s *Server) ShiftClock(d time.Duration) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.offset = d
}
