package repomanager

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/identity"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/models"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/loginattempts"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/onetimetokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/tickets"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/repositories/users"
	"github.com/google/uuid"
)

type memData struct {
	users    map[string]*models.User
	sessions map[string]*models.Session
	refresh  map[string]*models.RefreshToken
	tickets  map[string]*models.Ticket
	tokens   map[string]*models.OneTimeToken
	attempts map[string]*models.LoginAttempt
}

func newMemData() *memData {
	return &memData{
		users:    map[string]*models.User{},
		sessions: map[string]*models.Session{},
		refresh:  map[string]*models.RefreshToken{},
		tickets:  map[string]*models.Ticket{},
		tokens:   map[string]*models.OneTimeToken{},
		attempts: map[string]*models.LoginAttempt{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v.Clone()
	}
	for k, v := range d.sessions {
		s := *v
		c.sessions[k] = &s
	}
	for k, v := range d.refresh {
		t := *v
		c.refresh[k] = &t
	}
	for k, v := range d.tickets {
		t := *v
		c.tickets[k] = &t
	}
	for k, v := range d.tokens {
		t := *v
		c.tokens[k] = &t
	}
	for k, v := range d.attempts {
		a := *v
		c.attempts[k] = &a
	}
	return c
}

// MemoryStore is a process-local Store. A transaction holds the store lock
// for its whole duration and restores a snapshot when it fails.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, data: newMemData()}
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			*s.data = *snapshot
			panic(p)
		}
		if err != nil {
			*s.data = *snapshot
		}
	}()

	return fn(ctx, &MemoryStore{mu: s.mu, data: s.data, inTx: true})
}

func (s *MemoryStore) Users() users.Repository                 { return memUsers{s} }
func (s *MemoryStore) Sessions() sessions.Repository           { return memSessions{s} }
func (s *MemoryStore) RefreshTokens() refreshtokens.Repository { return memRefresh{s} }
func (s *MemoryStore) Tickets() tickets.Repository             { return memTickets{s} }
func (s *MemoryStore) OneTimeTokens() onetimetokens.Repository { return memTokens{s} }
func (s *MemoryStore) LoginAttempts() loginattempts.Repository { return memAttempts{s} }

type memUsers struct{ s *MemoryStore }

func (r memUsers) emailTaken(email, exceptID string) bool {
	if email == "" {
		return false
	}
	for id, u := range r.s.data.users {
		if id != exceptID && u.EmailAddress() == email {
			return true
		}
	}
	return false
}

func (r memUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	defer r.s.lock()()

	if r.emailTaken(user.EmailAddress(), "") {
		return nil, common.ErrAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = user.Clone()
	return user, nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.s.lock()()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u.Clone(), nil
}

// GetByIDForUpdate needs no extra locking: a memory transaction already
// holds the store lock.
func (r memUsers) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.s.lock()()

	email = common.NormalizeEmail(email)
	for _, u := range r.s.data.users {
		if email != "" && u.EmailAddress() == email {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memUsers) GetByProvider(_ context.Context, provider identity.AuthProvider, subject string) (*models.User, error) {
	defer r.s.lock()()

	for _, u := range r.s.data.users {
		if subject != "" && u.AuthProvider == provider && u.ProviderSubject == subject {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memUsers) Update(_ context.Context, user *models.User) error {
	defer r.s.lock()()

	cur, ok := r.s.data.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	if r.emailTaken(user.EmailAddress(), user.ID) {
		return common.ErrAlreadyExists
	}
	next := user.Clone()
	next.AuthProvider = cur.AuthProvider
	next.ProviderSubject = cur.ProviderSubject
	next.LastLoginAt = cur.LastLoginAt
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now()
	r.s.data.users[user.ID] = next
	return nil
}

func (r memUsers) SetPassword(_ context.Context, id, hash string) error {
	defer r.s.lock()()

	u, ok := r.s.data.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	return nil
}

func (r memUsers) SetTwoFactor(_ context.Context, id string, enabled bool, totpSecret []byte) error {
	defer r.s.lock()()

	u, ok := r.s.data.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.TwoFactorEnabled = enabled
	u.TOTPSecret = nil
	if len(totpSecret) > 0 {
		u.TOTPSecret = append([]byte(nil), totpSecret...)
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r memUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	defer r.s.lock()()

	u, ok := r.s.data.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

type memSessions struct{ s *MemoryStore }

func (r memSessions) Create(_ context.Context, sess *models.Session) error {
	defer r.s.lock()()

	c := *sess
	r.s.data.sessions[sess.ID] = &c
	return nil
}

func (r memSessions) Get(_ context.Context, id string) (*models.Session, error) {
	defer r.s.lock()()

	sess, ok := r.s.data.sessions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *sess
	return &c, nil
}

func (r memSessions) Revoke(_ context.Context, id string, at time.Time) error {
	defer r.s.lock()()

	if sess, ok := r.s.data.sessions[id]; ok && sess.RevokedAt == nil {
		sess.RevokedAt = &at
	}
	return nil
}

func (r memSessions) RevokeAllForUser(_ context.Context, userID, keepID string, at time.Time) (int64, error) {
	defer r.s.lock()()

	var n int64
	for id, sess := range r.s.data.sessions {
		if sess.UserID == userID && id != keepID && sess.RevokedAt == nil {
			sess.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

type memRefresh struct{ s *MemoryStore }

func (r memRefresh) Create(_ context.Context, t *models.RefreshToken) error {
	defer r.s.lock()()

	c := *t
	r.s.data.refresh[t.TokenHash] = &c
	return nil
}

func (r memRefresh) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	defer r.s.lock()()

	t, ok := r.s.data.refresh[hash]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r memRefresh) MarkRotated(_ context.Context, hash string, at time.Time) (bool, error) {
	defer r.s.lock()()

	t, ok := r.s.data.refresh[hash]
	if !ok || t.RotatedAt != nil || t.RevokedAt != nil {
		return false, nil
	}
	t.RotatedAt = &at
	return true, nil
}

func (r memRefresh) RevokeSession(_ context.Context, sessionID string, at time.Time) error {
	defer r.s.lock()()

	for _, t := range r.s.data.refresh {
		if t.SessionID == sessionID && t.RotatedAt == nil && t.RevokedAt == nil {
			t.RevokedAt = &at
		}
	}
	return nil
}

type memTickets struct{ s *MemoryStore }

func (r memTickets) Create(_ context.Context, t *models.Ticket) error {
	defer r.s.lock()()

	c := *t
	r.s.data.tickets[t.ID] = &c
	return nil
}

func (r memTickets) FindByHash(_ context.Context, hash string) (*models.Ticket, error) {
	defer r.s.lock()()

	for _, t := range r.s.data.tickets {
		if t.TicketHash == hash {
			c := *t
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memTickets) ClaimAttempt(_ context.Context, id string) (int, bool, error) {
	defer r.s.lock()()

	t, ok := r.s.data.tickets[id]
	if !ok || t.ConsumedAt != nil || t.Attempts >= t.MaxAttempts {
		return 0, false, nil
	}
	t.Attempts++
	return t.Attempts, true, nil
}

func (r memTickets) Consume(_ context.Context, id string, at time.Time) (bool, error) {
	defer r.s.lock()()

	t, ok := r.s.data.tickets[id]
	if !ok || t.ConsumedAt != nil {
		return false, nil
	}
	t.ConsumedAt = &at
	return true, nil
}

type memTokens struct{ s *MemoryStore }

func (r memTokens) Create(_ context.Context, t *models.OneTimeToken) error {
	defer r.s.lock()()

	c := *t
	r.s.data.tokens[t.TokenHash] = &c
	return nil
}

func (r memTokens) FindByHash(_ context.Context, hash string) (*models.OneTimeToken, error) {
	defer r.s.lock()()

	t, ok := r.s.data.tokens[hash]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r memTokens) Consume(_ context.Context, hash string, at time.Time) (bool, error) {
	defer r.s.lock()()

	t, ok := r.s.data.tokens[hash]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	t.UsedAt = &at
	return true, nil
}

func (r memTokens) InvalidateForUser(_ context.Context, userID string, purpose models.TokenPurpose, at time.Time) error {
	defer r.s.lock()()

	for _, t := range r.s.data.tokens {
		if t.UserID == userID && t.Purpose == purpose && t.UsedAt == nil {
			t.UsedAt = &at
		}
	}
	return nil
}

type memAttempts struct{ s *MemoryStore }

func (r memAttempts) Get(_ context.Context, key string) (*models.LoginAttempt, error) {
	defer r.s.lock()()

	a, ok := r.s.data.attempts[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r memAttempts) RecordFailure(_ context.Context, key string, at time.Time) (int, error) {
	defer r.s.lock()()

	a, ok := r.s.data.attempts[key]
	if !ok {
		a = &models.LoginAttempt{Key: key}
		r.s.data.attempts[key] = a
	}
	a.Failures++
	a.UpdatedAt = at
	return a.Failures, nil
}

func (r memAttempts) Lock(_ context.Context, key string, until time.Time) error {
	defer r.s.lock()()

	if a, ok := r.s.data.attempts[key]; ok {
		a.LockedUntil = &until
	}
	return nil
}

func (r memAttempts) Reset(_ context.Context, key string) error {
	defer r.s.lock()()

	delete(r.s.data.attempts, key)
	return nil
}
