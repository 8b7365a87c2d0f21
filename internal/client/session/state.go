package session

import (
	"sync"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/guard"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
)

// Status is the client's position in the sign-in state machine.
type Status int

const (
	// StatusRestoring means stored tokens have not been checked yet.
	StatusRestoring Status = iota
	StatusAnonymous
	StatusAuthenticating
	StatusPendingTwoFactor
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusRestoring:
		return "restoring"
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticating:
		return "authenticating"
	case StatusPendingTwoFactor:
		return "pending_two_factor"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot handed to subscribers.
type State struct {
	Status  Status
	User    *models.User
	Pending *models.PendingTwoFactor

	// Err is the failure behind the last transition, if any.
	Err error
}

// GuardInput projects the snapshot onto what the route guard looks at.
func (s State) GuardInput() guard.Input {
	in := guard.Input{
		Initialized:   s.Status != StatusRestoring,
		Authenticated: s.Status == StatusAuthenticated,
	}
	if s.User != nil {
		in.Role = s.User.Role
		in.EmailVerified = s.User.EmailVerified
		in.HasEmail = s.User.Email != ""
		in.AuthProvider = s.User.AuthProvider
	}
	return in
}

// StateStore owns the current State and publishes every change.
type StateStore struct {
	// publish serializes transitions so subscribers see them in order
	publish sync.Mutex

	mu    sync.RWMutex
	state State
	subs  map[int]func(State)
	next  int
}

func NewStateStore() *StateStore {
	return &StateStore{
		state: State{Status: StatusRestoring},
		subs:  make(map[int]func(State)),
	}
}

func (s *StateStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for future transitions. Callbacks run synchronously
// and must not trigger transitions themselves.
func (s *StateStore) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *StateStore) set(st State) {
	s.update(func(cur *State) { *cur = st })
}

func (s *StateStore) update(fn func(*State)) {
	s.publish.Lock()
	defer s.publish.Unlock()

	s.mu.Lock()
	fn(&s.state)
	st := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()

	for _, f := range subs {
		f(st)
	}
}
