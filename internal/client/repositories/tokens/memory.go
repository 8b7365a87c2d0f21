package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/client/models"
)

type MemoryStore struct {
	mu           sync.Mutex
	pair         *models.TokenPair
	lastActivity time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*models.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil, nil
	}
	cp := *s.pair
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, pair *models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pair
	s.pair = &cp
	return nil
}

func (s *MemoryStore) Touch(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = at
	return nil
}

func (s *MemoryStore) LastActivity(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	s.lastActivity = time.Time{}
	return nil
}
