package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"credreg/internal/auth/models"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

// InMemoryStore keeps one outstanding challenge per principal. A new
// challenge replaces the previous one.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[id.Principal]*models.Challenge
	now        func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		challenges: make(map[id.Principal]*models.Challenge),
		now:        time.Now,
	}
}

func (s *InMemoryStore) Save(_ context.Context, ch *models.Challenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	s.challenges[ch.Principal] = &cp
	return nil
}

// Consume removes and returns p's challenge. Expired challenges are removed
// too and reported as sentinel.ErrExpired.
func (s *InMemoryStore) Consume(_ context.Context, p id.Principal) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[p]
	if !ok {
		return nil, fmt.Errorf("challenge for %s: %w", p, sentinel.ErrNotFound)
	}
	delete(s.challenges, p)
	if ch.IsExpired(s.now()) {
		return nil, fmt.Errorf("challenge for %s: %w", p, sentinel.ErrExpired)
	}
	return ch, nil
}
