package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"credreg/internal/identity/models"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

// InMemoryUserStore keeps profiles in registration order and each owner's
// viewer grants in grant order.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.Principal]*models.User
	order   []id.Principal
	viewers map[id.Principal][]id.Principal
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.Principal]*models.User),
		viewers: make(map[id.Principal][]id.Principal),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Principal]; ok {
		return fmt.Errorf("user %s: %w", u.Principal, sentinel.ErrAlreadyUsed)
	}
	s.users[u.Principal] = clone(u)
	s.order = append(s.order, u.Principal)
	return nil
}

func (s *InMemoryUserStore) FindByPrincipal(_ context.Context, p id.Principal) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[p]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", p, sentinel.ErrNotFound)
	}
	return clone(u), nil
}

func (s *InMemoryUserStore) ListByRole(_ context.Context, role id.Role) ([]id.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []id.Principal{}
	for _, p := range s.order {
		if s.users[p].Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemoryUserStore) ListAll(_ context.Context) ([]id.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.Principal{}, s.order...), nil
}

func (s *InMemoryUserStore) CountByRole(_ context.Context) (RoleCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := RoleCounts{}
	for _, u := range s.users {
		counts[u.Role]++
	}
	return counts, nil
}

// Execute runs validate then mutate on the stored profile under the write lock.
func (s *InMemoryUserStore) Execute(_ context.Context, p id.Principal, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[p]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", p, sentinel.ErrNotFound)
	}
	working := clone(u)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.users[p] = working
	return clone(working), nil
}

// GrantViewer reports whether the grant is new. The owner must exist.
func (s *InMemoryUserStore) GrantViewer(_ context.Context, owner, viewer id.Principal, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[owner]; !ok {
		return false, fmt.Errorf("user %s: %w", owner, sentinel.ErrNotFound)
	}
	if slices.Contains(s.viewers[owner], viewer) {
		return false, nil
	}
	s.viewers[owner] = append(s.viewers[owner], viewer)
	return true, nil
}

// RevokeViewer reports whether a grant was removed.
func (s *InMemoryUserStore) RevokeViewer(_ context.Context, owner, viewer id.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.viewers[owner], viewer)
	if i < 0 {
		return false, nil
	}
	s.viewers[owner] = slices.Delete(s.viewers[owner], i, i+1)
	return true, nil
}

func (s *InMemoryUserStore) IsViewer(_ context.Context, owner, viewer id.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.viewers[owner], viewer), nil
}

func (s *InMemoryUserStore) ListViewers(_ context.Context, owner id.Principal) ([]id.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.Principal{}, s.viewers[owner]...), nil
}
