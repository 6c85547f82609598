package store

import (
	"context"
	"fmt"
	"sync"

	"credreg/internal/credential/models"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

type issuerKey struct {
	domain    id.Domain
	principal id.Principal
}

// InMemoryIssuerStore keeps registrations per domain in registration order.
type InMemoryIssuerStore struct {
	mu    sync.RWMutex
	regs  map[issuerKey]*models.IssuerRegistration
	order map[id.Domain][]id.Principal
}

func NewInMemoryIssuerStore() *InMemoryIssuerStore {
	return &InMemoryIssuerStore{
		regs:  make(map[issuerKey]*models.IssuerRegistration),
		order: make(map[id.Domain][]id.Principal),
	}
}

func (s *InMemoryIssuerStore) Create(_ context.Context, reg *models.IssuerRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := issuerKey{reg.Domain, reg.Principal}
	if _, ok := s.regs[key]; ok {
		return fmt.Errorf("issuer %s/%s: %w", reg.Domain, reg.Principal, sentinel.ErrAlreadyUsed)
	}
	s.regs[key] = reg.Clone()
	s.order[reg.Domain] = append(s.order[reg.Domain], reg.Principal)
	return nil
}

func (s *InMemoryIssuerStore) Find(_ context.Context, d id.Domain, p id.Principal) (*models.IssuerRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[issuerKey{d, p}]
	if !ok {
		return nil, fmt.Errorf("issuer %s/%s: %w", d, p, sentinel.ErrNotFound)
	}
	return reg.Clone(), nil
}

func (s *InMemoryIssuerStore) Exists(_ context.Context, d id.Domain, p id.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.regs[issuerKey{d, p}]
	return ok, nil
}

func (s *InMemoryIssuerStore) List(_ context.Context, d id.Domain) ([]*models.IssuerRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.IssuerRegistration, 0, len(s.order[d]))
	for _, p := range s.order[d] {
		out = append(out, s.regs[issuerKey{d, p}].Clone())
	}
	return out, nil
}
