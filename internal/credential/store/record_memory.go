package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"credreg/internal/credential/models"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

// ledger is one domain's records plus the indexes derived from them.
type ledger struct {
	lastID    uint64
	records   map[uint64]*models.Record
	all       []uint64
	bySubject map[id.Principal][]uint64
	pending   map[id.Principal]map[uint64]struct{}
}

func newLedger() *ledger {
	return &ledger{
		records:   make(map[uint64]*models.Record),
		bySubject: make(map[id.Principal][]uint64),
		pending:   make(map[id.Principal]map[uint64]struct{}),
	}
}

// reindex brings the pending index in line with r's current state.
func (l *ledger) reindex(r *models.Record) {
	if r.IsPending() {
		set, ok := l.pending[r.Issuer]
		if !ok {
			set = make(map[uint64]struct{})
			l.pending[r.Issuer] = set
		}
		set[r.ID] = struct{}{}
		return
	}
	if set, ok := l.pending[r.Issuer]; ok {
		delete(set, r.ID)
		if len(set) == 0 {
			delete(l.pending, r.Issuer)
		}
	}
}

func (l *ledger) collect(ids []uint64) []*models.Record {
	out := make([]*models.Record, 0, len(ids))
	for _, rid := range ids {
		out = append(out, l.records[rid].Clone())
	}
	return out
}

// InMemoryRecordStore holds one ledger per domain behind a single lock, so
// id allocation, inserts, transitions and index maintenance commit together.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	ledgers map[id.Domain]*ledger
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	s := &InMemoryRecordStore{ledgers: make(map[id.Domain]*ledger)}
	for _, d := range id.AllDomains() {
		s.ledgers[d] = newLedger()
	}
	return s
}

func (s *InMemoryRecordStore) domainLedger(d id.Domain) (*ledger, error) {
	l, ok := s.ledgers[d]
	if !ok {
		return nil, fmt.Errorf("domain %q: %w", d, sentinel.ErrNotFound)
	}
	return l, nil
}

// Create assigns the next id in r's domain and stores the record.
func (s *InMemoryRecordStore) Create(_ context.Context, r *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.domainLedger(r.Domain)
	if err != nil {
		return nil, err
	}
	l.lastID++
	stored := r.Clone()
	stored.ID = l.lastID
	l.records[stored.ID] = stored
	l.all = append(l.all, stored.ID)
	l.bySubject[stored.Subject] = append(l.bySubject[stored.Subject], stored.ID)
	l.reindex(stored)
	return stored.Clone(), nil
}

func (s *InMemoryRecordStore) FindByID(_ context.Context, d id.Domain, rid uint64) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, err := s.domainLedger(d)
	if err != nil {
		return nil, err
	}
	r, ok := l.records[rid]
	if !ok {
		return nil, fmt.Errorf("record %s/%d: %w", d, rid, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *InMemoryRecordStore) ListBySubject(_ context.Context, d id.Domain, subject id.Principal) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, err := s.domainLedger(d)
	if err != nil {
		return nil, err
	}
	return l.collect(l.bySubject[subject]), nil
}

// ListPendingByIssuer resolves the issuer's pending index in id order.
func (s *InMemoryRecordStore) ListPendingByIssuer(_ context.Context, d id.Domain, issuer id.Principal) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, err := s.domainLedger(d)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(l.pending[issuer]))
	for rid := range l.pending[issuer] {
		ids = append(ids, rid)
	}
	slices.Sort(ids)
	return l.collect(ids), nil
}

// ListByDomain serves the domain-wide index in id order.
func (s *InMemoryRecordStore) ListByDomain(_ context.Context, d id.Domain) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, err := s.domainLedger(d)
	if err != nil {
		return nil, err
	}
	return l.collect(l.all), nil
}

func (s *InMemoryRecordStore) CountByDomain(_ context.Context, d id.Domain) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, err := s.domainLedger(d)
	if err != nil {
		return 0, err
	}
	return len(l.all), nil
}

// Execute runs validate then mutate on a working copy under the write lock
// and re-indexes the result. Nothing is written if validate fails.
func (s *InMemoryRecordStore) Execute(_ context.Context, d id.Domain, rid uint64, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.domainLedger(d)
	if err != nil {
		return nil, err
	}
	current, ok := l.records[rid]
	if !ok {
		return nil, fmt.Errorf("record %s/%d: %w", d, rid, sentinel.ErrNotFound)
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	l.records[rid] = working
	l.reindex(working)
	return working.Clone(), nil
}
