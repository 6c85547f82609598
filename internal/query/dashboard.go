package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"credreg/internal/credential/models"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
)

// Dashboard holds navigation badge counts for one actor.
type Dashboard struct {
	Principal id.Principal                 `json:"principal"`
	Role      id.Role                      `json:"role"`
	Domains   map[id.Domain]*DomainSummary `json:"domains"`
	Users     map[id.Role]int              `json:"users,omitempty"`
}

// DomainSummary is what the actor's role may count in one domain.
type DomainSummary struct {
	Records    int                  `json:"records"`
	ByState    map[models.State]int `json:"by_state,omitempty"`
	Pending    int                  `json:"pending"`
	Registered bool                 `json:"registered,omitempty"`
}

// Dashboard computes the actor's summary concurrently across domains. A
// Subject counts its own records by state, an issuer role counts its pending
// queue and an Admin gets domain totals plus user counts per role.
func (s *Service) Dashboard(ctx context.Context, actor id.Principal) (*Dashboard, error) {
	defer s.metrics.ObserveView("dashboard", time.Now())
	a, err := s.gate.Authorize(ctx, policy.OpDashboard, "", actor)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fanOutTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	domains := id.AllDomains()
	summaries := make([]*DomainSummary, len(domains))
	for i, d := range domains {
		fetch := s.summaryFetcher(a, d)
		if fetch == nil {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			sum, err := fetch(ctx)
			s.metrics.ObserveFetch("dashboard", string(d), time.Since(start))
			if err != nil {
				return err
			}
			summaries[i] = sum
			return nil
		})
	}

	var users map[id.Role]int
	if a.IsAdmin() {
		g.Go(func() error {
			counts, err := s.registry.CountByRole(ctx)
			if err != nil {
				return err
			}
			users = counts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "dashboard fan-out failed", "actor", actor, "error", err)
		return nil, fanOutErr(err)
	}

	out := &Dashboard{
		Principal: a.Principal,
		Role:      a.Role,
		Domains:   make(map[id.Domain]*DomainSummary, len(domains)),
		Users:     users,
	}
	for i, d := range domains {
		if summaries[i] != nil {
			out.Domains[d] = summaries[i]
		}
	}
	return out, nil
}

type summaryFunc func(ctx context.Context) (*DomainSummary, error)

// summaryFetcher returns nil for domains the actor has nothing to count in.
func (s *Service) summaryFetcher(a policy.Actor, d id.Domain) summaryFunc {
	switch {
	case a.IsAdmin():
		return func(ctx context.Context) (*DomainSummary, error) {
			n, err := s.credentials.CountRecords(ctx, d)
			if err != nil {
				return nil, err
			}
			return &DomainSummary{Records: n}, nil
		}
	case a.Role == id.RoleSubject:
		return func(ctx context.Context) (*DomainSummary, error) {
			recs, err := s.credentials.ListRecordsOfSubject(ctx, d, a.Principal, a.Principal)
			if err != nil {
				return nil, err
			}
			sum := &DomainSummary{Records: len(recs), ByState: map[models.State]int{}}
			for _, r := range recs {
				sum.ByState[r.State]++
				if r.IsPending() {
					sum.Pending++
				}
			}
			return sum, nil
		}
	case a.Role == d.IssuerRole():
		return func(ctx context.Context) (*DomainSummary, error) {
			registered, err := s.credentials.IsRegisteredIssuer(ctx, d, a.Principal)
			if err != nil || !registered {
				return &DomainSummary{}, err
			}
			recs, err := s.credentials.ListPendingForIssuer(ctx, d, a.Principal, a.Principal)
			if err != nil {
				return nil, err
			}
			return &DomainSummary{Pending: len(recs), Registered: true}, nil
		}
	}
	return nil
}
