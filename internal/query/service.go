// Package query serves read-only views that span the identity registry and
// every credential domain.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"credreg/internal/credential/models"
	"credreg/internal/policy"
	"credreg/internal/query/metrics"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
)

const (
	fanOutTimeout     = 5 * time.Second
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Registry is the part of the identity registry the views read.
type Registry interface {
	ListByRole(ctx context.Context, actor id.Principal, role id.Role) ([]id.Principal, error)
	CountByRole(ctx context.Context) (map[id.Role]int, error)
}

// Credentials is the part of the credential engine the views read.
type Credentials interface {
	ListAllRecords(ctx context.Context, d id.Domain, actor id.Principal) ([]*models.Record, error)
	ListRecordsOfSubject(ctx context.Context, d id.Domain, actor, subject id.Principal) ([]*models.Record, error)
	ListPendingForIssuer(ctx context.Context, d id.Domain, actor, issuer id.Principal) ([]*models.Record, error)
	CountRecords(ctx context.Context, d id.Domain) (int, error)
	IsRegisteredIssuer(ctx context.Context, d id.Domain, p id.Principal) (bool, error)
}

type AuditReader interface {
	ListByPrincipal(ctx context.Context, p id.Principal, limit int) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, op policy.Operation, d id.Domain, principal id.Principal) (policy.Actor, error)
}

type Service struct {
	registry    Registry
	credentials Credentials
	audit       AuditReader
	gate        Authorizer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditReader enables the Admin audit trail view.
func WithAuditReader(r AuditReader) Option {
	return func(s *Service) {
		s.audit = r
	}
}

func New(registry Registry, credentials Credentials, gate Authorizer, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		credentials: credentials,
		gate:        gate,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAllSubjectPrincipals is open to any registered actor.
func (s *Service) ListAllSubjectPrincipals(ctx context.Context, actor id.Principal) ([]id.Principal, error) {
	if _, err := s.gate.Authorize(ctx, policy.OpListSubjects, "", actor); err != nil {
		return nil, err
	}
	return s.registry.ListByRole(ctx, actor, id.RoleSubject)
}

// ListAllRecordsAcrossSubjects is the Admin view of a domain.
func (s *Service) ListAllRecordsAcrossSubjects(ctx context.Context, actor id.Principal, d id.Domain) ([]*models.Record, error) {
	return s.credentials.ListAllRecords(ctx, d, actor)
}

// ListPendingAcrossDomains returns the actor's pending queue in every domain
// where it is a registered issuer, in domain order.
func (s *Service) ListPendingAcrossDomains(ctx context.Context, actor id.Principal) ([]*models.Record, error) {
	defer s.metrics.ObserveView("pending", time.Now())
	a, err := s.gate.Authorize(ctx, policy.OpDashboard, "", actor)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fanOutTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	domains := id.AllDomains()
	queues := make([][]*models.Record, len(domains))
	for i, d := range domains {
		if d.IssuerRole() != a.Role {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			defer func() { s.metrics.ObserveFetch("pending", string(d), time.Since(start)) }()

			registered, err := s.credentials.IsRegisteredIssuer(ctx, d, actor)
			if err != nil || !registered {
				return err
			}
			recs, err := s.credentials.ListPendingForIssuer(ctx, d, actor, actor)
			if err != nil {
				return err
			}
			queues[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fanOutErr(err)
	}

	out := []*models.Record{}
	for _, q := range queues {
		out = append(out, q...)
	}
	return out, nil
}

// ReadAudit returns the audit trail of principal, or the most recent events
// when principal is empty. Admin only.
func (s *Service) ReadAudit(ctx context.Context, actor, principal id.Principal, limit int) ([]audit.Event, error) {
	if _, err := s.gate.Authorize(ctx, policy.OpReadAudit, "", actor); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "audit trail is not available")
	}
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	var (
		events []audit.Event
		err    error
	)
	if principal.IsZero() {
		events, err = s.audit.ListRecent(ctx, limit)
	} else {
		events, err = s.audit.ListByPrincipal(ctx, principal, limit)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail")
	}
	return events, nil
}

func fanOutErr(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "aggregated view timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build aggregated view")
}
