package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"credreg/internal/identity/metrics"
	"credreg/internal/identity/models"
	"credreg/internal/identity/store"
	"credreg/internal/platform/tracing"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/sentinel"
	"credreg/pkg/platform/tx"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByPrincipal(ctx context.Context, p id.Principal) (*models.User, error)
	ListByRole(ctx context.Context, role id.Role) ([]id.Principal, error)
	ListAll(ctx context.Context) ([]id.Principal, error)
	CountByRole(ctx context.Context) (store.RoleCounts, error)
	Execute(ctx context.Context, p id.Principal, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
	GrantViewer(ctx context.Context, owner, viewer id.Principal, at time.Time) (bool, error)
	RevokeViewer(ctx context.Context, owner, viewer id.Principal) (bool, error)
	IsViewer(ctx context.Context, owner, viewer id.Principal) (bool, error)
	ListViewers(ctx context.Context, owner id.Principal) ([]id.Principal, error)
}

// Authorizer is the policy gate.
type Authorizer interface {
	Authorize(ctx context.Context, op policy.Operation, d id.Domain, principal id.Principal) (policy.Actor, error)
	AuthorizeResource(ctx context.Context, op policy.Operation, d id.Domain, actor policy.Actor, res policy.Resource) (policy.Scope, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the identity and role registry.
type Service struct {
	users          UserStore
	gate           Authorizer
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(users UserStore, gate Authorizer, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		users:  users,
		gate:   gate,
		tx:     runner,
		logger: slog.Default(),
		tracer: tracing.Tracer("credreg/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActorResolver adapts a UserStore to policy.ActorResolver.
type ActorResolver struct {
	users UserStore
}

func NewActorResolver(users UserStore) *ActorResolver {
	return &ActorResolver{users: users}
}

func (r *ActorResolver) ResolveActor(ctx context.Context, p id.Principal) (policy.Actor, error) {
	u, err := r.users.FindByPrincipal(ctx, p)
	if err != nil {
		return policy.Actor{}, err
	}
	return policy.Actor{Principal: u.Principal, Role: u.Role, Active: u.Active}, nil
}

// IsAuthorizedViewer lets the gate consult the owner's viewer grants.
func (r *ActorResolver) IsAuthorizedViewer(ctx context.Context, owner, viewer id.Principal) (bool, error) {
	return r.users.IsViewer(ctx, owner, viewer)
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, actor, subject id.Principal) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:  string(event),
		Actor:   actor,
		Subject: subject,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

// wrapUserErr translates store facts into registry error codes.
func wrapUserErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotRegistered, "principal is not registered")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadyRegistered, "principal is already registered")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry is busy")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
