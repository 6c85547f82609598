// Package service implements the issuer ledger, the credential record store
// and the verification workflow once, parameterized by domain.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"credreg/internal/credential/metrics"
	"credreg/internal/credential/models"
	"credreg/internal/platform/tracing"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/sentinel"
	"credreg/pkg/platform/tx"
)

type IssuerStore interface {
	Create(ctx context.Context, reg *models.IssuerRegistration) error
	Find(ctx context.Context, d id.Domain, p id.Principal) (*models.IssuerRegistration, error)
	Exists(ctx context.Context, d id.Domain, p id.Principal) (bool, error)
	List(ctx context.Context, d id.Domain) ([]*models.IssuerRegistration, error)
}

// RecordStore allocates ids on Create and keeps the pending index in step
// with every Execute.
type RecordStore interface {
	Create(ctx context.Context, r *models.Record) (*models.Record, error)
	FindByID(ctx context.Context, d id.Domain, rid uint64) (*models.Record, error)
	ListBySubject(ctx context.Context, d id.Domain, subject id.Principal) ([]*models.Record, error)
	ListPendingByIssuer(ctx context.Context, d id.Domain, issuer id.Principal) ([]*models.Record, error)
	ListByDomain(ctx context.Context, d id.Domain) ([]*models.Record, error)
	CountByDomain(ctx context.Context, d id.Domain) (int, error)
	Execute(ctx context.Context, d id.Domain, rid uint64, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
}

// ProfileResolver looks up registered principals, used to check record subjects.
type ProfileResolver interface {
	ResolveActor(ctx context.Context, p id.Principal) (policy.Actor, error)
}

// Authorizer is the policy gate.
type Authorizer interface {
	Authorize(ctx context.Context, op policy.Operation, d id.Domain, principal id.Principal) (policy.Actor, error)
	AuthorizeResource(ctx context.Context, op policy.Operation, d id.Domain, actor policy.Actor, res policy.Resource) (policy.Scope, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	issuers        IssuerStore
	records        RecordStore
	profiles       ProfileResolver
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

func New(issuers IssuerStore, records RecordStore, profiles ProfileResolver, gate Authorizer, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		issuers:  issuers,
		records:  records,
		profiles: profiles,
		gate:     gate,
		tx:       runner,
		logger:   slog.Default(),
		tracer:   tracing.Tracer("credreg/credential"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) observe(op string, d id.Domain, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, d, start)
	}
}

func checkDomain(d id.Domain) error {
	if !d.IsValid() {
		return dErrors.Newf(dErrors.CodeNotFound, "unknown domain %q", d)
	}
	return nil
}

// wrapRecordErr translates store facts about records into error codes.
func wrapRecordErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "record store is busy")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// wrapIssuerErr translates store facts about registrations into error codes.
func wrapIssuerErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotRegistered, "issuer is not registered in this domain")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadyRegisteredIssuer, "issuer is already registered in this domain")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "issuer ledger is busy")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
