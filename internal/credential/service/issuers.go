package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"credreg/internal/credential/models"
	"credreg/internal/platform/tracing"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/requestcontext"
)

// RegisterIssuer records the actor's accreditation in d. The actor must be
// active and hold d's issuer role; a second registration is rejected.
func (s *Service) RegisterIssuer(ctx context.Context, d id.Domain, actor id.Principal, orgName string, metadata map[string]string, ref string) (_ *models.IssuerRegistration, err error) {
	start := time.Now()
	defer s.observe("register_issuer", d, start)
	ctx, end := tracing.Start(ctx, s.tracer, "credential.RegisterIssuer", attribute.String("domain", string(d)))
	defer end(&err)

	if err := checkDomain(d); err != nil {
		return nil, err
	}
	var reg *models.IssuerRegistration
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, policy.OpRegisterIssuer, d, actor); err != nil {
			return err
		}
		var err error
		reg, err = models.NewIssuerRegistration(d, actor, orgName, metadata, ref, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.issuers.Create(ctx, reg); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:  string(audit.EventIssuerRegistered),
			Actor:   actor,
			Subject: actor,
			Domain:  d,
		})
	})
	if err != nil {
		return nil, wrapIssuerErr(err, "failed to register issuer")
	}

	s.logger.InfoContext(ctx, string(audit.EventIssuerRegistered),
		"domain", d,
		"issuer", actor,
		"org_name", reg.OrgName,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementIssuers(d)
	}
	return reg, nil
}

// IsRegisteredIssuer makes Service a policy.IssuerDirectory.
func (s *Service) IsRegisteredIssuer(ctx context.Context, d id.Domain, p id.Principal) (bool, error) {
	if !d.IsValid() {
		return false, nil
	}
	ok, err := s.issuers.Exists(ctx, d, p)
	if err != nil {
		return false, wrapIssuerErr(err, "failed to check issuer registration")
	}
	return ok, nil
}

// GetIssuer returns p's registration in d to any registered actor.
func (s *Service) GetIssuer(ctx context.Context, d id.Domain, actor, p id.Principal) (*models.IssuerRegistration, error) {
	if err := checkDomain(d); err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, policy.OpListIssuers, d, actor); err != nil {
		return nil, err
	}
	reg, err := s.issuers.Find(ctx, d, p)
	if err != nil {
		return nil, wrapIssuerErr(err, "failed to load issuer")
	}
	return reg, nil
}

// ListIssuers is the directory of accredited issuers in d.
func (s *Service) ListIssuers(ctx context.Context, d id.Domain, actor id.Principal) ([]*models.IssuerRegistration, error) {
	if err := checkDomain(d); err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, policy.OpListIssuers, d, actor); err != nil {
		return nil, err
	}
	regs, err := s.issuers.List(ctx, d)
	if err != nil {
		return nil, wrapIssuerErr(err, "failed to list issuers")
	}
	return regs, nil
}
