package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"credreg/internal/credential/models"
	"credreg/internal/platform/tracing"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/sentinel"
	"credreg/pkg/requestcontext"
)

// CreateRecord authors an unverified record about subject. The actor must be
// an active, registered issuer in d and subject an active Subject.
func (s *Service) CreateRecord(ctx context.Context, d id.Domain, actor, subject id.Principal, payload json.RawMessage, documentRef string) (_ *models.Record, err error) {
	start := time.Now()
	defer s.observe("create_record", d, start)
	ctx, end := tracing.Start(ctx, s.tracer, "credential.CreateRecord", attribute.String("domain", string(d)))
	defer end(&err)

	if err := checkDomain(d); err != nil {
		return nil, err
	}
	// The actor and subject checks run inside the write transaction so a
	// deactivation cannot commit between the check and the insert.
	var stored *models.Record
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, policy.OpCreateRecord, d, actor); err != nil {
			return err
		}
		if err := s.checkSubject(ctx, subject); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		body, err := models.DecodePayload(d, payload, now)
		if err != nil {
			return err
		}
		rec, err := models.NewRecord(d, subject, actor, body, documentRef, now)
		if err != nil {
			return err
		}
		stored, err = s.records.Create(ctx, rec)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:   string(audit.EventRecordCreated),
			Actor:    actor,
			Subject:  subject,
			Domain:   d,
			RecordID: stored.ID,
		})
	})
	if err != nil {
		return nil, wrapRecordErr(err, "failed to create record")
	}

	s.logger.InfoContext(ctx, string(audit.EventRecordCreated),
		"domain", d,
		"record_id", stored.ID,
		"issuer", actor,
		"subject", subject,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRecords(d)
	}
	return stored, nil
}

func (s *Service) checkSubject(ctx context.Context, subject id.Principal) error {
	if subject.IsZero() {
		return dErrors.Invalid("subject", "subject is required")
	}
	p, err := s.profiles.ResolveActor(ctx, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotRegistered, "subject is not registered")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
	}
	if p.Role != id.RoleSubject {
		return dErrors.Invalid("subject", "principal is not a subject")
	}
	if !p.Active {
		return dErrors.Invalid("subject", "subject is inactive")
	}
	return nil
}

// GetRecord returns a record to its subject, its issuer or an Admin.
func (s *Service) GetRecord(ctx context.Context, d id.Domain, actor id.Principal, rid uint64) (_ *models.Record, err error) {
	ctx, end := tracing.Start(ctx, s.tracer, "credential.GetRecord", attribute.String("domain", string(d)))
	defer end(&err)

	if err := checkDomain(d); err != nil {
		return nil, err
	}
	a, err := s.gate.Authorize(ctx, policy.OpGetRecord, d, actor)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.FindByID(ctx, d, rid)
	if err != nil {
		return nil, wrapRecordErr(err, "failed to load record")
	}
	if _, err := s.gate.AuthorizeResource(ctx, policy.OpGetRecord, d, a, policy.Resource{Subject: rec.Subject, Issuer: rec.Issuer}); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecordsOfSubject returns every record about subject to the subject or
// an Admin, and only the records it authored to a registered issuer.
func (s *Service) ListRecordsOfSubject(ctx context.Context, d id.Domain, actor, subject id.Principal) (_ []*models.Record, err error) {
	ctx, end := tracing.Start(ctx, s.tracer, "credential.ListRecordsOfSubject", attribute.String("domain", string(d)))
	defer end(&err)

	if err := checkDomain(d); err != nil {
		return nil, err
	}
	a, err := s.gate.Authorize(ctx, policy.OpListSubjectRecords, d, actor)
	if err != nil {
		return nil, err
	}
	scope, err := s.gate.AuthorizeResource(ctx, policy.OpListSubjectRecords, d, a, policy.Resource{Subject: subject})
	if err != nil {
		return nil, err
	}
	recs, err := s.records.ListBySubject(ctx, d, subject)
	if err != nil {
		return nil, wrapRecordErr(err, "failed to list records")
	}
	if scope == policy.ScopeAuthored {
		recs = authoredBy(recs, actor)
	}
	return recs, nil
}

// ListAllRecords serves the Admin view from the domain-wide index.
func (s *Service) ListAllRecords(ctx context.Context, d id.Domain, actor id.Principal) ([]*models.Record, error) {
	if err := checkDomain(d); err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, policy.OpListAllRecords, d, actor); err != nil {
		return nil, err
	}
	recs, err := s.records.ListByDomain(ctx, d)
	if err != nil {
		return nil, wrapRecordErr(err, "failed to list records")
	}
	return recs, nil
}

// CountRecords returns the size of d's ledger. Callers gate it.
func (s *Service) CountRecords(ctx context.Context, d id.Domain) (int, error) {
	if err := checkDomain(d); err != nil {
		return 0, err
	}
	n, err := s.records.CountByDomain(ctx, d)
	if err != nil {
		return 0, wrapRecordErr(err, "failed to count records")
	}
	return n, nil
}

func authoredBy(recs []*models.Record, issuer id.Principal) []*models.Record {
	out := make([]*models.Record, 0, len(recs))
	for _, r := range recs {
		if r.Issuer == issuer {
			out = append(out, r)
		}
	}
	return out
}
