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

// transition describes one edge of the verification state machine.
type transition struct {
	op    policy.Operation
	event audit.AuditEvent
	check func(*models.Record) error
	apply func(r *models.Record, now time.Time)
}

// RequestVerification moves an Unverified or Rejected record to Pending.
// Only the record's subject may ask.
func (s *Service) RequestVerification(ctx context.Context, d id.Domain, actor id.Principal, rid uint64) (*models.Record, error) {
	return s.transition(ctx, d, actor, rid, transition{
		op:    policy.OpRequestVerification,
		event: audit.EventVerificationRequested,
		check: (*models.Record).CanRequestVerification,
		apply: (*models.Record).ApplyRequestVerification,
	}, "")
}

// ApproveVerification moves a Pending record to Verified. Only the record's
// issuer may decide.
func (s *Service) ApproveVerification(ctx context.Context, d id.Domain, actor id.Principal, rid uint64) (*models.Record, error) {
	return s.transition(ctx, d, actor, rid, transition{
		op:    policy.OpApproveVerification,
		event: audit.EventVerificationApproved,
		check: (*models.Record).CanDecide,
		apply: (*models.Record).ApplyApproval,
	}, "")
}

// RejectVerification moves a Pending record to Rejected and keeps reason as
// the latest rejection reason.
func (s *Service) RejectVerification(ctx context.Context, d id.Domain, actor id.Principal, rid uint64, reason string) (*models.Record, error) {
	reason = models.NormalizeReason(reason)
	return s.transition(ctx, d, actor, rid, transition{
		op:    policy.OpRejectVerification,
		event: audit.EventVerificationRejected,
		check: (*models.Record).CanDecide,
		apply: func(r *models.Record, now time.Time) { r.ApplyRejection(reason, now) },
	}, reason)
}

// transition applies t atomically: the relation check, the state check, the
// state change, the pending index update and the audit event share one
// transaction.
func (s *Service) transition(ctx context.Context, d id.Domain, actor id.Principal, rid uint64, t transition, reason string) (_ *models.Record, err error) {
	start := time.Now()
	defer s.observe(string(t.op), d, start)
	ctx, end := tracing.Start(ctx, s.tracer, "credential."+string(t.op),
		attribute.String("domain", string(d)),
		attribute.Int64("record_id", int64(rid)),
	)
	defer end(&err)

	if err := checkDomain(d); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var rec *models.Record
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.gate.Authorize(ctx, t.op, d, actor)
		if err != nil {
			return err
		}
		rec, err = s.records.Execute(ctx, d, rid,
			func(r *models.Record) error {
				res := policy.Resource{Subject: r.Subject, Issuer: r.Issuer}
				if _, err := s.gate.AuthorizeResource(ctx, t.op, d, a, res); err != nil {
					return err
				}
				return t.check(r)
			},
			func(r *models.Record) { t.apply(r, now) },
		)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:   string(t.event),
			Actor:    actor,
			Subject:  rec.Subject,
			Domain:   d,
			RecordID: rid,
			Decision: string(rec.State),
			Reason:   reason,
		})
	})
	if err != nil {
		return nil, wrapRecordErr(err, "failed to update record")
	}

	s.logger.InfoContext(ctx, string(t.event),
		"domain", d,
		"record_id", rid,
		"actor", actor,
		"state", rec.State,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementTransition(d, rec.State)
	}
	return rec, nil
}

// ListPendingForIssuer resolves issuer's pending index. An empty issuer means
// the actor itself; only an Admin may name someone else.
func (s *Service) ListPendingForIssuer(ctx context.Context, d id.Domain, actor, issuer id.Principal) ([]*models.Record, error) {
	if err := checkDomain(d); err != nil {
		return nil, err
	}
	if issuer.IsZero() {
		issuer = actor
	}
	a, err := s.gate.Authorize(ctx, policy.OpListPendingForIssuer, d, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeResource(ctx, policy.OpListPendingForIssuer, d, a, policy.Resource{Subject: issuer}); err != nil {
		return nil, err
	}
	recs, err := s.records.ListPendingByIssuer(ctx, d, issuer)
	if err != nil {
		return nil, wrapRecordErr(err, "failed to list pending records")
	}
	return recs, nil
}
