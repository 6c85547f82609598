package service

import (
	"context"
	"time"

	"credreg/internal/identity/models"
	"credreg/internal/platform/tracing"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/requestcontext"
)

// AuthorizeViewer lets viewer read the actor's profile. The viewer must be
// registered. Granting twice is a silent success. It returns the actor's
// viewers after the grant.
func (s *Service) AuthorizeViewer(ctx context.Context, actor, viewer id.Principal) (_ []id.Principal, err error) {
	start := time.Now()
	defer s.observe(string(policy.OpAuthorizeViewer), start)
	ctx, end := tracing.Start(ctx, s.tracer, "identity.AuthorizeViewer")
	defer end(&err)

	var granted bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, policy.OpAuthorizeViewer, "", actor); err != nil {
			return err
		}
		if err := models.ValidateViewerGrant(actor, viewer); err != nil {
			return err
		}
		if _, err := s.users.FindByPrincipal(ctx, viewer); err != nil {
			return wrapUserErr(err, "failed to load viewer")
		}
		var err error
		granted, err = s.users.GrantViewer(ctx, actor, viewer, requestcontext.Now(ctx))
		if err != nil || !granted {
			return err
		}
		return s.emit(ctx, audit.EventViewerGranted, actor, viewer)
	})
	if err != nil {
		return nil, wrapUserErr(err, "failed to authorize viewer")
	}
	if granted {
		s.logger.InfoContext(ctx, string(audit.EventViewerGranted),
			"owner", actor,
			"viewer", viewer,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return s.viewersOf(ctx, actor)
}

// RevokeViewer withdraws a grant. Revoking a viewer that holds none is a
// silent success.
func (s *Service) RevokeViewer(ctx context.Context, actor, viewer id.Principal) (_ []id.Principal, err error) {
	start := time.Now()
	defer s.observe(string(policy.OpRevokeViewer), start)
	ctx, end := tracing.Start(ctx, s.tracer, "identity.RevokeViewer")
	defer end(&err)

	var revoked bool
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, policy.OpRevokeViewer, "", actor); err != nil {
			return err
		}
		if viewer.IsZero() {
			return dErrors.Invalid("viewer", "viewer is required")
		}
		var err error
		revoked, err = s.users.RevokeViewer(ctx, actor, viewer)
		if err != nil || !revoked {
			return err
		}
		return s.emit(ctx, audit.EventViewerRevoked, actor, viewer)
	})
	if err != nil {
		return nil, wrapUserErr(err, "failed to revoke viewer")
	}
	if revoked {
		s.logger.InfoContext(ctx, string(audit.EventViewerRevoked),
			"owner", actor,
			"viewer", viewer,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return s.viewersOf(ctx, actor)
}

// ListViewers is open to the owner and Admins.
func (s *Service) ListViewers(ctx context.Context, actor, owner id.Principal) ([]id.Principal, error) {
	a, err := s.gate.Authorize(ctx, policy.OpListViewers, "", actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeResource(ctx, policy.OpListViewers, "", a, policy.Resource{Subject: owner}); err != nil {
		return nil, err
	}
	return s.viewersOf(ctx, owner)
}

// IsAuthorizedViewer reports whether owner granted viewer access. Any
// registered actor may ask.
func (s *Service) IsAuthorizedViewer(ctx context.Context, actor, owner, viewer id.Principal) (bool, error) {
	if _, err := s.gate.Authorize(ctx, policy.OpCheckViewer, "", actor); err != nil {
		return false, err
	}
	ok, err := s.users.IsViewer(ctx, owner, viewer)
	if err != nil {
		return false, wrapUserErr(err, "failed to check viewer")
	}
	return ok, nil
}

func (s *Service) viewersOf(ctx context.Context, owner id.Principal) ([]id.Principal, error) {
	out, err := s.users.ListViewers(ctx, owner)
	if err != nil {
		return nil, wrapUserErr(err, "failed to list viewers")
	}
	return out, nil
}
