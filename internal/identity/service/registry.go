package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"credreg/internal/identity/models"
	"credreg/internal/platform/tracing"
	"credreg/internal/policy"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/requestcontext"
)

// RegisterUser creates an active profile. Only an active Admin may call it.
func (s *Service) RegisterUser(ctx context.Context, actor id.Principal, p id.Principal, role id.Role, name, org, mail string) (_ *models.User, err error) {
	start := time.Now()
	defer s.observe("register_user", start)
	ctx, end := tracing.Start(ctx, s.tracer, "identity.RegisterUser", attribute.String("role", string(role)))
	defer end(&err)

	var u *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, policy.OpRegisterUser, "", actor); err != nil {
			return err
		}
		var err error
		u, err = models.NewUser(p, role, name, org, mail, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventUserRegistered, actor, p)
	})
	if err != nil {
		return nil, wrapUserErr(err, "failed to register user")
	}

	s.logger.InfoContext(ctx, string(audit.EventUserRegistered),
		"principal", p,
		"role", role,
		"actor", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRegistered(role)
	}
	return u, nil
}

// Deactivate denies all writes to principal. Already inactive is a silent
// success. An Admin cannot deactivate itself.
func (s *Service) Deactivate(ctx context.Context, actor id.Principal, p id.Principal) (*models.User, error) {
	return s.setActive(ctx, actor, p, false)
}

// Reactivate restores write access. Already active is a silent success.
func (s *Service) Reactivate(ctx context.Context, actor id.Principal, p id.Principal) (*models.User, error) {
	return s.setActive(ctx, actor, p, true)
}

func (s *Service) setActive(ctx context.Context, actor id.Principal, p id.Principal, active bool) (_ *models.User, err error) {
	op, event, spanName := policy.OpDeactivateUser, audit.EventUserDeactivated, "identity.Deactivate"
	if active {
		op, event, spanName = policy.OpReactivateUser, audit.EventUserReactivated, "identity.Reactivate"
	}
	start := time.Now()
	defer s.observe(string(op), start)
	ctx, end := tracing.Start(ctx, s.tracer, spanName)
	defer end(&err)

	now := requestcontext.Now(ctx)
	var (
		user    *models.User
		changed bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, op, "", actor); err != nil {
			return err
		}
		var err error
		user, err = s.users.Execute(ctx, p,
			func(u *models.User) error {
				if !active {
					return u.CanDeactivate(actor)
				}
				return nil
			},
			func(u *models.User) {
				if active {
					changed = u.ApplyReactivation(now)
				} else {
					changed = u.ApplyDeactivation(now)
				}
			},
		)
		if err != nil || !changed {
			return err
		}
		return s.emit(ctx, event, actor, p)
	})
	if err != nil {
		return nil, wrapUserErr(err, "failed to update user")
	}

	if changed {
		s.logger.InfoContext(ctx, string(event),
			"principal", p,
			"actor", actor,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			if active {
				s.metrics.IncrementReactivated()
			} else {
				s.metrics.IncrementDeactivated()
			}
		}
	}
	return user, nil
}

// GetRole returns the principal's role. It needs no actor.
func (s *Service) GetRole(ctx context.Context, p id.Principal) (id.Role, error) {
	u, err := s.users.FindByPrincipal(ctx, p)
	if err != nil {
		return "", wrapUserErr(err, "failed to load user")
	}
	return u.Role, nil
}

// GetProfile returns p's profile to its owner, an Admin, any issuer-role
// actor, or a viewer the owner authorized.
func (s *Service) GetProfile(ctx context.Context, actor id.Principal, p id.Principal) (_ *models.User, err error) {
	ctx, end := tracing.Start(ctx, s.tracer, "identity.GetProfile")
	defer end(&err)

	a, err := s.gate.Authorize(ctx, policy.OpGetProfile, "", actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeResource(ctx, policy.OpGetProfile, "", a, policy.Resource{Subject: p}); err != nil {
		return nil, err
	}
	u, err := s.users.FindByPrincipal(ctx, p)
	if err != nil {
		return nil, wrapUserErr(err, "failed to load user")
	}
	return u, nil
}

// UpdateProfile edits the actor's own non-role fields.
func (s *Service) UpdateProfile(ctx context.Context, actor id.Principal, upd models.ProfileUpdate) (_ *models.User, err error) {
	start := time.Now()
	defer s.observe("update_profile", start)
	ctx, end := tracing.Start(ctx, s.tracer, "identity.UpdateProfile")
	defer end(&err)

	now := requestcontext.Now(ctx)
	var user *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.gate.Authorize(ctx, policy.OpUpdateProfile, "", actor); err != nil {
			return err
		}
		if err := upd.Normalize(); err != nil {
			return err
		}
		var err error
		user, err = s.users.Execute(ctx, actor,
			func(u *models.User) error {
				if !u.IsActive() {
					return dErrors.New(dErrors.CodeUnauthorized, "actor is inactive")
				}
				return nil
			},
			func(u *models.User) { upd.Apply(u, now) },
		)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.EventProfileUpdated, actor, actor)
	})
	if err != nil {
		return nil, wrapUserErr(err, "failed to update profile")
	}
	s.logger.InfoContext(ctx, string(audit.EventProfileUpdated),
		"principal", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	return user, nil
}

// ListByRole is open to any registered actor.
func (s *Service) ListByRole(ctx context.Context, actor id.Principal, role id.Role) ([]id.Principal, error) {
	if _, err := s.gate.Authorize(ctx, policy.OpListUsersByRole, "", actor); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, dErrors.Invalid("role", "unknown role")
	}
	out, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, wrapUserErr(err, "failed to list users")
	}
	return out, nil
}

// ListAll is Admin only.
func (s *Service) ListAll(ctx context.Context, actor id.Principal) ([]id.Principal, error) {
	if _, err := s.gate.Authorize(ctx, policy.OpListAllUsers, "", actor); err != nil {
		return nil, err
	}
	out, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, wrapUserErr(err, "failed to list users")
	}
	return out, nil
}

// CountByRole feeds the dashboard; callers gate it themselves.
func (s *Service) CountByRole(ctx context.Context) (map[id.Role]int, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, wrapUserErr(err, "failed to count users")
	}
	return counts, nil
}

// Bootstrap seeds the first Admin at startup. Repeated runs are no-ops; a
// principal already registered under another role is a configuration error.
func (s *Service) Bootstrap(ctx context.Context, p id.Principal, name string) error {
	existing, err := s.users.FindByPrincipal(ctx, p)
	if err == nil {
		if existing.Role != id.RoleAdmin {
			return dErrors.Newf(dErrors.CodeInvalidState, "bootstrap principal %s is registered as %s", p, existing.Role)
		}
		return nil
	}
	if !dErrors.HasCode(wrapUserErr(err, ""), dErrors.CodeNotRegistered) {
		return wrapUserErr(err, "failed to load bootstrap admin")
	}

	u, err := models.NewUser(p, id.RoleAdmin, name, "", "", requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventUserRegistered, p, p)
	})
	if err != nil && !dErrors.HasCode(wrapUserErr(err, ""), dErrors.CodeAlreadyRegistered) {
		return wrapUserErr(err, "failed to seed bootstrap admin")
	}
	s.logger.InfoContext(ctx, "bootstrap admin seeded", "principal", p)
	return nil
}
