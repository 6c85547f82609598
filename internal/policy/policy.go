// Package policy is the single authorization gate for registry operations.
//
// Every boundary operation is described by a Rule in a table keyed by
// {operation, domain}. Services call Gate.Authorize before touching state and,
// for record-scoped operations, Gate.AuthorizeResource once the record's
// parties are known. Keeping the rules in one table means the four record
// domains cannot drift apart.
package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	"credreg/pkg/platform/sentinel"
)

type Operation string

const (
	OpRegisterUser    Operation = "register_user"
	OpDeactivateUser  Operation = "deactivate_user"
	OpReactivateUser  Operation = "reactivate_user"
	OpGetProfile      Operation = "get_profile"
	OpUpdateProfile   Operation = "update_profile"
	OpListUsersByRole Operation = "list_users_by_role"
	OpListAllUsers    Operation = "list_all_users"
	OpAuthorizeViewer Operation = "authorize_viewer"
	OpRevokeViewer    Operation = "revoke_viewer"
	OpListViewers     Operation = "list_viewers"
	OpCheckViewer     Operation = "check_viewer"

	OpRegisterIssuer Operation = "register_issuer"
	OpListIssuers    Operation = "list_issuers"

	OpCreateRecord         Operation = "create_record"
	OpGetRecord            Operation = "get_record"
	OpListSubjectRecords   Operation = "list_subject_records"
	OpRequestVerification  Operation = "request_verification"
	OpApproveVerification  Operation = "approve_verification"
	OpRejectVerification   Operation = "reject_verification"
	OpListPendingForIssuer Operation = "list_pending_for_issuer"

	OpListSubjects   Operation = "list_subjects"
	OpListAllRecords Operation = "list_all_records"
	OpDashboard      Operation = "dashboard"
	OpReadAudit      Operation = "read_audit"
)

// Relation constrains the actor relative to a resource's parties.
type Relation int

const (
	RelNone Relation = iota
	// RelSubject: actor is the record's subject.
	RelSubject
	// RelIssuer: actor is the record's issuer.
	RelIssuer
	// RelParty: actor is the subject, the issuer, or an Admin.
	RelParty
	// RelSelfOrAdmin: actor is the resource owner or an Admin.
	RelSelfOrAdmin
	// RelSubjectView: the subject or an Admin sees everything; a registered
	// issuer of the domain sees only what it authored.
	RelSubjectView
	// RelProfileViewer: actor owns the profile, is an Admin, holds an issuer
	// role, or was authorized as a viewer by the owner.
	RelProfileViewer
)

// Rule declares what an operation requires of its actor.
type Rule struct {
	// Roles the actor must hold; empty means any registered role.
	Roles []id.Role
	// RoleErr is returned when Roles does not match. Defaults to unauthorized.
	RoleErr dErrors.Code
	// Active requires an active profile. Set for every write.
	Active bool
	// RegisteredIssuer requires an issuer registration in the domain.
	RegisteredIssuer bool
	Relation         Relation
}

// Key addresses a rule. Domain is empty for domain-independent operations.
type Key struct {
	Op     Operation
	Domain id.Domain
}

// Actor is the resolved acting principal.
type Actor struct {
	Principal id.Principal
	Role      id.Role
	Active    bool
}

func (a Actor) IsAdmin() bool {
	return a.Role == id.RoleAdmin
}

// Scope tells a list operation how much the actor may see.
type Scope int

const (
	ScopeAll Scope = iota
	// ScopeAuthored limits results to records the actor issued.
	ScopeAuthored
)

// Resource names the parties of the object being accessed.
type Resource struct {
	Subject id.Principal
	Issuer  id.Principal
}

// ActorResolver loads the acting principal's profile. It returns an error
// wrapping sentinel.ErrNotFound for unknown principals.
type ActorResolver interface {
	ResolveActor(ctx context.Context, p id.Principal) (Actor, error)
}

// IssuerDirectory answers issuer-registration questions.
type IssuerDirectory interface {
	IsRegisteredIssuer(ctx context.Context, d id.Domain, p id.Principal) (bool, error)
}

// ViewerDirectory answers profile viewer-grant questions.
type ViewerDirectory interface {
	IsAuthorizedViewer(ctx context.Context, owner, viewer id.Principal) (bool, error)
}

// Gate evaluates the rule table.
type Gate struct {
	rules    map[Key]Rule
	actors   ActorResolver
	issuers  IssuerDirectory
	viewers  ViewerDirectory
	observer func(op Operation, allowed bool)
}

type Option func(*Gate)

// WithObserver reports every decision, typically to a metrics counter.
func WithObserver(fn func(op Operation, allowed bool)) Option {
	return func(g *Gate) {
		g.observer = fn
	}
}

// WithViewerDirectory sets the grant lookup. By default the gate uses the
// ActorResolver when it also implements ViewerDirectory.
func WithViewerDirectory(viewers ViewerDirectory) Option {
	return func(g *Gate) {
		g.viewers = viewers
	}
}

// WithRules replaces the default table.
func WithRules(rules map[Key]Rule) Option {
	return func(g *Gate) {
		g.rules = rules
	}
}

func NewGate(actors ActorResolver, issuers IssuerDirectory, opts ...Option) *Gate {
	g := &Gate{rules: DefaultRules(), actors: actors, issuers: issuers}
	g.viewers, _ = actors.(ViewerDirectory)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetIssuerDirectory wires the directory after construction for callers
// whose issuer stores are built after the gate.
func (g *Gate) SetIssuerDirectory(issuers IssuerDirectory) {
	g.issuers = issuers
}

// DefaultRules is the registry's authorization table.
func DefaultRules() map[Key]Rule {
	admin := []id.Role{id.RoleAdmin}
	rules := map[Key]Rule{
		{Op: OpRegisterUser}:    {Roles: admin, Active: true},
		{Op: OpDeactivateUser}:  {Roles: admin, Active: true},
		{Op: OpReactivateUser}:  {Roles: admin, Active: true},
		{Op: OpGetProfile}:      {Relation: RelProfileViewer},
		{Op: OpUpdateProfile}:   {Active: true},
		{Op: OpListUsersByRole}: {},
		{Op: OpListAllUsers}:    {Roles: admin},
		{Op: OpAuthorizeViewer}: {Active: true},
		{Op: OpRevokeViewer}:    {Active: true},
		{Op: OpListViewers}:     {Relation: RelSelfOrAdmin},
		{Op: OpCheckViewer}:     {},
		{Op: OpListSubjects}:    {},
		{Op: OpDashboard}:       {},
		{Op: OpReadAudit}:       {Roles: admin},
	}
	for _, d := range id.AllDomains() {
		issuer := []id.Role{d.IssuerRole()}
		rules[Key{OpRegisterIssuer, d}] = Rule{Roles: issuer, RoleErr: dErrors.CodeRoleMismatch, Active: true}
		rules[Key{OpListIssuers, d}] = Rule{}
		rules[Key{OpCreateRecord, d}] = Rule{Roles: issuer, RoleErr: dErrors.CodeRoleMismatch, Active: true, RegisteredIssuer: true}
		rules[Key{OpGetRecord, d}] = Rule{Relation: RelParty}
		rules[Key{OpListSubjectRecords, d}] = Rule{Relation: RelSubjectView}
		rules[Key{OpRequestVerification, d}] = Rule{Active: true, Relation: RelSubject}
		rules[Key{OpApproveVerification, d}] = Rule{Active: true, Relation: RelIssuer}
		rules[Key{OpRejectVerification, d}] = Rule{Active: true, Relation: RelIssuer}
		rules[Key{OpListPendingForIssuer, d}] = Rule{Relation: RelSelfOrAdmin}
		rules[Key{OpListAllRecords, d}] = Rule{Roles: admin}
	}
	return rules
}

// Authorize resolves the actor and checks the actor-only parts of the rule:
// registration, activity, role and issuer registration, in that order.
func (g *Gate) Authorize(ctx context.Context, op Operation, d id.Domain, principal id.Principal) (Actor, error) {
	actor, err := g.authorize(ctx, op, d, principal)
	g.observe(op, err == nil)
	return actor, err
}

func (g *Gate) authorize(ctx context.Context, op Operation, d id.Domain, principal id.Principal) (Actor, error) {
	rule, ok := g.rules[Key{op, d}]
	if !ok {
		return Actor{}, dErrors.Newf(dErrors.CodeInternal, "no policy for %s/%s", op, d)
	}
	if principal.IsZero() {
		return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "actor is required")
	}

	actor, err := g.actors.ResolveActor(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotRegistered) {
			return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "actor is not registered")
		}
		return Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actor")
	}

	if rule.Active && !actor.Active {
		return actor, dErrors.New(dErrors.CodeUnauthorized, "actor is inactive")
	}
	if len(rule.Roles) > 0 && !slices.Contains(rule.Roles, actor.Role) {
		code := rule.RoleErr
		if code == "" {
			code = dErrors.CodeUnauthorized
		}
		return actor, dErrors.Newf(code, "%s requires role %v", op, rule.Roles)
	}
	if rule.RegisteredIssuer {
		registered, err := g.isRegistered(ctx, d, actor.Principal)
		if err != nil {
			return actor, err
		}
		if !registered {
			return actor, dErrors.Newf(dErrors.CodeNotRegistered, "actor is not a registered %s issuer", d)
		}
	}
	return actor, nil
}

// AuthorizeResource checks the rule's relation between actor and res.
func (g *Gate) AuthorizeResource(ctx context.Context, op Operation, d id.Domain, actor Actor, res Resource) (Scope, error) {
	scope, err := g.authorizeResource(ctx, op, d, actor, res)
	g.observe(op, err == nil)
	return scope, err
}

func (g *Gate) authorizeResource(ctx context.Context, op Operation, d id.Domain, actor Actor, res Resource) (Scope, error) {
	rule, ok := g.rules[Key{op, d}]
	if !ok {
		return ScopeAll, dErrors.Newf(dErrors.CodeInternal, "no policy for %s/%s", op, d)
	}

	p := actor.Principal
	switch rule.Relation {
	case RelNone:
		return ScopeAll, nil
	case RelSubject:
		if p == res.Subject {
			return ScopeAll, nil
		}
		return ScopeAll, dErrors.New(dErrors.CodeUnauthorized, "only the record subject may do this")
	case RelIssuer:
		if p == res.Issuer {
			return ScopeAll, nil
		}
		return ScopeAll, dErrors.New(dErrors.CodeUnauthorized, "only the record issuer may do this")
	case RelParty:
		if p == res.Subject || p == res.Issuer || actor.IsAdmin() {
			return ScopeAll, nil
		}
		return ScopeAll, dErrors.New(dErrors.CodeUnauthorized, "not a party to this record")
	case RelSelfOrAdmin:
		if p == res.Subject || actor.IsAdmin() {
			return ScopeAll, nil
		}
		return ScopeAll, dErrors.New(dErrors.CodeUnauthorized, "may only query your own resources")
	case RelSubjectView:
		if p == res.Subject || actor.IsAdmin() {
			return ScopeAll, nil
		}
		if actor.Role == d.IssuerRole() {
			registered, err := g.isRegistered(ctx, d, p)
			if err != nil {
				return ScopeAll, err
			}
			if registered {
				return ScopeAuthored, nil
			}
		}
		return ScopeAll, dErrors.New(dErrors.CodeUnauthorized, "not permitted to view this subject's records")
	case RelProfileViewer:
		if p == res.Subject || actor.IsAdmin() || actor.Role.IsIssuer() {
			return ScopeAll, nil
		}
		granted, err := g.isViewer(ctx, res.Subject, p)
		if err != nil {
			return ScopeAll, err
		}
		if granted {
			return ScopeAll, nil
		}
		return ScopeAll, dErrors.New(dErrors.CodeUnauthorized, "not authorized to view this profile")
	default:
		return ScopeAll, dErrors.Newf(dErrors.CodeInternal, "unknown relation %d", rule.Relation)
	}
}

func (g *Gate) isRegistered(ctx context.Context, d id.Domain, p id.Principal) (bool, error) {
	if g.issuers == nil {
		return false, dErrors.New(dErrors.CodeInternal, "issuer directory not configured")
	}
	ok, err := g.issuers.IsRegisteredIssuer(ctx, d, p)
	if err != nil {
		return false, dErrors.Wrap(fmt.Errorf("issuer lookup: %w", err), dErrors.CodeInternal, "failed to check issuer registration")
	}
	return ok, nil
}

func (g *Gate) isViewer(ctx context.Context, owner, viewer id.Principal) (bool, error) {
	if g.viewers == nil {
		return false, nil
	}
	ok, err := g.viewers.IsAuthorizedViewer(ctx, owner, viewer)
	if err != nil {
		return false, dErrors.Wrap(fmt.Errorf("viewer lookup: %w", err), dErrors.CodeInternal, "failed to check viewer grant")
	}
	return ok, nil
}

func (g *Gate) observe(op Operation, allowed bool) {
	if g.observer != nil {
		g.observer(op, allowed)
	}
}
