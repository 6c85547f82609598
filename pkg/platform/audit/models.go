package audit

import (
	"context"
	"time"

	id "credreg/pkg/domain"
)

// EventCategory classifies audit events by purpose so stores and sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers registry and credential changes that form the
	// accountable trail: registrations, record authorship, verification decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication outcomes and access-affecting changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Actor performed the action; Subject is the principal it concerns.
	Actor     id.Principal `json:"actor,omitempty"`
	Subject   id.Principal `json:"subject,omitempty"`
	Domain    id.Domain    `json:"domain,omitempty"`
	RecordID  uint64       `json:"record_id,omitempty"`
	Decision  string       `json:"decision,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// Involves reports whether p acted in or is the subject of the event.
func (e Event) Involves(p id.Principal) bool {
	return e.Actor == p || e.Subject == p
}

type AuditEvent string

const (
	// Identity events
	EventUserRegistered  AuditEvent = "user_registered"
	EventUserDeactivated AuditEvent = "user_deactivated"
	EventUserReactivated AuditEvent = "user_reactivated"
	EventProfileUpdated  AuditEvent = "profile_updated"
	EventViewerGranted   AuditEvent = "viewer_granted"
	EventViewerRevoked   AuditEvent = "viewer_revoked"

	// Credential events
	EventIssuerRegistered      AuditEvent = "issuer_registered"
	EventRecordCreated         AuditEvent = "record_created"
	EventVerificationRequested AuditEvent = "verification_requested"
	EventVerificationApproved  AuditEvent = "verification_approved"
	EventVerificationRejected  AuditEvent = "verification_rejected"

	// Auth events
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered:        CategoryCompliance,
	EventIssuerRegistered:      CategoryCompliance,
	EventRecordCreated:         CategoryCompliance,
	EventVerificationApproved:  CategoryCompliance,
	EventVerificationRejected:  CategoryCompliance,
	EventVerificationRequested: CategoryCompliance,

	EventUserDeactivated: CategorySecurity,
	EventUserReactivated: CategorySecurity,
	EventLoginFailed:     CategorySecurity,
	EventViewerGranted:   CategorySecurity,
	EventViewerRevoked:   CategorySecurity,

	EventProfileUpdated: CategoryOperations,
	EventLoginSucceeded: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by queryable stores.
type Reader interface {
	// ListByPrincipal returns events the principal acted in or is the subject
	// of, oldest first, capped at limit (0 means no cap).
	ListByPrincipal(ctx context.Context, p id.Principal, limit int) ([]Event, error)
	// ListRecent returns the latest events, newest first.
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
