package models

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

// State is the verification state of a record.
type State string

const (
	StateUnverified State = "unverified"
	StatePending    State = "pending_verification"
	StateVerified   State = "verified"
	StateRejected   State = "rejected"
)

// AllStates lists states in workflow order.
func AllStates() []State {
	return []State{StateUnverified, StatePending, StateVerified, StateRejected}
}

const (
	MaxDocumentRefLength = 256
	MaxReasonLength      = 512

	// DefaultRejectionReason replaces an empty reason.
	DefaultRejectionReason = "No reason provided"
)

// Record is a credential authored by Issuer about Subject.
//
// Invariants:
//   - ID is unique within Domain and never reused
//   - Payload and DocumentRef never change after creation
//   - Verified is terminal
//   - RejectionReason is set only while State is Rejected
type Record struct {
	ID              uint64          `json:"id"`
	Domain          id.Domain       `json:"domain"`
	Subject         id.Principal    `json:"subject"`
	Issuer          id.Principal    `json:"issuer"`
	Payload         json.RawMessage `json:"payload"`
	DocumentRef     string          `json:"document_ref,omitempty"`
	State           State           `json:"state"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
}

// NewRecord builds an unverified record. The payload must already be
// normalized by DecodePayload; the store assigns ID.
func NewRecord(d id.Domain, subject, issuer id.Principal, payload json.RawMessage, documentRef string, now time.Time) (*Record, error) {
	ref, err := NormalizeDocumentRef(documentRef)
	if err != nil {
		return nil, err
	}
	return &Record{
		Domain:      d,
		Subject:     subject,
		Issuer:      issuer,
		Payload:     payload,
		DocumentRef: ref,
		State:       StateUnverified,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *Record) IsPending() bool {
	return r.State == StatePending
}

func (r *Record) IsVerified() bool {
	return r.State == StateVerified
}

// CanRequestVerification allows a request from Unverified or Rejected.
func (r *Record) CanRequestVerification() error {
	switch r.State {
	case StateUnverified, StateRejected:
		return nil
	case StatePending:
		return dErrors.New(dErrors.CodeInvalidState, "verification already requested")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "record is already verified")
	}
}

// ApplyRequestVerification moves the record to Pending and clears any
// previous rejection reason.
func (r *Record) ApplyRequestVerification(now time.Time) {
	r.State = StatePending
	r.RejectionReason = ""
	r.UpdatedAt = now
}

// CanDecide allows approval or rejection only while Pending.
func (r *Record) CanDecide() error {
	if r.State != StatePending {
		return dErrors.Newf(dErrors.CodeInvalidState, "record is %s, not pending verification", r.State)
	}
	return nil
}

func (r *Record) ApplyApproval(now time.Time) {
	r.State = StateVerified
	r.UpdatedAt = now
	r.VerifiedAt = &now
}

// ApplyRejection stores the normalized reason.
func (r *Record) ApplyRejection(reason string, now time.Time) {
	r.State = StateRejected
	r.RejectionReason = NormalizeReason(reason)
	r.UpdatedAt = now
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = append(json.RawMessage(nil), r.Payload...)
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}

// NormalizeReason trims the reason, substitutes the default for an empty one
// and truncates at MaxReasonLength runes.
func NormalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return DefaultRejectionReason
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		reason = strings.TrimSpace(string([]rune(reason)[:MaxReasonLength]))
	}
	return reason
}

// NormalizeDocumentRef accepts an empty reference or an opaque token without
// whitespace, typically a content hash.
func NormalizeDocumentRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if len(ref) > MaxDocumentRefLength {
		return "", dErrors.Invalid("document_ref", "must be 256 characters or less")
	}
	if strings.IndexFunc(ref, unicode.IsSpace) >= 0 {
		return "", dErrors.Invalid("document_ref", "must not contain whitespace")
	}
	return ref, nil
}
