package models

import (
	"encoding/json"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

type RegisterIssuerRequest struct {
	OrgName         string            `json:"org_name"`
	OrgMetadata     map[string]string `json:"org_metadata,omitempty"`
	RegistrationRef string            `json:"registration_ref"`
}

// Validate checks presence only; NewIssuerRegistration applies the domain schema.
func (r *RegisterIssuerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

type CreateRecordRequest struct {
	Subject     string          `json:"subject"`
	Payload     json.RawMessage `json:"payload"`
	DocumentRef string          `json:"document_ref,omitempty"`

	parsedSubject id.Principal
}

func (r *CreateRecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := id.ParsePrincipal(r.Subject)
	if err != nil {
		return dErrors.Invalid("subject", err.Error())
	}
	if len(r.Payload) == 0 {
		return dErrors.Invalid("payload", "payload is required")
	}
	r.parsedSubject = p
	return nil
}

func (r *CreateRecordRequest) ParsedSubject() id.Principal { return r.parsedSubject }

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}
