package models

import (
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

// RegisterUserRequest is the Admin's input to RegisterUser.
type RegisterUserRequest struct {
	Principal        string `json:"principal"`
	Role             string `json:"role"`
	DisplayName      string `json:"display_name"`
	OrganizationName string `json:"organization_name,omitempty"`
	Email            string `json:"email,omitempty"`

	parsedPrincipal id.Principal
	parsedRole      id.Role
}

// Validate parses the principal and role. Field lengths are checked by NewUser.
func (r *RegisterUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := id.ParsePrincipal(r.Principal)
	if err != nil {
		return dErrors.Invalid("principal", err.Error())
	}
	role, err := id.ParseRole(r.Role)
	if err != nil {
		return dErrors.Invalid("role", err.Error())
	}
	r.parsedPrincipal = p
	r.parsedRole = role
	return nil
}

func (r *RegisterUserRequest) ParsedPrincipal() id.Principal { return r.parsedPrincipal }
func (r *RegisterUserRequest) ParsedRole() id.Role           { return r.parsedRole }

// Validate makes ProfileUpdate usable as a request body.
func (p *ProfileUpdate) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return p.Normalize()
}

// ViewerRequest names the principal an owner authorizes.
type ViewerRequest struct {
	Viewer string `json:"viewer"`

	parsedViewer id.Principal
}

func (r *ViewerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := id.ParsePrincipal(r.Viewer)
	if err != nil {
		return dErrors.Invalid("viewer", err.Error())
	}
	r.parsedViewer = p
	return nil
}

func (r *ViewerRequest) ParsedViewer() id.Principal { return r.parsedViewer }
