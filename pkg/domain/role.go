package domain

import (
	"strings"

	dErrors "credreg/pkg/domain-errors"
)

// Role is the coarse administrative grant attached to a registered principal.
// It is fixed at registration; there is no role change operation.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleSubject     Role = "subject"
	RoleInstitution Role = "institution"
	RoleCertifier   Role = "certifier"
	RoleEmployer    Role = "employer"
	RoleOrganizer   Role = "organizer"
)

var validRoles = map[Role]bool{
	RoleAdmin:       true,
	RoleSubject:     true,
	RoleInstitution: true,
	RoleCertifier:   true,
	RoleEmployer:    true,
	RoleOrganizer:   true,
}

// ParseRole constructs a Role from external input (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "role is required")
	}
	if !validRoles[r] {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown role %q", s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsIssuer reports whether the role can author records in some domain.
func (r Role) IsIssuer() bool {
	_, ok := DomainForIssuerRole(r)
	return ok
}

func (r Role) String() string {
	return string(r)
}
