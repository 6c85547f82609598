package domain

import (
	"strings"

	dErrors "credreg/pkg/domain-errors"
)

// Domain is a record category. Domains share the verification workflow and
// differ only in payload schema and the role allowed to issue.
type Domain string

const (
	DomainEducation     Domain = "education"
	DomainCertification Domain = "certification"
	DomainEmployment    Domain = "employment"
	DomainAchievement   Domain = "achievement"
)

var issuerRoles = map[Domain]Role{
	DomainEducation:     RoleInstitution,
	DomainCertification: RoleCertifier,
	DomainEmployment:    RoleEmployer,
	DomainAchievement:   RoleOrganizer,
}

// AllDomains returns every domain in a stable order.
func AllDomains() []Domain {
	return []Domain{DomainEducation, DomainCertification, DomainEmployment, DomainAchievement}
}

// ParseDomain constructs a Domain from external input (case-insensitive).
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := issuerRoles[d]; !ok {
		return "", dErrors.Newf(dErrors.CodeNotFound, "unknown record domain %q", s)
	}
	return d, nil
}

// IssuerRole is the role a principal must hold to register as an issuer here.
func (d Domain) IssuerRole() Role {
	return issuerRoles[d]
}

func (d Domain) IsValid() bool {
	_, ok := issuerRoles[d]
	return ok
}

func (d Domain) String() string {
	return string(d)
}

// DomainForIssuerRole is the inverse of IssuerRole.
func DomainForIssuerRole(r Role) (Domain, bool) {
	for d, role := range issuerRoles {
		if role == r {
			return d, true
		}
	}
	return "", false
}
