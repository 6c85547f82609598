package models

import (
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

const (
	MaxOrgNameLength       = 128
	MaxRegistrationRef     = 128
	MaxMetadataValueLength = 256
)

// IssuerRegistration is an issuer's self-declared accreditation in one
// domain. It is created once and never changes.
type IssuerRegistration struct {
	Domain          id.Domain         `json:"domain"`
	Principal       id.Principal      `json:"principal"`
	OrgName         string            `json:"org_name"`
	OrgMetadata     map[string]string `json:"org_metadata"`
	RegistrationRef string            `json:"registration_ref"`
	RegisteredAt    time.Time         `json:"registered_at"`
}

// metadataKeys maps each domain's allowed metadata keys to whether they are required.
var metadataKeys = map[id.Domain]map[string]bool{
	id.DomainEducation:     {"country": false, "website": false},
	id.DomainCertification: {"website": false, "country": false},
	id.DomainEmployment:    {"industry": true, "website": false, "country": false},
	id.DomainAchievement:   {"organization_type": true, "website": false},
}

// MetadataKeys returns the sorted metadata keys accepted in d.
func MetadataKeys(d id.Domain) []string {
	return slices.Sorted(maps.Keys(metadataKeys[d]))
}

// NewIssuerRegistration validates and builds a registration.
func NewIssuerRegistration(d id.Domain, p id.Principal, orgName string, metadata map[string]string, ref string, now time.Time) (*IssuerRegistration, error) {
	allowed, ok := metadataKeys[d]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown domain %q", d)
	}

	orgName = strings.TrimSpace(orgName)
	switch {
	case orgName == "":
		return nil, dErrors.Invalid("org_name", "organization name is required")
	case utf8.RuneCountInString(orgName) > MaxOrgNameLength:
		return nil, dErrors.Invalid("org_name", "organization name must be 128 characters or less")
	}
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, dErrors.Invalid("registration_ref", "registration reference is required")
	case utf8.RuneCountInString(ref) > MaxRegistrationRef:
		return nil, dErrors.Invalid("registration_ref", "registration reference must be 128 characters or less")
	}

	meta := make(map[string]string, len(metadata))
	seen := make(map[string]struct{}, len(metadata))
	for k, v := range metadata {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, ok := allowed[key]; !ok {
			return nil, dErrors.Invalid("org_metadata."+k, "unknown metadata key")
		}
		// Keys are case-insensitive; two spellings of one key are ambiguous.
		if _, dup := seen[key]; dup {
			return nil, dErrors.Invalid("org_metadata."+key, "duplicate metadata key")
		}
		seen[key] = struct{}{}
		v = strings.TrimSpace(v)
		if utf8.RuneCountInString(v) > MaxMetadataValueLength {
			return nil, dErrors.Invalid("org_metadata."+key, "value must be 256 characters or less")
		}
		if v != "" {
			meta[key] = v
		}
	}
	for _, key := range MetadataKeys(d) {
		if allowed[key] && meta[key] == "" {
			return nil, dErrors.Invalid("org_metadata."+key, "is required")
		}
	}

	return &IssuerRegistration{
		Domain:          d,
		Principal:       p,
		OrgName:         orgName,
		OrgMetadata:     meta,
		RegistrationRef: ref,
		RegisteredAt:    now,
	}, nil
}

// Clone returns a deep copy.
func (r *IssuerRegistration) Clone() *IssuerRegistration {
	if r == nil {
		return nil
	}
	c := *r
	c.OrgMetadata = maps.Clone(r.OrgMetadata)
	return &c
}
