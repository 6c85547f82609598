package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	"credreg/pkg/email"
)

const (
	MaxDisplayNameLength  = 128
	MaxOrganizationLength = 128
	MaxTitleLength        = 128
	MaxBioLength          = 1024
)

// User is the registry profile for one principal.
//
// Invariants:
//   - exactly one User per Principal
//   - Role is fixed at registration
//   - profiles are never deleted; Active=false denies writes but keeps reads
type User struct {
	Principal        id.Principal `json:"principal"`
	Role             id.Role      `json:"role"`
	DisplayName      string       `json:"display_name"`
	OrganizationName string       `json:"organization_name,omitempty"`
	Email            string       `json:"email,omitempty"`
	Title            string       `json:"title,omitempty"`
	Bio              string       `json:"bio,omitempty"`
	Active           bool         `json:"active"`
	RegisteredAt     time.Time    `json:"registered_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NewUser validates and constructs an active profile.
func NewUser(p id.Principal, role id.Role, name, org, mail string, now time.Time) (*User, error) {
	if p.IsZero() {
		return nil, dErrors.Invalid("principal", "principal is required")
	}
	if !role.IsValid() {
		return nil, dErrors.Invalid("role", "unknown role")
	}
	u := &User{
		Principal:    p,
		Role:         role,
		Active:       true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	var err error
	if u.DisplayName, err = normalizeName(name); err != nil {
		return nil, err
	}
	if u.OrganizationName, err = normalizeOrg(org); err != nil {
		return nil, err
	}
	if u.Email, err = normalizeEmail(mail); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) IsActive() bool {
	return u.Active
}

// CanDeactivate rejects self-deactivation so an Admin cannot lock itself out.
func (u *User) CanDeactivate(actor id.Principal) error {
	if u.Principal == actor {
		return dErrors.New(dErrors.CodeInvalidState, "an admin cannot deactivate itself")
	}
	return nil
}

// ApplyDeactivation marks the profile inactive. It reports whether anything changed.
func (u *User) ApplyDeactivation(now time.Time) bool {
	if !u.Active {
		return false
	}
	u.Active = false
	u.UpdatedAt = now
	return true
}

// ApplyReactivation marks the profile active. It reports whether anything changed.
func (u *User) ApplyReactivation(now time.Time) bool {
	if u.Active {
		return false
	}
	u.Active = true
	u.UpdatedAt = now
	return true
}

// ProfileUpdate carries the self-editable fields. Nil leaves a field as is;
// an empty string clears the optional ones.
type ProfileUpdate struct {
	DisplayName      *string `json:"display_name,omitempty"`
	OrganizationName *string `json:"organization_name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Title            *string `json:"title,omitempty"`
	Bio              *string `json:"bio,omitempty"`
}

// IsEmpty reports whether the update touches nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.DisplayName == nil && p.OrganizationName == nil && p.Email == nil &&
		p.Title == nil && p.Bio == nil
}

// Normalize validates the update in place.
func (p *ProfileUpdate) Normalize() error {
	if p.IsEmpty() {
		return dErrors.Invalid("profile", "no fields to update")
	}
	if p.DisplayName != nil {
		v, err := normalizeName(*p.DisplayName)
		if err != nil {
			return err
		}
		p.DisplayName = &v
	}
	if p.OrganizationName != nil {
		v, err := normalizeOrg(*p.OrganizationName)
		if err != nil {
			return err
		}
		p.OrganizationName = &v
	}
	if p.Email != nil {
		v, err := normalizeEmail(*p.Email)
		if err != nil {
			return err
		}
		p.Email = &v
	}
	if p.Title != nil {
		v, err := normalizeText("title", *p.Title, MaxTitleLength)
		if err != nil {
			return err
		}
		p.Title = &v
	}
	if p.Bio != nil {
		v, err := normalizeText("bio", *p.Bio, MaxBioLength)
		if err != nil {
			return err
		}
		p.Bio = &v
	}
	return nil
}

// Apply writes a normalized update onto u.
func (p ProfileUpdate) Apply(u *User, now time.Time) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.OrganizationName != nil {
		u.OrganizationName = *p.OrganizationName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Title != nil {
		u.Title = *p.Title
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	u.UpdatedAt = now
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.Invalid("display_name", "display name is required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", dErrors.Invalid("display_name", "display name must be 128 characters or less")
	}
	return name, nil
}

func normalizeOrg(org string) (string, error) {
	org = strings.TrimSpace(org)
	if utf8.RuneCountInString(org) > MaxOrganizationLength {
		return "", dErrors.Invalid("organization_name", "organization name must be 128 characters or less")
	}
	return org, nil
}

func normalizeText(field, v string, limit int) (string, error) {
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) > limit {
		return "", dErrors.Invalid(field, fmt.Sprintf("%s must be %d characters or less", field, limit))
	}
	return v, nil
}

// ValidateViewerGrant checks that owner may name viewer as an authorized
// viewer of its profile.
func ValidateViewerGrant(owner, viewer id.Principal) error {
	switch {
	case viewer.IsZero():
		return dErrors.Invalid("viewer", "viewer is required")
	case viewer == owner:
		return dErrors.Invalid("viewer", "a profile owner is always a viewer")
	}
	return nil
}

func normalizeEmail(mail string) (string, error) {
	mail = email.Normalize(mail)
	if mail == "" {
		return "", nil
	}
	if !email.Valid(mail) {
		return "", dErrors.Invalid("email", "email is not a valid address")
	}
	return mail, nil
}
