package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

const alice = id.Principal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

func TestNewUser(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		u, err := NewUser(alice, id.RoleSubject, "  Alice ", "", "Alice@Example.ORG", now)
		require.NoError(t, err)
		assert.Equal(t, "Alice", u.DisplayName)
		assert.Equal(t, "Alice@example.org", u.Email)
		assert.True(t, u.Active)
		assert.Equal(t, now, u.RegisteredAt)
	})

	tests := []struct {
		name  string
		role  id.Role
		dname string
		org   string
		mail  string
		field string
	}{
		{"empty name", id.RoleSubject, "  ", "", "", "display_name"},
		{"long name", id.RoleSubject, strings.Repeat("x", 129), "", "", "display_name"},
		{"long org", id.RoleInstitution, "Uni", strings.Repeat("x", 129), "", "organization_name"},
		{"bad email", id.RoleSubject, "Alice", "", "alice", "email"},
		{"bad role", id.Role("wizard"), "Alice", "", "", "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(alice, tt.role, tt.dname, tt.org, tt.mail, now)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidPayload))
			assert.Equal(t, tt.field, dErrors.FieldOf(err))
		})
	}
}

func TestActivationToggles(t *testing.T) {
	now := time.Now()
	u, err := NewUser(alice, id.RoleSubject, "Alice", "", "", now)
	require.NoError(t, err)

	assert.False(t, u.ApplyReactivation(now), "already active is a no-op")
	assert.True(t, u.ApplyDeactivation(now.Add(time.Minute)))
	assert.False(t, u.Active)
	assert.Equal(t, now.Add(time.Minute), u.UpdatedAt)
	assert.False(t, u.ApplyDeactivation(now.Add(time.Hour)))
	assert.Equal(t, now.Add(time.Minute), u.UpdatedAt)

	assert.Error(t, u.CanDeactivate(alice))
}

func TestProfileUpdate(t *testing.T) {
	now := time.Now()
	u, err := NewUser(alice, id.RoleInstitution, "Alice", "Old Org", "a@example.org", now)
	require.NoError(t, err)

	name, org, mail := " New Name ", "", ""
	upd := ProfileUpdate{DisplayName: &name, OrganizationName: &org, Email: &mail}
	require.NoError(t, upd.Normalize())
	upd.Apply(u, now.Add(time.Second))

	assert.Equal(t, "New Name", u.DisplayName)
	assert.Empty(t, u.OrganizationName)
	assert.Empty(t, u.Email)
	assert.Equal(t, id.RoleInstitution, u.Role)

	empty := ProfileUpdate{}
	assert.Error(t, empty.Normalize())
}

func TestProfileDocumentFields(t *testing.T) {
	now := time.Now()
	u, err := NewUser(alice, id.RoleSubject, "Alice", "", "", now)
	require.NoError(t, err)

	title, bio := " Software Engineer ", "Experienced developer"
	upd := ProfileUpdate{Title: &title, Bio: &bio}
	require.NoError(t, upd.Normalize())
	upd.Apply(u, now)
	assert.Equal(t, "Software Engineer", u.Title)
	assert.Equal(t, "Experienced developer", u.Bio)
	assert.Equal(t, "Alice", u.DisplayName)

	long := strings.Repeat("b", MaxBioLength+1)
	tooLong := ProfileUpdate{Bio: &long}
	err = tooLong.Normalize()
	require.Error(t, err)
	assert.Equal(t, "bio", dErrors.FieldOf(err))
}

func TestValidateViewerGrant(t *testing.T) {
	bob := id.Principal("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")

	assert.NoError(t, ValidateViewerGrant(alice, bob))
	assert.Equal(t, "viewer", dErrors.FieldOf(ValidateViewerGrant(alice, alice)))
	assert.Equal(t, "viewer", dErrors.FieldOf(ValidateViewerGrant(alice, "")))
}
