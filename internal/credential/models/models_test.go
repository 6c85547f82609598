package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
)

const (
	subject = id.Principal("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	issuer  = id.Principal("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

var now = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func TestDecodePayload(t *testing.T) {
	t.Run("education normalizes and keeps schema fields", func(t *testing.T) {
		raw := json.RawMessage(`{"degree":"  BSc ","level":"Bachelor","start_date":"2020-01-01","end_date":"2024-01-01"}`)
		out, err := DecodePayload(id.DomainEducation, raw, now)
		require.NoError(t, err)

		var e Education
		require.NoError(t, json.Unmarshal(out, &e))
		assert.Equal(t, "BSc", e.Degree)
		assert.Equal(t, "bachelor", e.Level)
	})

	t.Run("end date today is accepted", func(t *testing.T) {
		raw := json.RawMessage(`{"degree":"MSc","start_date":"2024-01-01","end_date":"2025-03-10"}`)
		_, err := DecodePayload(id.DomainEducation, raw, now)
		assert.NoError(t, err)
	})

	t.Run("employment without end date is current", func(t *testing.T) {
		raw := json.RawMessage(`{"position":"Engineer","start_date":"2023-06-01","employment_type":"full_time"}`)
		out, err := DecodePayload(id.DomainEmployment, raw, now)
		require.NoError(t, err)
		var e Employment
		require.NoError(t, json.Unmarshal(out, &e))
		assert.True(t, e.IsCurrent())
	})

	t.Run("achievement skills are deduplicated", func(t *testing.T) {
		raw := json.RawMessage(`{"title":"Hackathon","category":"competition","event_date":"2024-11-02","skills":["Go"," go ","SQL"]}`)
		out, err := DecodePayload(id.DomainAchievement, raw, now)
		require.NoError(t, err)
		var a Achievement
		require.NoError(t, json.Unmarshal(out, &a))
		assert.Equal(t, []string{"Go", "SQL"}, a.Skills)
	})

	tests := []struct {
		name   string
		domain id.Domain
		raw    string
		field  string
	}{
		{"missing degree", id.DomainEducation, `{"start_date":"2020-01-01","end_date":"2021-01-01"}`, "degree"},
		{"end before start", id.DomainEducation, `{"degree":"BSc","start_date":"2022-01-01","end_date":"2021-01-01"}`, "end_date"},
		{"end in future", id.DomainEducation, `{"degree":"BSc","start_date":"2022-01-01","end_date":"2025-03-11"}`, "end_date"},
		{"start in future", id.DomainEducation, `{"degree":"BSc","start_date":"2026-01-01","end_date":"2027-01-01"}`, "start_date"},
		{"bad date format", id.DomainEducation, `{"degree":"BSc","start_date":"01/01/2020","end_date":"2021-01-01"}`, "start_date"},
		{"unknown level", id.DomainEducation, `{"degree":"BSc","level":"guru","start_date":"2020-01-01","end_date":"2021-01-01"}`, "level"},
		{"unknown field", id.DomainEducation, `{"degree":"BSc","gpa":"4.0","start_date":"2020-01-01","end_date":"2021-01-01"}`, "gpa"},
		{"wrong type", id.DomainEducation, `{"degree":7,"start_date":"2020-01-01","end_date":"2021-01-01"}`, "degree"},
		{"expiry not after issue", id.DomainCertification, `{"name":"CKA","issue_date":"2024-01-01","expiry_date":"2024-01-01"}`, "expiry_date"},
		{"relative credential url", id.DomainCertification, `{"name":"CKA","issue_date":"2024-01-01","credential_url":"/cert/1"}`, "credential_url"},
		{"bad employment type", id.DomainEmployment, `{"position":"Eng","start_date":"2020-01-01","employment_type":"gig"}`, "employment_type"},
		{"missing category", id.DomainAchievement, `{"title":"Award","event_date":"2024-01-01"}`, "category"},
		{"too many skills", id.DomainAchievement, `{"title":"A","category":"award","event_date":"2024-01-01","skills":[` + skills(21) + `]}`, "skills"},
		{"empty payload", id.DomainEmployment, `null`, "payload"},
		{"not an object", id.DomainEmployment, `[]`, "payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.domain, json.RawMessage(tt.raw), now)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidPayload), "got %v", err)
			assert.Equal(t, tt.field, dErrors.FieldOf(err))
		})
	}
}

func skills(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = `"skill` + strings.Repeat("x", i+1) + `"`
	}
	return strings.Join(out, ",")
}

func TestRecordStateMachine(t *testing.T) {
	newRecord := func(t *testing.T) *Record {
		r, err := NewRecord(id.DomainEducation, subject, issuer, json.RawMessage(`{}`), " bafyhash ", now)
		require.NoError(t, err)
		return r
	}

	t.Run("request approve is terminal", func(t *testing.T) {
		r := newRecord(t)
		assert.Equal(t, StateUnverified, r.State)
		assert.Equal(t, "bafyhash", r.DocumentRef)
		assert.Error(t, r.CanDecide())

		require.NoError(t, r.CanRequestVerification())
		r.ApplyRequestVerification(now)
		assert.True(t, r.IsPending())
		assert.True(t, dErrors.Is(r.CanRequestVerification(), dErrors.CodeInvalidState))

		require.NoError(t, r.CanDecide())
		r.ApplyApproval(now)
		assert.True(t, r.IsVerified())
		require.NotNil(t, r.VerifiedAt)
		assert.True(t, dErrors.Is(r.CanRequestVerification(), dErrors.CodeInvalidState))
		assert.True(t, dErrors.Is(r.CanDecide(), dErrors.CodeInvalidState))
	})

	t.Run("reject then request again clears reason", func(t *testing.T) {
		r := newRecord(t)
		r.ApplyRequestVerification(now)
		r.ApplyRejection("  date mismatch  ", now)
		assert.Equal(t, StateRejected, r.State)
		assert.Equal(t, "date mismatch", r.RejectionReason)

		require.NoError(t, r.CanRequestVerification())
		r.ApplyRequestVerification(now)
		assert.Equal(t, StatePending, r.State)
		assert.Empty(t, r.RejectionReason)
	})

	t.Run("clone is deep", func(t *testing.T) {
		r := newRecord(t)
		r.ApplyApproval(now)
		c := r.Clone()
		c.Payload[0] = '['
		*c.VerifiedAt = now.Add(time.Hour)
		assert.Equal(t, byte('{'), r.Payload[0])
		assert.Equal(t, now, *r.VerifiedAt)
	})
}

func TestNormalizeReason(t *testing.T) {
	assert.Equal(t, DefaultRejectionReason, NormalizeReason("   "))
	assert.Len(t, []rune(NormalizeReason(strings.Repeat("é", 600))), MaxReasonLength)
}

func TestNormalizeDocumentRef(t *testing.T) {
	_, err := NormalizeDocumentRef("two words")
	assert.Equal(t, "document_ref", dErrors.FieldOf(err))
	_, err = NormalizeDocumentRef(strings.Repeat("a", MaxDocumentRefLength+1))
	assert.Equal(t, "document_ref", dErrors.FieldOf(err))
}

func TestNewIssuerRegistration(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		reg, err := NewIssuerRegistration(id.DomainEmployment, issuer, " Acme ",
			map[string]string{"Industry": "Software", "website": " "}, "REG-1", now)
		require.NoError(t, err)
		assert.Equal(t, "Acme", reg.OrgName)
		assert.Equal(t, map[string]string{"industry": "Software"}, reg.OrgMetadata)
	})

	tests := []struct {
		name   string
		domain id.Domain
		org    string
		meta   map[string]string
		ref    string
		field  string
	}{
		{"missing org", id.DomainEducation, " ", nil, "REG-1", "org_name"},
		{"missing ref", id.DomainEducation, "Acme U", nil, "", "registration_ref"},
		{"unknown key", id.DomainEducation, "Acme U", map[string]string{"ceo": "x"}, "REG-1", "org_metadata.ceo"},
		{"case-folded duplicate key", id.DomainEducation, "Acme U", map[string]string{"Country": "A", "country": "B"}, "REG-1", "org_metadata.country"},
		{"duplicate key after trim", id.DomainEducation, "Acme U", map[string]string{"website": "a", " Website ": ""}, "REG-1", "org_metadata.website"},
		{"required key", id.DomainAchievement, "Org", nil, "REG-1", "org_metadata.organization_type"},
		{"long value", id.DomainEducation, "Acme U", map[string]string{"website": strings.Repeat("w", 257)}, "REG-1", "org_metadata.website"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssuerRegistration(tt.domain, issuer, tt.org, tt.meta, tt.ref, now)
			require.Error(t, err)
			assert.Equal(t, tt.field, dErrors.FieldOf(err))
		})
	}
}
