package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	pstrings "credreg/pkg/platform/strings"
)

const (
	maxShortText   = 128
	maxGrade       = 32
	maxDescription = 2000
	maxSkills      = 20

	// DateLayout is the civil date form used by every payload.
	DateLayout = "2006-01-02"
)

// Payload is the domain-specific body of a record. Validate normalizes the
// payload in place and checks it against now.
type Payload interface {
	Validate(now time.Time) error
}

// Education is an academic degree or diploma.
type Education struct {
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	Level        string `json:"level,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Grade        string `json:"grade,omitempty"`
	CredentialID string `json:"credential_id,omitempty"`
}

var educationLevels = []string{
	"kindergarten", "primary", "secondary", "high_school", "associate",
	"bachelor", "master", "phd", "postdoc", "other",
}

func (e *Education) Validate(now time.Time) error {
	var err error
	if e.Degree, err = text("degree", e.Degree, maxShortText, true); err != nil {
		return err
	}
	if e.FieldOfStudy, err = text("field_of_study", e.FieldOfStudy, maxShortText, false); err != nil {
		return err
	}
	if e.Level, err = oneOf("level", e.Level, educationLevels, false); err != nil {
		return err
	}
	if e.Grade, err = text("grade", e.Grade, maxGrade, false); err != nil {
		return err
	}
	if e.CredentialID, err = text("credential_id", e.CredentialID, maxShortText, false); err != nil {
		return err
	}
	start, err := date("start_date", e.StartDate, true)
	if err != nil {
		return err
	}
	end, err := date("end_date", e.EndDate, true)
	if err != nil {
		return err
	}
	if afterToday(start, now) {
		return dErrors.Invalid("start_date", "must not be in the future")
	}
	if end.Before(start) {
		return dErrors.Invalid("end_date", "must not be before start_date")
	}
	if afterToday(end, now) {
		return dErrors.Invalid("end_date", "must not be in the future")
	}
	return nil
}

// Certification is a professional certificate or license.
type Certification struct {
	Name                string `json:"name"`
	IssuingOrganization string `json:"issuing_organization,omitempty"`
	IssueDate           string `json:"issue_date"`
	ExpiryDate          string `json:"expiry_date,omitempty"`
	CredentialID        string `json:"credential_id,omitempty"`
	CredentialURL       string `json:"credential_url,omitempty"`
}

func (c *Certification) Validate(now time.Time) error {
	var err error
	if c.Name, err = text("name", c.Name, maxShortText, true); err != nil {
		return err
	}
	if c.IssuingOrganization, err = text("issuing_organization", c.IssuingOrganization, maxShortText, false); err != nil {
		return err
	}
	if c.CredentialID, err = text("credential_id", c.CredentialID, maxShortText, false); err != nil {
		return err
	}
	if c.CredentialURL, err = link("credential_url", c.CredentialURL); err != nil {
		return err
	}
	issued, err := date("issue_date", c.IssueDate, true)
	if err != nil {
		return err
	}
	if afterToday(issued, now) {
		return dErrors.Invalid("issue_date", "must not be in the future")
	}
	expires, err := date("expiry_date", c.ExpiryDate, false)
	if err != nil {
		return err
	}
	if !expires.IsZero() && !expires.After(issued) {
		return dErrors.Invalid("expiry_date", "must be after issue_date")
	}
	return nil
}

// Employment is a position held. An empty EndDate means the role is current.
type Employment struct {
	Position       string `json:"position"`
	Company        string `json:"company,omitempty"`
	Location       string `json:"location,omitempty"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	Description    string `json:"description,omitempty"`
}

var employmentTypes = []string{"full_time", "part_time", "contract", "internship", "freelance"}

func (e *Employment) Validate(now time.Time) error {
	var err error
	if e.Position, err = text("position", e.Position, maxShortText, true); err != nil {
		return err
	}
	if e.Company, err = text("company", e.Company, maxShortText, false); err != nil {
		return err
	}
	if e.Location, err = text("location", e.Location, maxShortText, false); err != nil {
		return err
	}
	if e.EmploymentType, err = oneOf("employment_type", e.EmploymentType, employmentTypes, false); err != nil {
		return err
	}
	if e.Description, err = text("description", e.Description, maxDescription, false); err != nil {
		return err
	}
	start, err := date("start_date", e.StartDate, true)
	if err != nil {
		return err
	}
	if afterToday(start, now) {
		return dErrors.Invalid("start_date", "must not be in the future")
	}
	end, err := date("end_date", e.EndDate, false)
	if err != nil || end.IsZero() {
		return err
	}
	if end.Before(start) {
		return dErrors.Invalid("end_date", "must not be before start_date")
	}
	if afterToday(end, now) {
		return dErrors.Invalid("end_date", "must not be in the future")
	}
	return nil
}

// IsCurrent reports whether the position has no end date.
func (e *Employment) IsCurrent() bool {
	return strings.TrimSpace(e.EndDate) == ""
}

// Achievement is a project, award, publication or similar accomplishment.
type Achievement struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	EventDate   string   `json:"event_date"`
	ProofURL    string   `json:"proof_url,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

var achievementCategories = []string{"project", "award", "competition", "publication", "volunteer", "other"}

func (a *Achievement) Validate(now time.Time) error {
	var err error
	if a.Title, err = text("title", a.Title, maxShortText, true); err != nil {
		return err
	}
	if a.Description, err = text("description", a.Description, maxDescription, false); err != nil {
		return err
	}
	if a.Category, err = oneOf("category", a.Category, achievementCategories, true); err != nil {
		return err
	}
	if a.ProofURL, err = link("proof_url", a.ProofURL); err != nil {
		return err
	}
	happened, err := date("event_date", a.EventDate, true)
	if err != nil {
		return err
	}
	if afterToday(happened, now) {
		return dErrors.Invalid("event_date", "must not be in the future")
	}
	a.Skills = pstrings.DedupeFold(a.Skills)
	if len(a.Skills) > maxSkills {
		return dErrors.Invalid("skills", "at most 20 skills are allowed")
	}
	for _, skill := range a.Skills {
		if utf8.RuneCountInString(skill) > maxShortText {
			return dErrors.Invalid("skills", "each skill must be 128 characters or less")
		}
	}
	return nil
}

// NewPayload returns an empty payload for the domain.
func NewPayload(d id.Domain) (Payload, error) {
	switch d {
	case id.DomainEducation:
		return &Education{}, nil
	case id.DomainCertification:
		return &Certification{}, nil
	case id.DomainEmployment:
		return &Employment{}, nil
	case id.DomainAchievement:
		return &Achievement{}, nil
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown domain %q", d)
}

// DecodePayload strictly decodes raw as the domain's payload, validates it
// against now and returns the normalized JSON that is stored on the record.
func DecodePayload(d id.Domain, raw json.RawMessage, now time.Time) (json.RawMessage, error) {
	p, err := NewPayload(d)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, dErrors.Invalid("payload", "payload is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, payloadDecodeErr(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, dErrors.Invalid("payload", "payload must be a single JSON object")
	}
	if err := p.Validate(now); err != nil {
		return nil, err
	}
	out, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode payload")
	}
	return out, nil
}

func payloadDecodeErr(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return dErrors.Invalid(typeErr.Field, "has the wrong type")
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return dErrors.Invalid(strings.Trim(name, `"`), "unknown field")
	}
	return dErrors.Invalid("payload", "payload must be a JSON object")
}

func text(field, v string, max int, required bool) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" && required {
		return "", dErrors.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(v) > max {
		return "", dErrors.Invalid(field, fmt.Sprintf("must be %d characters or less", max))
	}
	return v, nil
}

func oneOf(field, v string, allowed []string, required bool) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		if required {
			return "", dErrors.Invalid(field, "is required")
		}
		return "", nil
	}
	if !slices.Contains(allowed, v) {
		return "", dErrors.Invalid(field, "must be one of "+strings.Join(allowed, ", "))
	}
	return v, nil
}

// date parses a civil date. An absent optional date yields the zero time.
func date(field, v string, required bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		if required {
			return time.Time{}, dErrors.Invalid(field, "is required")
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, dErrors.Invalid(field, "must be a date in YYYY-MM-DD form")
	}
	return t, nil
}

// afterToday compares civil dates, so anything dated today is accepted.
func afterToday(d time.Time, now time.Time) bool {
	y, m, day := now.UTC().Date()
	return d.After(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
}

func link(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", dErrors.Invalid(field, "must be an absolute http or https URL")
	}
	if len(v) > maxDescription {
		return "", dErrors.Invalid(field, "is too long")
	}
	return v, nil
}
