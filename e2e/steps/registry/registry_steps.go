//go:build e2e

package registry

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context these steps use.
type TestContext interface {
	NewWallet(name string) (*ecdsa.PrivateKey, error)
	Address(name string) string
	Request(actor, method, path string, body any) error
	StatusCode() int
	Body() string
	ResponseField(path string) (any, error)
	Expand(s string) string
	Save(key, value string)
}

// RegisterSteps registers shortcuts that set up profiles, issuers and records.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	ctx.Step(`^"([^"]*)" registers "([^"]*)" as an? "([^"]*)"$`, steps.registerUser)
	ctx.Step(`^"([^"]*)" registers as an? "([^"]*)" issuer$`, steps.registerIssuer)
	ctx.Step(`^"([^"]*)" creates an? "([^"]*)" record for "([^"]*)" with:$`, steps.createRecord)
}

type registrySteps struct {
	tc TestContext
}

func (s *registrySteps) expect(status int, what string) error {
	if s.tc.StatusCode() != status {
		return fmt.Errorf("%s: expected %d, got %d: %s", what, status, s.tc.StatusCode(), s.tc.Body())
	}
	return nil
}

func (s *registrySteps) registerUser(ctx context.Context, admin, name, role string) error {
	if _, err := s.tc.NewWallet(name); err != nil {
		return err
	}
	body := map[string]string{
		"principal":    s.tc.Address(name),
		"role":         role,
		"display_name": name,
	}
	if role != "subject" && role != "admin" {
		body["organization_name"] = name + " Org"
	}
	if err := s.tc.Request(admin, http.MethodPost, "/users", body); err != nil {
		return err
	}
	return s.expect(http.StatusCreated, "register "+name)
}

func (s *registrySteps) registerIssuer(ctx context.Context, name, domain string) error {
	if err := s.tc.Request(name, http.MethodPost, "/"+domain+"/issuers", map[string]string{
		"org_name":         name + " Org",
		"registration_ref": "REG-" + name,
	}); err != nil {
		return err
	}
	return s.expect(http.StatusCreated, "register issuer "+name)
}

func (s *registrySteps) createRecord(ctx context.Context, issuer, domain, subject string, payload *godog.DocString) error {
	raw := json.RawMessage(s.tc.Expand(payload.Content))
	if err := s.tc.Request(issuer, http.MethodPost, "/"+domain+"/records", map[string]any{
		"subject": s.tc.Address(subject),
		"payload": raw,
	}); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated, "create record"); err != nil {
		return err
	}
	rid, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save("record", fmt.Sprint(rid))
	return nil
}
