//go:build e2e

package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context these steps use.
type TestContext interface {
	Start(adminName string) error
	Request(actor, method, path string, body any) error
	StatusCode() int
	Body() string
	ResponseField(path string) (any, error)
	Expand(s string) string
	Save(key, value string)
}

// RegisterSteps registers lifecycle, generic request and assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the registry is running with admin "([^"]*)"$`, steps.registryRunning)

	ctx.Step(`^"([^"]*)" sends (GET|POST|PATCH) "([^"]*)"$`, steps.send)
	ctx.Step(`^"([^"]*)" sends (POST|PATCH) "([^"]*)" with:$`, steps.sendWithBody)
	ctx.Step(`^an anonymous caller sends (GET|POST) "([^"]*)"$`, steps.sendAnonymous)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should have (\d+) items?$`, steps.fieldShouldHaveItems)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) registryRunning(ctx context.Context, admin string) error {
	return s.tc.Start(admin)
}

func (s *commonSteps) send(ctx context.Context, actor, method, path string) error {
	return s.tc.Request(actor, method, path, nil)
}

func (s *commonSteps) sendWithBody(ctx context.Context, actor, method, path string, body *godog.DocString) error {
	return s.tc.Request(actor, method, path, body.Content)
}

func (s *commonSteps) sendAnonymous(ctx context.Context, method, path string) error {
	return s.tc.Request("", method, path, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.StatusCode(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, want string) error {
	return s.fieldShouldBe(ctx, "error", want)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, path, want string) error {
	v, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	want = s.tc.Expand(want)
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s: expected %q, got %q", path, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldHaveItems(ctx context.Context, path string, want int) error {
	v, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("field %s is not an array", path)
	}
	if len(items) != want {
		return fmt.Errorf("field %s: expected %d items, got %d", path, want, len(items))
	}
	return nil
}

func (s *commonSteps) saveField(ctx context.Context, path, key string) error {
	v, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if f, ok := v.(float64); ok {
		s.tc.Save(key, strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	s.tc.Save(key, fmt.Sprint(v))
	return nil
}
