package common

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAsStaff() error
	Anonymous()
	Request(method, path string, body any) error
	Status() int
	Body() []byte
	ResponseField(path string) (any, error)
	Remember(key, value string)
	Expand(s string) string
}

// RegisterSteps registers generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Identity
	ctx.Step(`^I am signed in as staff$`, steps.signedInAsStaff)
	ctx.Step(`^I am not signed in$`, steps.notSignedIn)

	// Requests
	ctx.Step(`^I send a (GET|POST|PUT) request to "([^"]*)"$`, steps.sendRequest)
	ctx.Step(`^I send a (POST|PUT) request to "([^"]*)" with body:$`, steps.sendRequestWithBody)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the error kind should be "([^"]*)"$`, steps.errorKindShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should not be present$`, steps.responseFieldShouldBeAbsent)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, steps.rememberResponseField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) signedInAsStaff(ctx context.Context) error {
	return s.tc.AuthenticateAsStaff()
}

func (s *commonSteps) notSignedIn(ctx context.Context) error {
	s.tc.Anonymous()
	return nil
}

func (s *commonSteps) sendRequest(ctx context.Context, method, path string) error {
	return s.tc.Request(method, path, nil)
}

func (s *commonSteps) sendRequestWithBody(ctx context.Context, method, path string, body *godog.DocString) error {
	raw := json.RawMessage(s.tc.Expand(body.Content))
	if !json.Valid(raw) {
		return fmt.Errorf("request body is not valid JSON: %s", body.Content)
	}
	return s.tc.Request(method, path, raw)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) errorKindShouldBe(ctx context.Context, kind string) error {
	return s.responseFieldShouldBe(ctx, "error.kind", kind)
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, want string) error {
	got, err := s.tc.ResponseField(field)
	if err != nil {
		return fmt.Errorf("%w: %s", err, s.tc.Body())
	}
	want = s.tc.Expand(want)
	if fmt.Sprint(got) != want {
		return fmt.Errorf("expected %s to be %q, got %q", field, want, fmt.Sprint(got))
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBeAbsent(ctx context.Context, field string) error {
	if got, err := s.tc.ResponseField(field); err == nil {
		return fmt.Errorf("expected %s to be absent, got %v", field, got)
	}
	return nil
}

func (s *commonSteps) rememberResponseField(ctx context.Context, field, key string) error {
	got, err := s.tc.ResponseField(field)
	if err != nil {
		return fmt.Errorf("%w: %s", err, s.tc.Body())
	}
	s.tc.Remember(key, fmt.Sprint(got))
	return nil
}
