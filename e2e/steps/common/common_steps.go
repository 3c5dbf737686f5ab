package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context common steps use.
type TestContext interface {
	GET(path string) error
	Status() int
	Field(path string) (any, error)
	Body() string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the engine is healthy$`, steps.engineIsHealthy)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, steps.fieldShouldContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) engineIsHealthy(context.Context) error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	return s.statusShouldBe(context.Background(), 200)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(_ context.Context, field, want string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s: expected %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(_ context.Context, field, want string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("field %s is not a boolean: %v", field, v)
	}
	if fmt.Sprint(b) != want {
		return fmt.Errorf("field %s: expected %s, got %t", field, want, b)
	}
	return nil
}

func (s *commonSteps) fieldShouldContain(_ context.Context, field, want string) error {
	v, err := s.tc.Field(field)
	if err != nil {
		return err
	}
	got := fmt.Sprint(v)
	for i := 0; i+len(want) <= len(got); i++ {
		if got[i:i+len(want)] == want {
			return nil
		}
	}
	return fmt.Errorf("field %s: %q does not contain %q", field, got, want)
}
