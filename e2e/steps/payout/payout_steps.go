package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"
)

type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	AdminGET(path string) error
	AdminPOST(path string, body any) error
	Field(path string) (any, error)
	Set(key, value string)
	Get(key string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &payoutSteps{tc: tc}

	ctx.Step(`^I calculate the "([^"]*)" payout for the actor$`, steps.calculate)
	ctx.Step(`^I request a "([^"]*)" payout for the actor$`, steps.request)
	ctx.Step(`^I look up the actor's risk state as an admin$`, steps.riskAsAdmin)
	ctx.Step(`^I look up the actor's risk state without a token$`, steps.riskWithoutToken)
	ctx.Step(`^I look up the actor's fraud signals as an admin$`, steps.signalsAsAdmin)
	ctx.Step(`^I look up an unknown payout request$`, steps.unknownRequest)
}

type payoutSteps struct {
	tc TestContext
}

func (s *payoutSteps) actor() (string, error) {
	a := s.tc.Get("actor")
	if a == "" {
		return "", errors.New("no actor in scenario")
	}
	return a, nil
}

func (s *payoutSteps) calculate(_ context.Context, model string) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.tc.GET(fmt.Sprintf("/payout/calculate?actorId=%s&model=%s", a, model))
}

func (s *payoutSteps) request(_ context.Context, model string) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.tc.POST("/payout/request", map[string]string{"actor_id": a, "model": model})
}

func (s *payoutSteps) riskAsAdmin(context.Context) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.tc.AdminGET("/risk/actors/" + a)
}

func (s *payoutSteps) riskWithoutToken(context.Context) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.tc.GET("/risk/actors/" + a)
}

func (s *payoutSteps) signalsAsAdmin(context.Context) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.tc.AdminGET("/fraud/actors/" + a + "/signals")
}

func (s *payoutSteps) unknownRequest(context.Context) error {
	return s.tc.GET("/payout/requests/00000000-0000-4000-8000-000000000000")
}
