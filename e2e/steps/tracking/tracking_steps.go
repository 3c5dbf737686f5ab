package tracking

import (
	"context"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

type TestContext interface {
	POST(path string, body any) error
	Set(key, value string)
	Get(key string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &trackingSteps{tc: tc}

	ctx.Step(`^a new actor$`, steps.newActor)
	ctx.Step(`^a new user installs through the actor$`, steps.newUserInstalls)
	ctx.Step(`^the same user installs through another actor$`, steps.sameUserOtherActor)
	ctx.Step(`^the user completes "([^"]*)"$`, steps.userCompletes)
	ctx.Step(`^I track an event of type "([^"]*)"$`, steps.trackType)
}

type trackingSteps struct {
	tc TestContext
}

func (s *trackingSteps) newActor(context.Context) error {
	s.tc.Set("actor", uuid.NewString())
	return nil
}

func (s *trackingSteps) track(eventType, userID, actorID string) error {
	body := map[string]any{
		"type":      eventType,
		"userId":    userID,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"deviceId":  "e2e-" + userID,
	}
	if actorID != "" {
		body["actorId"] = actorID
	}
	return s.tc.POST("/attribution/track", body)
}

func (s *trackingSteps) newUserInstalls(context.Context) error {
	user := uuid.NewString()
	s.tc.Set("user", user)
	return s.track("install", user, s.tc.Get("actor"))
}

func (s *trackingSteps) sameUserOtherActor(context.Context) error {
	return s.track("install", s.tc.Get("user"), uuid.NewString())
}

func (s *trackingSteps) userCompletes(_ context.Context, eventType string) error {
	return s.track(eventType, s.tc.Get("user"), "")
}

func (s *trackingSteps) trackType(_ context.Context, eventType string) error {
	return s.track(eventType, uuid.NewString(), s.tc.Get("actor"))
}
