package e2e

import (
	"github.com/cucumber/godog"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/e2e/steps/common"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/e2e/steps/payout"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/e2e/steps/tracking"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	tracking.RegisterSteps(ctx, tc)
	payout.RegisterSteps(ctx, tc)
}
