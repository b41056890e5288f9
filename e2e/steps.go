package e2e

import (
	"github.com/cucumber/godog"

	"warish/e2e/steps/application"
	"warish/e2e/steps/common"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic requests and response assertions
	common.RegisterSteps(ctx, tc)

	// Application lifecycle, documents, family tree and certificates
	application.RegisterSteps(ctx, tc)
}
