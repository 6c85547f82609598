//go:build e2e

package e2e

import (
	"github.com/cucumber/godog"

	"credreg/e2e/steps/auth"
	"credreg/e2e/steps/common"
	"credreg/e2e/steps/registry"
)

// RegisterSteps registers all step definitions from the step packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	registry.RegisterSteps(ctx, tc)
}
