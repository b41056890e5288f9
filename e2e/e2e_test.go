package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against a live server. Start one with
// `warish serve` and mint a token with `warish token --staff-id officer-1`.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("WARISH_BASE_URL")
	if baseURL == "" {
		t.Skip("WARISH_BASE_URL not set")
	}
	token := os.Getenv("WARISH_STAFF_TOKEN")

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			tc := NewTestContext(baseURL, token)
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(sc, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature scenarios failed")
	}
}
