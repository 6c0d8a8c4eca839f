package catalog

import (
	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/experiment"
	"github.com/driftline/rollout/pkg/flag"
)

// Default returns the built-in demo catalog used when no document is
// supplied. Construction cannot fail: the definitions are fixed and
// pass the same validation as loaded documents.
func Default() *Catalog {
	registry, err := flag.NewRegistry(
		flag.FeatureFlag{
			ID:          "new-dashboard",
			Description: "Redesigned analytics dashboard",
			EnabledByEnvironment: map[environment.Environment]bool{
				environment.Development: true,
				environment.Staging:     true,
				environment.Production:  true,
			},
		},
		flag.FeatureFlag{
			ID:          "beta-search",
			Description: "Vector-backed search, partial rollout",
			EnabledByEnvironment: map[environment.Environment]bool{
				environment.Development: true,
				environment.Staging:     true,
				environment.Production:  true,
			},
			RolloutPercentage: flag.Rollout(50),
		},
		flag.FeatureFlag{
			ID:          "dark-mode",
			Description: "Dark color scheme",
			EnabledByEnvironment: map[environment.Environment]bool{
				environment.Development: true,
				environment.Staging:     true,
				environment.Production:  false,
			},
		},
		flag.FeatureFlag{
			ID:          "experimental-api",
			Description: "v2 API surface, staging soak",
			EnabledByEnvironment: map[environment.Environment]bool{
				environment.Development: true,
				environment.Staging:     false,
				environment.Production:  false,
			},
			RolloutPercentage: flag.Rollout(25),
		},
	)
	if err != nil {
		panic("default catalog invalid: " + err.Error())
	}

	return &Catalog{
		Registry: registry,
		Experiments: []experiment.Experiment{
			{
				ID:                "checkout-flow",
				Name:              "One-page vs. stepped checkout",
				RolloutPercentage: 100,
				Status:            experiment.StatusRunning,
				Variants: []experiment.Variant{
					{ID: "control", Name: "Stepped checkout", BaseConversionRate: 3.2},
					{ID: "one-page", Name: "One-page checkout", BaseConversionRate: 3.8},
				},
			},
			{
				ID:                "onboarding-tour",
				Name:              "Guided onboarding tour",
				RolloutPercentage: 40,
				Status:            experiment.StatusDraft,
				Variants: []experiment.Variant{
					{ID: "control", Name: "No tour", BaseConversionRate: 11.0},
					{ID: "tour", Name: "Interactive tour", BaseConversionRate: 12.5},
					{ID: "video", Name: "Video walkthrough", BaseConversionRate: 11.8},
				},
			},
		},
	}
}
