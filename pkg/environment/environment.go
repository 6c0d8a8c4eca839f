// Package environment resolves deployment environments to their fixed
// configuration bundles. The table of bundles is configuration-as-data:
// it is defined once at process start and never mutated, and every
// other component reads environment-dependent settings only through
// Resolve.
package environment

import (
	"errors"
	"fmt"

	"github.com/driftline/rollout/pkg/severity"
)

// Environment identifies a deployment context.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ErrUnknownEnvironment reports a string that names no environment.
var ErrUnknownEnvironment = errors.New("unknown environment")

// All returns every defined environment.
func All() []Environment {
	return []Environment{Development, Staging, Production}
}

// Valid reports whether e is one of the defined environments.
func (e Environment) Valid() bool {
	switch e {
	case Development, Staging, Production:
		return true
	}
	return false
}

// Parse converts a raw string into an Environment.
func Parse(raw string) (Environment, error) {
	e := Environment(raw)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, raw)
	}
	return e, nil
}

// FeatureToggles are the coarse capability switches carried by each
// environment bundle.
type FeatureToggles struct {
	Analytics            bool `json:"analytics" yaml:"analytics"`
	ErrorReporting       bool `json:"error_reporting" yaml:"error_reporting"`
	ExperimentalFeatures bool `json:"experimental_features" yaml:"experimental_features"`
}

// Config is the immutable settings bundle for one environment.
type Config struct {
	Environment Environment       `json:"environment" yaml:"environment"`
	APIURL      string            `json:"api_url" yaml:"api_url"`
	DebugMode   bool              `json:"debug_mode" yaml:"debug_mode"`
	MinSeverity severity.Severity `json:"min_severity" yaml:"min_severity"`
	Features    FeatureToggles    `json:"features" yaml:"features"`
}

// The fixed bundles. Exactly one per environment.
var (
	development = Config{
		Environment: Development,
		APIURL:      "http://localhost:3000/api",
		DebugMode:   true,
		MinSeverity: severity.Debug,
		Features: FeatureToggles{
			Analytics:            false,
			ErrorReporting:       false,
			ExperimentalFeatures: true,
		},
	}

	staging = Config{
		Environment: Staging,
		APIURL:      "https://staging-api.driftline.dev/api",
		DebugMode:   true,
		MinSeverity: severity.Warn,
		Features: FeatureToggles{
			Analytics:            true,
			ErrorReporting:       true,
			ExperimentalFeatures: true,
		},
	}

	production = Config{
		Environment: Production,
		APIURL:      "https://api.driftline.dev/api",
		DebugMode:   false,
		MinSeverity: severity.Error,
		Features: FeatureToggles{
			Analytics:            true,
			ErrorReporting:       true,
			ExperimentalFeatures: false,
		},
	}

	configs = map[Environment]Config{
		Development: development,
		Staging:     staging,
		Production:  production,
	}
)

// Resolve returns the configuration bundle for env. Lookup is total
// over the defined environments; values that never passed Parse fall
// back to the development bundle.
func Resolve(env Environment) Config {
	if cfg, ok := configs[env]; ok {
		return cfg
	}
	return development
}
