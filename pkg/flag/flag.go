// Package flag implements the feature flag registry and its stateless
// evaluator. Flags carry a per-environment gate and an optional rollout
// percentage that narrows exposure where the gate is already open.
package flag

import (
	"errors"
	"fmt"

	"github.com/driftline/rollout/pkg/environment"
)

var (
	// ErrFlagNotFound reports an unknown flag id. Unknown flags
	// evaluate to disabled.
	ErrFlagNotFound = errors.New("flag not found")

	// ErrInvalidRollout reports a rollout percentage outside [0, 100].
	ErrInvalidRollout = errors.New("rollout percentage out of range")

	// ErrDuplicateFlag reports two definitions sharing an id.
	ErrDuplicateFlag = errors.New("duplicate flag id")
)

// FeatureFlag is one immutable flag definition.
type FeatureFlag struct {
	ID                   string                           `json:"id"`
	Description          string                           `json:"description,omitempty"`
	EnabledByEnvironment map[environment.Environment]bool `json:"enabled_by_environment"`

	// RolloutPercentage, when set, admits only that fraction of
	// evaluations in environments where the gate is open. It narrows
	// exposure, never widens it. Range [0, 100].
	RolloutPercentage *float64 `json:"rollout_percentage,omitempty"`
}

// Rollout is a convenience for building flag literals.
func Rollout(p float64) *float64 {
	return &p
}

// EnabledIn reports the environment gate alone, ignoring rollout.
func (f FeatureFlag) EnabledIn(env environment.Environment) bool {
	return f.EnabledByEnvironment[env]
}

func (f FeatureFlag) validate() error {
	if f.ID == "" {
		return errors.New("flag id must not be empty")
	}
	if f.RolloutPercentage != nil {
		if p := *f.RolloutPercentage; p < 0 || p > 100 {
			return fmt.Errorf("flag %q: %w: %v", f.ID, ErrInvalidRollout, p)
		}
	}
	return nil
}

// Registry is an immutable catalog of flag definitions, fixed at
// construction. Reads are safe for concurrent use.
type Registry struct {
	flags map[string]FeatureFlag
	order []string
}

// NewRegistry builds a registry from definitions, rejecting duplicate
// ids and out-of-range rollout percentages.
func NewRegistry(flags ...FeatureFlag) (*Registry, error) {
	r := &Registry{
		flags: make(map[string]FeatureFlag, len(flags)),
		order: make([]string, 0, len(flags)),
	}
	for _, f := range flags {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.flags[f.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFlag, f.ID)
		}
		r.flags[f.ID] = f
		r.order = append(r.order, f.ID)
	}
	return r, nil
}

// Get looks up a flag by id.
func (r *Registry) Get(id string) (FeatureFlag, bool) {
	f, ok := r.flags[id]
	return f, ok
}

// Len returns the number of registered flags.
func (r *Registry) Len() int {
	return len(r.flags)
}

// FlagState pairs a flag with its deterministic configured state for
// one environment.
type FlagState struct {
	Flag FeatureFlag `json:"flag"`
	// Enabled reflects the environment gate only. For flags with a
	// partial rollout this intentionally diverges from a stochastic
	// Evaluator outcome: it answers "is this configured on here",
	// not "did this particular evaluation pass".
	Enabled bool `json:"enabled"`
}

// ListAll returns the configured state of every flag for env, in
// registration order.
func (r *Registry) ListAll(env environment.Environment) []FlagState {
	states := make([]FlagState, 0, len(r.order))
	for _, id := range r.order {
		f := r.flags[id]
		states = append(states, FlagState{Flag: f, Enabled: f.EnabledIn(env)})
	}
	return states
}
