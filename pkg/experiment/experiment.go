// Package experiment models percentage-gated A/B experiments and the
// simulator that assigns synthetic users to variants and aggregates
// conversion statistics.
package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRollout reports a rollout percentage outside [0, 100].
	ErrInvalidRollout = errors.New("rollout percentage out of range")

	// ErrNoExperiment reports an operation that needs an active
	// experiment when none is selected.
	ErrNoExperiment = errors.New("no experiment selected")

	// ErrInsufficientSample reports a leading-variant query below the
	// minimum sample size.
	ErrInsufficientSample = errors.New("insufficient sample")
)

// Status annotates an experiment's lifecycle. It is external metadata:
// the simulator drives its own run state and never writes Status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Variant is one alternative treatment within an experiment.
type Variant struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// BaseConversionRate is the variant's underlying conversion
	// probability, in percent [0, 100].
	BaseConversionRate float64 `json:"base_conversion_rate" yaml:"base_conversion_rate"`
}

// Experiment is one immutable experiment definition.
type Experiment struct {
	ID                string    `json:"id" yaml:"id"`
	Name              string    `json:"name,omitempty" yaml:"name,omitempty"`
	RolloutPercentage float64   `json:"rollout_percentage" yaml:"rollout_percentage"`
	Variants          []Variant `json:"variants" yaml:"variants"`
	Status            Status    `json:"status,omitempty" yaml:"status,omitempty"`
}

// Validate checks structural invariants of the definition.
func (e Experiment) Validate() error {
	if e.ID == "" {
		return errors.New("experiment id must not be empty")
	}
	if e.RolloutPercentage < 0 || e.RolloutPercentage > 100 {
		return fmt.Errorf("experiment %q: %w: %v", e.ID, ErrInvalidRollout, e.RolloutPercentage)
	}
	if len(e.Variants) == 0 {
		return fmt.Errorf("experiment %q: at least one variant required", e.ID)
	}
	seen := make(map[string]struct{}, len(e.Variants))
	for _, v := range e.Variants {
		if v.ID == "" {
			return fmt.Errorf("experiment %q: variant id must not be empty", e.ID)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("experiment %q: duplicate variant id %q", e.ID, v.ID)
		}
		seen[v.ID] = struct{}{}
		if v.BaseConversionRate < 0 || v.BaseConversionRate > 100 {
			return fmt.Errorf("experiment %q variant %q: base conversion rate out of range: %v",
				e.ID, v.ID, v.BaseConversionRate)
		}
	}
	return nil
}

// VariantResult holds the running counters for one variant.
type VariantResult struct {
	VariantID   string `json:"variant_id"`
	UsersSeen   uint64 `json:"users_seen"`
	Conversions uint64 `json:"conversions"`
}

// ConversionRate returns Conversions/UsersSeen in percent, 0 when no
// users have been seen.
func (r VariantResult) ConversionRate() float64 {
	if r.UsersSeen == 0 {
		return 0
	}
	return float64(r.Conversions) / float64(r.UsersSeen) * 100
}
