package experiment

import (
	"fmt"
	"sync"

	"github.com/driftline/rollout/pkg/random"
)

// State is the simulator's own run state, distinct from the Status
// annotation carried on an Experiment definition.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// MinimumSample is the total-user floor below which LeadingVariant
// refuses to name a winner.
const MinimumSample = 100

// jitterBound is the half-width of the uniform noise applied to a
// variant's base conversion rate on every conversion draw.
const jitterBound = 0.25

// Simulator owns the mutable result set for the currently selected
// experiment. It is the single writer of its counters; every step is a
// serialized read-modify-write under one lock, so a snapshot never
// observes a half-applied step. Safe for concurrent use.
type Simulator struct {
	mu      sync.Mutex
	rng     random.Source
	exp     *Experiment
	rollout float64
	state   State
	total   uint64
	results []VariantResult
}

// NewSimulator builds an idle simulator with no experiment selected.
// A nil rng falls back to a time-seeded source.
func NewSimulator(rng random.Source) *Simulator {
	if rng == nil {
		rng = random.Default()
	}
	return &Simulator{rng: rng, state: StateIdle}
}

// SelectExperiment makes exp the active experiment. Switching forces
// the idle state and zeroes all counters; there is no cross-experiment
// accumulation.
func (s *Simulator) SelectExperiment(exp Experiment) error {
	if err := exp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := exp
	e.Variants = append([]Variant(nil), exp.Variants...)
	s.exp = &e
	s.rollout = e.RolloutPercentage
	s.resetLocked()
	return nil
}

// SetRolloutPercentage adjusts the admission gate for subsequent
// steps. Values outside [0, 100] are rejected, never clamped or
// wrapped.
func (s *Simulator) SetRolloutPercentage(p float64) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidRollout, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollout = p
	return nil
}

// Start moves the simulator to running. Starting from paused resumes.
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exp == nil {
		return ErrNoExperiment
	}
	s.state = StateRunning
	return nil
}

// Pause holds the simulator; counters are retained.
func (s *Simulator) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StatePaused
	}
}

// Resume continues a paused run.
func (s *Simulator) Resume() error {
	return s.Start()
}

// Reset returns the simulator to idle and zeroes every counter. It is
// idempotent.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Simulator) resetLocked() {
	s.state = StateIdle
	s.total = 0
	s.results = nil
	if s.exp != nil {
		s.results = make([]VariantResult, len(s.exp.Variants))
		for i, v := range s.exp.Variants {
			s.results[i] = VariantResult{VariantID: v.ID}
		}
	}
}

// State returns the current run state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SimulateOneUser advances the simulation by one synthetic user:
//
//  1. an admission draw in [0, 100) against the rollout percentage --
//     users outside the rollout touch no counters;
//  2. a uniform equal-weight variant choice, regardless of variant
//     count;
//  3. a conversion draw against the variant's base rate with uniform
//     jitter of ±0.25 points, clamped to [0, 100];
//  4. counter increments for the chosen variant and the run total.
//
// Draw order per admitted user is admit, variant, jitter, conversion;
// a rejected user consumes only the admit draw.
func (s *Simulator) SimulateOneUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulateOneLocked()
}

// Step advances the simulation by n users as one atomic batch.
func (s *Simulator) Step(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		if err := s.simulateOneLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) simulateOneLocked() error {
	if s.exp == nil {
		return ErrNoExperiment
	}

	admit := random.Percent(s.rng)
	if admit >= s.rollout {
		return nil
	}

	idx := random.Index(s.rng, len(s.exp.Variants))
	variant := s.exp.Variants[idx]

	jitter := s.rng.Float64()*2*jitterBound - jitterBound
	adjusted := variant.BaseConversionRate + jitter
	if adjusted < 0 {
		adjusted = 0
	} else if adjusted > 100 {
		adjusted = 100
	}

	converted := random.Percent(s.rng) < adjusted

	s.results[idx].UsersSeen++
	if converted {
		s.results[idx].Conversions++
	}
	s.total++
	return nil
}

// Snapshot is the simulator's read model.
type Snapshot struct {
	State             State           `json:"state"`
	ExperimentID      string          `json:"experiment_id,omitempty"`
	Status            Status          `json:"status,omitempty"`
	RolloutPercentage float64         `json:"rollout_percentage"`
	TotalUsers        uint64          `json:"total_users"`
	Results           []VariantResult `json:"results"`
}

// Snapshot returns a consistent copy of the current counters, in
// variant definition order.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:             s.state,
		RolloutPercentage: s.rollout,
		TotalUsers:        s.total,
		Results:           append([]VariantResult(nil), s.results...),
	}
	if s.exp != nil {
		snap.ExperimentID = s.exp.ID
		snap.Status = s.exp.Status
	}
	return snap
}

// LeadingVariant names the variant with the strictly greatest observed
// conversion rate. Below MinimumSample total users it returns
// ErrInsufficientSample rather than a spurious winner. Ties resolve to
// the first occurrence in variant definition order.
func (s *Simulator) LeadingVariant() (Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exp == nil {
		return Variant{}, ErrNoExperiment
	}
	if s.total < MinimumSample {
		return Variant{}, fmt.Errorf("%w: %d of %d users", ErrInsufficientSample, s.total, MinimumSample)
	}
	best := 0
	for i := 1; i < len(s.results); i++ {
		if s.results[i].ConversionRate() > s.results[best].ConversionRate() {
			best = i
		}
	}
	return s.exp.Variants[best], nil
}
