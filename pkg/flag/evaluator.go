package flag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/random"
)

// Recorder receives the outcome of every evaluation, including
// fail-closed ones. A nil Recorder records nothing.
type Recorder interface {
	RecordEvaluation(ctx context.Context, flagID string, env environment.Environment, enabled bool)
}

// Reason categorizes why an evaluation produced its result.
type Reason string

const (
	// ReasonOff: the environment gate is closed.
	ReasonOff Reason = "off"
	// ReasonFallthrough: gate open, no rollout narrowing applied.
	ReasonFallthrough Reason = "fallthrough"
	// ReasonRollout: gate open, outcome decided by the rollout draw.
	ReasonRollout Reason = "rollout"
	// ReasonError: the flag could not be evaluated; result is disabled.
	ReasonError Reason = "error"
)

// Decision is the full outcome of a single evaluation.
type Decision struct {
	Enabled bool   `json:"enabled"`
	Reason  Reason `json:"reason"`
	Err     error  `json:"-"`
}

// Evaluator decides flag state per environment. Rollout draws are
// independent per call: there is no per-user stickiness, so repeated
// evaluations of a partially rolled out flag can flip outcome. Real
// rollout systems bucket on a stable (user, flag) hash; this core
// deliberately does not.
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger
	recorder Recorder

	mu  sync.Mutex
	rng random.Source
}

// NewEvaluator builds an evaluator over reg. A nil rng falls back to a
// time-seeded source; a nil logger falls back to slog.Default.
func NewEvaluator(reg *Registry, rng random.Source, logger *slog.Logger) *Evaluator {
	if rng == nil {
		rng = random.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{registry: reg, rng: rng, logger: logger}
}

// WithRecorder attaches a telemetry recorder and returns the evaluator
// for chaining. Call it before the first Evaluate.
func (e *Evaluator) WithRecorder(r Recorder) *Evaluator {
	e.recorder = r
	return e
}

// Evaluate runs the full stochastic evaluation of one flag for env.
//
// Unknown ids fail closed: the decision is disabled with ReasonError
// and Err wrapping ErrFlagNotFound. The environment gate is
// authoritative; rollout is consulted only once the gate is open.
func (e *Evaluator) Evaluate(id string, env environment.Environment) Decision {
	d := e.evaluate(id, env)
	if e.recorder != nil {
		e.recorder.RecordEvaluation(context.Background(), id, env, d.Enabled)
	}
	return d
}

func (e *Evaluator) evaluate(id string, env environment.Environment) Decision {
	f, ok := e.registry.Get(id)
	if !ok {
		e.logger.Warn("feature flag not found, evaluating to disabled",
			"flag", id, "environment", string(env))
		return Decision{
			Enabled: false,
			Reason:  ReasonError,
			Err:     fmt.Errorf("evaluate %q: %w", id, ErrFlagNotFound),
		}
	}

	if !f.EnabledIn(env) {
		return Decision{Enabled: false, Reason: ReasonOff}
	}

	if f.RolloutPercentage == nil || *f.RolloutPercentage >= 100 {
		return Decision{Enabled: true, Reason: ReasonFallthrough}
	}

	e.mu.Lock()
	draw := random.Percent(e.rng)
	e.mu.Unlock()

	return Decision{Enabled: draw < *f.RolloutPercentage, Reason: ReasonRollout}
}

// IsEnabled is the boolean convenience over Evaluate.
func (e *Evaluator) IsEnabled(id string, env environment.Environment) (bool, error) {
	d := e.Evaluate(id, env)
	return d.Enabled, d.Err
}
