package flag_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/flag"
	"github.com/driftline/rollout/pkg/random"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEvaluator(t *testing.T, rng random.Source, flags ...flag.FeatureFlag) *flag.Evaluator {
	t.Helper()
	reg, err := flag.NewRegistry(flags...)
	require.NoError(t, err)
	return flag.NewEvaluator(reg, rng, quietLogger())
}

type capturedEvaluation struct {
	flagID  string
	env     environment.Environment
	enabled bool
}

type captureRecorder struct {
	evaluations []capturedEvaluation
}

func (r *captureRecorder) RecordEvaluation(_ context.Context, flagID string, env environment.Environment, enabled bool) {
	r.evaluations = append(r.evaluations, capturedEvaluation{flagID, env, enabled})
}

func TestEvaluate_RecorderObservesEveryOutcome(t *testing.T) {
	rec := &captureRecorder{}
	e := newEvaluator(t, random.New(1), testFlags()...).WithRecorder(rec)

	e.Evaluate("checkout-v2", environment.Production)
	e.Evaluate("dark-mode", environment.Production)
	e.Evaluate("does-not-exist", environment.Production)

	require.Len(t, rec.evaluations, 3, "fail-closed evaluations are recorded too")
	assert.Equal(t, capturedEvaluation{"checkout-v2", environment.Production, true}, rec.evaluations[0])
	assert.Equal(t, capturedEvaluation{"dark-mode", environment.Production, false}, rec.evaluations[1])
	assert.Equal(t, capturedEvaluation{"does-not-exist", environment.Production, false}, rec.evaluations[2])
}

func TestEvaluate_UnknownFlagFailsClosed(t *testing.T) {
	e := newEvaluator(t, random.New(1), testFlags()...)

	d := e.Evaluate("does-not-exist", environment.Production)
	assert.False(t, d.Enabled)
	assert.Equal(t, flag.ReasonError, d.Reason)
	assert.ErrorIs(t, d.Err, flag.ErrFlagNotFound)

	enabled, err := e.IsEnabled("does-not-exist", environment.Production)
	assert.False(t, enabled)
	assert.ErrorIs(t, err, flag.ErrFlagNotFound)
}

func TestEvaluate_EnvironmentGateDominates(t *testing.T) {
	// dark-mode is off in production; no draw may flip that.
	for seed := int64(1); seed <= 50; seed++ {
		e := newEvaluator(t, random.New(seed), testFlags()...)
		d := e.Evaluate("dark-mode", environment.Production)
		assert.False(t, d.Enabled, "seed %d", seed)
		assert.Equal(t, flag.ReasonOff, d.Reason)
		assert.NoError(t, d.Err)
	}
}

// Property: a closed environment gate evaluates to disabled for any
// rollout percentage and any draw sequence.
func TestEvaluate_GateDominance_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("closed gate never opens", prop.ForAll(
		func(seed int64, rollout float64) bool {
			reg, err := flag.NewRegistry(flag.FeatureFlag{
				ID: "gated",
				EnabledByEnvironment: map[environment.Environment]bool{
					environment.Production: false,
				},
				RolloutPercentage: flag.Rollout(rollout),
			})
			if err != nil {
				return false
			}
			e := flag.NewEvaluator(reg, random.New(seed), quietLogger())
			return !e.Evaluate("gated", environment.Production).Enabled
		},
		gen.Int64(),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestEvaluate_RolloutBounds(t *testing.T) {
	gates := map[environment.Environment]bool{environment.Production: true}

	zero := newEvaluator(t, random.New(3), flag.FeatureFlag{
		ID: "zero", EnabledByEnvironment: gates, RolloutPercentage: flag.Rollout(0),
	})
	for i := 0; i < 200; i++ {
		d := zero.Evaluate("zero", environment.Production)
		assert.False(t, d.Enabled, "0%% rollout must never enable")
		assert.Equal(t, flag.ReasonRollout, d.Reason)
	}

	full := newEvaluator(t, random.New(3), flag.FeatureFlag{
		ID: "full", EnabledByEnvironment: gates, RolloutPercentage: flag.Rollout(100),
	})
	undefined := newEvaluator(t, random.New(3), flag.FeatureFlag{
		ID: "undefined", EnabledByEnvironment: gates,
	})
	for i := 0; i < 200; i++ {
		d := full.Evaluate("full", environment.Production)
		assert.True(t, d.Enabled, "100%% rollout must always enable")
		assert.Equal(t, flag.ReasonFallthrough, d.Reason)

		d = undefined.Evaluate("undefined", environment.Production)
		assert.True(t, d.Enabled, "undefined rollout must always enable")
		assert.Equal(t, flag.ReasonFallthrough, d.Reason)
	}
}

func TestEvaluate_PartialRolloutUsesDraw(t *testing.T) {
	gates := map[environment.Environment]bool{environment.Production: true}
	e := newEvaluator(t, random.Sequence(0.3, 0.7), flag.FeatureFlag{
		ID: "half", EnabledByEnvironment: gates, RolloutPercentage: flag.Rollout(50),
	})

	// Draws are fresh per call: 30 < 50 enables, 70 >= 50 disables.
	d := e.Evaluate("half", environment.Production)
	assert.True(t, d.Enabled)
	assert.Equal(t, flag.ReasonRollout, d.Reason)

	d = e.Evaluate("half", environment.Production)
	assert.False(t, d.Enabled)
	assert.Equal(t, flag.ReasonRollout, d.Reason)
}

func TestEvaluate_PartialRolloutObservedRate(t *testing.T) {
	gates := map[environment.Environment]bool{environment.Production: true}
	e := newEvaluator(t, random.New(99), flag.FeatureFlag{
		ID: "quarter", EnabledByEnvironment: gates, RolloutPercentage: flag.Rollout(25),
	})

	enabled := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if d := e.Evaluate("quarter", environment.Production); d.Enabled {
			enabled++
		}
	}
	assert.InDelta(t, 0.25, float64(enabled)/n, 0.03)
}
