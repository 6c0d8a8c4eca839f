package admission_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/driftline/rollout/pkg/admission"
	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/severity"
)

func configWithMin(min severity.Severity) environment.Config {
	cfg := environment.Resolve(environment.Development)
	cfg.MinSeverity = min
	return cfg
}

var sampleEvents = []admission.Event{
	{Severity: severity.Debug, Message: "cache warmed"},
	{Severity: severity.Debug, Message: "request traced"},
	{Severity: severity.Info, Message: "user signed in"},
	{Severity: severity.Warn, Message: "retry budget low"},
	{Severity: severity.Warn, Message: "slow query"},
	{Severity: severity.Error, Message: "payment declined"},
}

func TestAdmit_Threshold(t *testing.T) {
	cfg := configWithMin(severity.Warn)
	assert.False(t, admission.Admit(severity.Debug, cfg))
	assert.False(t, admission.Admit(severity.Info, cfg))
	assert.True(t, admission.Admit(severity.Warn, cfg))
	assert.True(t, admission.Admit(severity.Error, cfg))
}

func TestFilter_PreservesOrder(t *testing.T) {
	got := admission.Filter(sampleEvents, configWithMin(severity.Warn))
	assert.Equal(t, []admission.Event{
		{Severity: severity.Warn, Message: "retry budget low"},
		{Severity: severity.Warn, Message: "slow query"},
		{Severity: severity.Error, Message: "payment declined"},
	}, got)
}

func TestCountAdmittedByLevel(t *testing.T) {
	counts := admission.CountAdmittedByLevel(sampleEvents, configWithMin(severity.Info))
	assert.Equal(t, 0, counts[severity.Debug])
	assert.Equal(t, 1, counts[severity.Info])
	assert.Equal(t, 2, counts[severity.Warn])
	assert.Equal(t, 1, counts[severity.Error])
}

func totalAdmitted(events []admission.Event, min severity.Severity) int {
	total := 0
	for _, n := range admission.CountAdmittedByLevel(events, configWithMin(min)) {
		total += n
	}
	return total
}

func TestMonotonicity_FixedStream(t *testing.T) {
	scale := severity.All()
	for i := 1; i < len(scale); i++ {
		assert.GreaterOrEqual(t,
			totalAdmitted(sampleEvents, scale[i-1]),
			totalAdmitted(sampleEvents, scale[i]),
			"raising min severity from %s to %s must not admit more", scale[i-1], scale[i])
	}
}

// Property: for any event stream, raising the threshold never grows
// the admitted set.
func TestMonotonicity_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genSeverity := gen.OneConstOf(severity.Debug, severity.Info, severity.Warn, severity.Error)

	properties.Property("admission is monotonic in min severity", prop.ForAll(
		func(sevs []severity.Severity) bool {
			events := make([]admission.Event, len(sevs))
			for i, s := range sevs {
				events[i] = admission.Event{Severity: s}
			}
			scale := severity.All()
			for i := 1; i < len(scale); i++ {
				if totalAdmitted(events, scale[i-1]) < totalAdmitted(events, scale[i]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genSeverity),
	))

	properties.TestingRun(t)
}
