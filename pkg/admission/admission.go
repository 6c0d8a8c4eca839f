// Package admission filters log events against an environment's
// minimum severity. Admission is a pure threshold predicate on the
// severity scale: raising the minimum can only shrink the admitted
// set, never grow it.
package admission

import (
	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/severity"
)

// Event is the minimal log-event record the filter operates on.
type Event struct {
	Severity severity.Severity `json:"severity"`
	Message  string            `json:"message"`
}

// Admit reports whether an event at sev is visible under cfg.
func Admit(sev severity.Severity, cfg environment.Config) bool {
	return sev.AtLeast(cfg.MinSeverity)
}

// Filter returns the admitted subset of events, preserving order.
func Filter(events []Event, cfg environment.Config) []Event {
	admitted := make([]Event, 0, len(events))
	for _, ev := range events {
		if Admit(ev.Severity, cfg) {
			admitted = append(admitted, ev)
		}
	}
	return admitted
}

// CountAdmittedByLevel returns per-severity counts restricted to the
// admitted subset. Levels below cfg.MinSeverity never appear with a
// nonzero count.
func CountAdmittedByLevel(events []Event, cfg environment.Config) map[severity.Severity]int {
	counts := make(map[severity.Severity]int, len(severity.All()))
	for _, ev := range events {
		if Admit(ev.Severity, cfg) {
			counts[ev.Severity]++
		}
	}
	return counts
}
