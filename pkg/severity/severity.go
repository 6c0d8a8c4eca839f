// Package severity defines the totally ordered scale used for log
// admission and environment minimum-severity thresholds.
package severity

import (
	"errors"
	"fmt"
	"log/slog"
)

// Severity is a log/event severity level.
type Severity string

const (
	Debug Severity = "debug"
	Info  Severity = "info"
	Warn  Severity = "warn"
	Error Severity = "error"
)

// ErrUnknownSeverity reports a string that names no severity level.
var ErrUnknownSeverity = errors.New("unknown severity")

// All returns the scale in ascending order of severity.
func All() []Severity {
	return []Severity{Debug, Info, Warn, Error}
}

// Rank returns the position of s on the scale. Higher means more
// severe. Unknown values rank below Debug.
func (s Severity) Rank() int {
	switch s {
	case Debug:
		return 0
	case Info:
		return 1
	case Warn:
		return 2
	case Error:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AtLeast reports whether s sits at or above min on the scale.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// Level maps s onto the slog level scale.
func (s Severity) Level() slog.Level {
	switch s {
	case Debug:
		return slog.LevelDebug
	case Info:
		return slog.LevelInfo
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Parse converts a raw string into a Severity.
func Parse(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, raw)
	}
	return s, nil
}
