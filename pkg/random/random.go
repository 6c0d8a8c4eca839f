// Package random provides the injectable randomness source consumed by
// flag rollout evaluation and experiment simulation. Substituting a
// scripted Source is the regression-test seam for every stochastic
// code path.
package random

import (
	"math/rand"
	"time"
)

// Source yields uniform draws in [0, 1). Implementations need not be
// safe for concurrent use; callers serialize access.
type Source interface {
	Float64() float64
}

// New returns a Source backed by math/rand with the given seed.
func New(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Default returns a Source seeded from the current time.
func Default() Source {
	return New(time.Now().UnixNano())
}

// Percent scales a draw from src onto [0, 100).
func Percent(src Source) float64 {
	return src.Float64() * 100
}

// Index draws a uniform equal-weight index in [0, n). n must be > 0.
func Index(src Source, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n { // guards a scripted source returning exactly the bound
		i = n - 1
	}
	return i
}

type sequence struct {
	vals []float64
	next int
}

// Sequence returns a Source that replays vals in order, cycling back
// to the start when exhausted. Intended for deterministic tests.
func Sequence(vals ...float64) Source {
	if len(vals) == 0 {
		vals = []float64{0}
	}
	return &sequence{vals: vals}
}

func (s *sequence) Float64() float64 {
	v := s.vals[s.next%len(s.vals)]
	s.next++
	return v
}
