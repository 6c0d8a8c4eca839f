package experiment

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultInterval is the cadence between batches.
	DefaultInterval = 100 * time.Millisecond
	// DefaultBatch is the number of users simulated per batch.
	DefaultBatch = 5
)

// Runner advances a Simulator on a fixed cadence while the simulator
// is running. Batch size and cadence are throughput knobs only; the
// per-user algorithm is owned entirely by the Simulator. Pausing the
// simulator takes effect before the next batch, and no batch is ever
// abandoned mid-update since the engine lock covers a whole batch.
type Runner struct {
	sim     *Simulator
	batch   int
	limiter *rate.Limiter
	logger  *slog.Logger
	onStep  func(Snapshot, time.Duration)
}

// NewRunner builds a runner over sim. Non-positive interval or batch
// fall back to the defaults. A nil logger falls back to slog.Default.
func NewRunner(sim *Simulator, interval time.Duration, batch int, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sim:     sim,
		batch:   batch,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// OnStep registers an observer invoked after every executed batch with
// a fresh snapshot and the batch's wall time. Set it before calling
// Run.
func (r *Runner) OnStep(fn func(Snapshot, time.Duration)) {
	r.onStep = fn
}

// Run drives the simulator until ctx is cancelled. Batches execute
// only while the simulator reports StateRunning; a paused or idle
// simulator holds the cadence without stepping.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("simulation runner started",
		"batch", r.batch, "experiment", r.sim.Snapshot().ExperimentID)
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			r.logger.Debug("simulation runner stopped", "reason", ctx.Err())
			return ctx.Err()
		}
		if r.sim.State() != StateRunning {
			continue
		}
		start := time.Now()
		if err := r.sim.Step(r.batch); err != nil {
			return err
		}
		if r.onStep != nil {
			r.onStep(r.sim.Snapshot(), time.Since(start))
		}
	}
}
