package experiment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/rollout/pkg/experiment"
	"github.com/driftline/rollout/pkg/random"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_StepsWhileRunning(t *testing.T) {
	sim := experiment.NewSimulator(random.New(7))
	require.NoError(t, sim.SelectExperiment(checkoutExperiment()))
	require.NoError(t, sim.Start())

	var batches, timedBatches atomic.Int64
	runner := experiment.NewRunner(sim, time.Millisecond, 5, testLogger())
	runner.OnStep(func(snap experiment.Snapshot, elapsed time.Duration) {
		batches.Add(1)
		if elapsed >= 0 && elapsed < time.Second {
			timedBatches.Add(1)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := runner.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	snap := sim.Snapshot()
	assert.NotZero(t, snap.TotalUsers, "runner must have advanced the simulation")
	assert.NotZero(t, batches.Load())
	assert.Equal(t, batches.Load(), timedBatches.Load(), "every batch reports its wall time")
	assert.Zero(t, snap.TotalUsers%5, "users advance in whole batches")
}

func TestRunner_IdleSimulatorHoldsCadence(t *testing.T) {
	sim := experiment.NewSimulator(random.New(7))
	require.NoError(t, sim.SelectExperiment(checkoutExperiment()))
	// Never started: the runner must hold without stepping.

	runner := experiment.NewRunner(sim, time.Millisecond, 5, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := runner.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, sim.Snapshot().TotalUsers)
}

func TestRunner_CancelStopsPromptly(t *testing.T) {
	sim := experiment.NewSimulator(random.New(7))
	require.NoError(t, sim.SelectExperiment(checkoutExperiment()))
	require.NoError(t, sim.Start())

	runner := experiment.NewRunner(sim, time.Millisecond, 5, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	sim := experiment.NewSimulator(random.New(1))
	runner := experiment.NewRunner(sim, 0, 0, nil)
	require.NotNil(t, runner)
}
