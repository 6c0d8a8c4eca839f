package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/experiment"
	"github.com/driftline/rollout/pkg/feed"
	"github.com/driftline/rollout/pkg/observability"
	"github.com/driftline/rollout/pkg/random"
)

// runServeCmd implements `rollout serve`: drive one experiment on the
// default cadence and stream snapshots to websocket subscribers on
// /ws, with the latest snapshot also available at /snapshot. Control
// endpoints /start, /pause and /reset map onto the simulator state
// machine.
func runServeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		addr         string
		envName      string
		experimentID string
		catalogPath  string
		rollout      float64
		interval     time.Duration
		batch        int
		seed         int64
		otlpEndpoint string
	)
	cmd.StringVar(&addr, "addr", ":8080", "listen address")
	cmd.StringVar(&envName, "env", string(environment.Development), "environment (controls log verbosity)")
	cmd.StringVar(&experimentID, "experiment", "", "experiment id (REQUIRED)")
	cmd.StringVar(&catalogPath, "catalog", "", "catalog YAML (default: built-in)")
	cmd.Float64Var(&rollout, "rollout", -1, "override rollout percentage [0,100]")
	cmd.DurationVar(&interval, "interval", experiment.DefaultInterval, "batch cadence")
	cmd.IntVar(&batch, "batch", experiment.DefaultBatch, "users per batch")
	cmd.Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	cmd.StringVar(&otlpEndpoint, "otlp", "", "OTLP gRPC endpoint (empty = telemetry disabled)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if experimentID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -experiment is required")
		return 2
	}

	env, err := environment.Parse(envName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger := newLogger(stderr, env)

	cat, err := loadCatalog(catalogPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	exp, ok := cat.Experiment(experimentID)
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Error: unknown experiment %q\n", experimentID)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var obs *observability.Provider
	if otlpEndpoint != "" {
		obs, err = newProvider(env, otlpEndpoint)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer shutdownProvider(obs, logger)
	}

	rng := random.Default()
	if seed != 0 {
		rng = random.New(seed)
	}

	sim := experiment.NewSimulator(rng)
	if err := sim.SelectExperiment(exp); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if rollout >= 0 {
		if err := sim.SetRolloutPercentage(rollout); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}
	if err := sim.Start(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	hub := feed.NewHub(logger)
	go hub.Run(ctx)

	runner := experiment.NewRunner(sim, interval, batch, logger)
	var lastUsers, lastConversions uint64
	runner.OnStep(func(snap experiment.Snapshot, elapsed time.Duration) {
		hub.Publish(snap)
		obs.RecordStepDuration(ctx, elapsed)

		var conversions uint64
		for _, r := range snap.Results {
			conversions += r.Conversions
		}
		// A /reset between batches rewinds the counters; restart the
		// deltas rather than reporting an underflow.
		if snap.TotalUsers >= lastUsers && conversions >= lastConversions {
			obs.RecordSimulation(ctx, snap.ExperimentID,
				int64(snap.TotalUsers-lastUsers), int64(conversions-lastConversions))
		}
		lastUsers, lastConversions = snap.TotalUsers, conversions
	})
	runnerDone := make(chan error, 1)
	go func() { runnerDone <- runner.Run(ctx) }()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sim.Snapshot())
	})
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		if err := sim.Start(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/pause", func(w http.ResponseWriter, r *http.Request) {
		sim.Pause()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {
		sim.Reset()
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{Addr: addr, Handler: mux}
	serverDone := make(chan error, 1)
	go func() { serverDone <- server.ListenAndServe() }()

	logger.Info("simulation feed serving",
		"addr", addr, "experiment", experimentID, "run_id", hub.RunID())

	select {
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 2
		}
	case err := <-runnerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("runner failed", "error", err)
			return 2
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	_, _ = fmt.Fprintln(stdout, "shutdown complete")
	return 0
}
