package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/driftline/rollout/pkg/environment"
	flagpkg "github.com/driftline/rollout/pkg/flag"
	"github.com/driftline/rollout/pkg/random"
)

// runEvalCmd implements `rollout eval`: run the full stochastic
// evaluation of one flag, optionally repeated. Repeating a partially
// rolled out flag demonstrates the fresh-draw-per-call behavior.
//
// Exit codes:
//
//	0 = evaluated
//	1 = flag not found
//	2 = bad arguments
func runEvalCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("eval", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flagID       string
		envName      string
		catalogPath  string
		count        int
		seed         int64
		otlpEndpoint string
	)
	cmd.StringVar(&flagID, "flag", "", "flag id to evaluate (REQUIRED)")
	cmd.StringVar(&envName, "env", string(environment.Development), "environment to evaluate in")
	cmd.StringVar(&catalogPath, "catalog", "", "catalog YAML (default: built-in)")
	cmd.IntVar(&count, "n", 1, "number of evaluations")
	cmd.Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	cmd.StringVar(&otlpEndpoint, "otlp", "", "OTLP gRPC endpoint (empty = telemetry disabled)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if flagID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -flag is required")
		return 2
	}

	env, err := environment.Parse(envName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cat, err := loadCatalog(catalogPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	rng := random.Default()
	if seed != 0 {
		rng = random.New(seed)
	}

	logger := newLogger(stderr, env)
	evaluator := flagpkg.NewEvaluator(cat.Registry, rng, logger)

	if otlpEndpoint != "" {
		obs, err := newProvider(env, otlpEndpoint)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer shutdownProvider(obs, logger)
		evaluator.WithRecorder(obs)
	}

	enabledCount := 0
	start := time.Now()
	for i := 0; i < count; i++ {
		d := evaluator.Evaluate(flagID, env)
		if d.Err != nil {
			if errors.Is(d.Err, flagpkg.ErrFlagNotFound) {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", d.Err)
				return 1
			}
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", d.Err)
			return 2
		}
		if d.Enabled {
			enabledCount++
		}
		if count == 1 {
			_, _ = fmt.Fprintf(stdout, "flag=%s env=%s enabled=%t reason=%s\n",
				flagID, env, d.Enabled, d.Reason)
		}
	}
	if count > 1 {
		_, _ = fmt.Fprintf(stdout, "flag=%s env=%s evaluations=%d enabled=%d (%.1f%%) elapsed=%s\n",
			flagID, env, count, enabledCount,
			float64(enabledCount)/float64(count)*100, time.Since(start).Round(time.Millisecond))
	}
	return 0
}
