package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/observability"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "resolve":
		return runResolveCmd(args[2:], stdout, stderr)
	case "flags":
		return runFlagsCmd(args[2:], stdout, stderr)
	case "eval":
		return runEvalCmd(args[2:], stdout, stderr)
	case "admit":
		return runAdmitCmd(args[2:], os.Stdin, stdout, stderr)
	case "simulate":
		return runSimulateCmd(args[2:], stdout, stderr)
	case "serve":
		return runServeCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprint(w, `rollout - environment config, feature flag and experiment core

Usage:
  rollout resolve  -env <environment>
  rollout flags    -env <environment> [-catalog file.yaml]
  rollout eval     -flag <id> -env <environment> [-n count] [-seed n] [-otlp endpoint]
  rollout admit    -env <environment> [-otlp endpoint]  (events on stdin: "<level> <message>")
  rollout simulate -experiment <id> -users <n> [-rollout p] [-seed n]
  rollout serve    -addr :8080 -experiment <id> [-rollout p] [-otlp endpoint]
`)
}

// newLogger builds the CLI logger; verbosity follows the resolved
// environment's minimum severity.
func newLogger(w io.Writer, env environment.Environment) *slog.Logger {
	cfg := environment.Resolve(env)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: cfg.MinSeverity.Level(),
	}))
}

// newProvider builds an enabled observability provider exporting to an
// OTLP gRPC endpoint.
func newProvider(env environment.Environment, endpoint string) (*observability.Provider, error) {
	cfg := observability.DefaultConfig()
	cfg.Environment = env
	cfg.Enabled = true
	cfg.OTLPEndpoint = endpoint
	return observability.New(context.Background(), cfg)
}

func shutdownProvider(obs *observability.Provider, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		logger.Warn("observability shutdown", "error", err)
	}
}
