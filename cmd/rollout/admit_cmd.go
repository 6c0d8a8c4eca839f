package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/driftline/rollout/pkg/admission"
	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/observability"
	"github.com/driftline/rollout/pkg/severity"
)

// runAdmitCmd implements `rollout admit`: read "<level> <message>"
// lines from stdin, apply the environment's severity filter, and print
// the admitted lines followed by per-level counts.
func runAdmitCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("admit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		envName      string
		otlpEndpoint string
	)
	cmd.StringVar(&envName, "env", string(environment.Development), "environment whose threshold applies")
	cmd.StringVar(&otlpEndpoint, "otlp", "", "OTLP gRPC endpoint (empty = telemetry disabled)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	env, err := environment.Parse(envName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	cfg := environment.Resolve(env)

	var obs *observability.Provider
	if otlpEndpoint != "" {
		obs, err = newProvider(env, otlpEndpoint)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer shutdownProvider(obs, newLogger(stderr, env))
	}

	var events []admission.Event
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		level, message, _ := strings.Cut(line, " ")
		sev, err := severity.Parse(level)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "skipping line: %v\n", err)
			continue
		}
		events = append(events, admission.Event{Severity: sev, Message: message})
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	for _, ev := range admission.Filter(events, cfg) {
		obs.RecordAdmission(context.Background(), ev.Severity)
		_, _ = fmt.Fprintf(stdout, "%-5s %s\n", ev.Severity, ev.Message)
	}

	counts := admission.CountAdmittedByLevel(events, cfg)
	_, _ = fmt.Fprintf(stdout, "\nadmitted at min_severity=%s:", cfg.MinSeverity)
	for _, sev := range severity.All() {
		_, _ = fmt.Fprintf(stdout, " %s=%d", sev, counts[sev])
	}
	_, _ = fmt.Fprintln(stdout)
	return 0
}
