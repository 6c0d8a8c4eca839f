package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/driftline/rollout/pkg/environment"
)

// runResolveCmd implements `rollout resolve`: print the configuration
// bundle for one environment.
//
// Exit codes:
//
//	0 = resolved
//	2 = bad arguments
func runResolveCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("resolve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var envName string
	cmd.StringVar(&envName, "env", string(environment.Development), "environment to resolve")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	env, err := environment.Parse(envName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg := environment.Resolve(env)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}
