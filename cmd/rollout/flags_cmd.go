package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/driftline/rollout/pkg/catalog"
	"github.com/driftline/rollout/pkg/environment"
)

// runFlagsCmd implements `rollout flags`: list every flag's configured
// state for one environment. The listing is the deterministic read
// model (environment gate only); partial rollouts are shown as a
// percentage, not resolved.
func runFlagsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("flags", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		envName     string
		catalogPath string
	)
	cmd.StringVar(&envName, "env", string(environment.Development), "environment to list for")
	cmd.StringVar(&catalogPath, "catalog", "", "catalog YAML (default: built-in)")

	if err := cmd.Parse(args); err != nil {
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

	_, _ = fmt.Fprintf(stdout, "%-20s %-8s %-8s %s\n", "FLAG", "ENABLED", "ROLLOUT", "DESCRIPTION")
	for _, state := range cat.Registry.ListAll(env) {
		rollout := "-"
		if state.Flag.RolloutPercentage != nil {
			rollout = fmt.Sprintf("%g%%", *state.Flag.RolloutPercentage)
		}
		_, _ = fmt.Fprintf(stdout, "%-20s %-8t %-8s %s\n",
			state.Flag.ID, state.Enabled, rollout, state.Flag.Description)
	}
	return 0
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
