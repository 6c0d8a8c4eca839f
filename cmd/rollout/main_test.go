package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NoArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Usage")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "frobnicate"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "unknown command")
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "help"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "rollout resolve")
}

func TestResolveCmd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "resolve", "-env", "production"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), `"api_url"`)
	assert.Contains(t, stdout.String(), `"min_severity": "error"`)
}

func TestResolveCmd_UnknownEnvironment(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "resolve", "-env", "qa"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "unknown environment")
}

func TestFlagsCmd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "flags", "-env", "production"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "beta-search")
	assert.Contains(t, stdout.String(), "50%")
}

func TestEvalCmd_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "eval", "-flag", "missing", "-env", "production"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "flag not found")
}

func TestEvalCmd_Seeded(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"rollout", "eval", "-flag", "new-dashboard", "-env", "production", "-seed", "42",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "enabled=true")
	assert.Contains(t, stdout.String(), "reason=fallthrough")
}

func TestAdmitCmd(t *testing.T) {
	stdin := strings.NewReader("debug cache warmed\nwarn slow query\nerror payment declined\n")
	var stdout, stderr bytes.Buffer
	code := runAdmitCmd([]string{"-env", "production"}, stdin, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "payment declined")
	assert.NotContains(t, stdout.String(), "slow query")
	assert.Contains(t, stdout.String(), "error=1")
	assert.Contains(t, stdout.String(), "warn=0")
}

func TestSimulateCmd_Seeded(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"rollout", "simulate", "-experiment", "checkout-flow",
		"-users", "1000", "-seed", "42",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "total_users=1000")
	assert.Contains(t, stdout.String(), "leading variant:")
}

func TestSimulateCmd_ZeroRollout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"rollout", "simulate", "-experiment", "checkout-flow",
		"-users", "500", "-rollout", "0", "-seed", "7",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "total_users=0")
	assert.Contains(t, stdout.String(), "undetermined")
}

func TestSimulateCmd_UnknownExperiment(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"rollout", "simulate", "-experiment", "nope"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown experiment")
}
