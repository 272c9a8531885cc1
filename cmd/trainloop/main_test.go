package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prevLogger, prevTracer := slog.Default(), otel.GetTracerProvider()
	t.Cleanup(func() {
		slog.SetDefault(prevLogger)
		otel.SetTracerProvider(prevTracer)
	})

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestRunCommandFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: cli-test
agent:
  actor:
    type: constant
    action: [1]
logging:
  level: error
`), 0o644))

	out, err := execute(t, "run", "--config", path, "--episodes", "2", "--progress")
	require.NoError(t, err)
	assert.Contains(t, out, "episode 1: length=4")
	assert.Contains(t, out, "episode 2: length=4")
	assert.Contains(t, out, "episodes: 2")
	assert.Contains(t, out, "env_steps: 8")
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	out, err := execute(t, "run", "--env", "bandit", "--actor", "random", "--episodes", "1",
		"--observations-per-step", "4", "--log-level", "error")
	require.NoError(t, err)
	// Default bandit horizon is 20 pulls, four per learner step.
	assert.Contains(t, out, "env_steps: 20")
	assert.Contains(t, out, "learner_steps: 5")
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	_, err := execute(t, "run", "--observations-per-step", "0", "--log-level", "error")
	assert.Error(t, err)

	_, err = execute(t, "run", "--replay", "sqlite", "--log-level", "error")
	assert.ErrorContains(t, err, "replay.path")
}
