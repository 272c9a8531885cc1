package app_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/trainloop/internal/app"
	"github.com/boristopalov/trainloop/pkg/actors"
	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/config"
	"github.com/boristopalov/trainloop/pkg/logging"
)

type stubClient struct {
	prompts []string
}

func (s *stubClient) Complete(_ context.Context, _ string, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return "Moving right.\nACTION: 1", nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// constantConfig walks the default corridor in four steps per episode.
func constantConfig(episodes int) *config.RunConfig {
	cfg := config.Default()
	cfg.Episodes = episodes
	cfg.Agent.Actor = config.ActorConfig{Type: "constant", Action: []float64{1}}
	return cfg
}

func TestBuildAndExecuteWithMemoryReplay(t *testing.T) {
	cfg := constantConfig(3)
	cfg.Replay = config.ReplayConfig{Backend: "memory"}
	cfg.Logging.CSVPath = filepath.Join(t.TempDir(), "logs", "episodes.csv")

	ctx := context.Background()
	r, err := app.Build(ctx, cfg, app.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Execute(ctx))

	n, err := r.Store.Count(ctx, r.Loop.RunID())
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	summary, err := r.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3.0, summary["episodes"])
	assert.Equal(t, 12.0, summary["env_steps"])
	assert.Equal(t, 12.0, summary["learner_steps"])
	assert.Equal(t, 12.0, summary["learner_rewards_seen"])
	assert.InDelta(t, (3*1-9*0.01)/12.0, summary["learner_mean_reward"], 1e-9)

	require.NoError(t, r.Close())
	raw, err := os.ReadFile(cfg.Logging.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "episode_length,episode_return,episodes,steps,steps_per_second", lines[0])
}

func TestBuildWithSQLiteReplay(t *testing.T) {
	cfg := constantConfig(2)
	cfg.Replay = config.ReplayConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "replay.db")}

	ctx := context.Background()
	r, err := app.Build(ctx, cfg, app.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Execute(ctx))

	got, err := r.Store.List(ctx, r.Loop.RunID(), 0)
	require.NoError(t, err)
	require.Len(t, got, 8)
	assert.True(t, got[3].Last)
	assert.Equal(t, 1, got[4].Episode)
}

func TestReplayDisabledByDefault(t *testing.T) {
	r, err := app.Build(context.Background(), constantConfig(1), app.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer r.Close()
	assert.Nil(t, r.Store)
	assert.Nil(t, r.Metrics)
}

func TestBroadcastReceivesEpisodeSummaries(t *testing.T) {
	r, err := app.Build(context.Background(), constantConfig(2), app.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer r.Close()

	ch := make(chan logging.Data, 4)
	require.NoError(t, r.Broadcast.Subscribe("test", ch))
	require.NoError(t, r.Execute(context.Background()))

	require.Len(t, ch, 2)
	first := <-ch
	assert.Equal(t, 4, first["episode_length"])
	assert.Equal(t, 1, first["episodes"])
}

func TestExecuteServesMetricsWhileRunning(t *testing.T) {
	cfg := constantConfig(2)
	cfg.Metrics = config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0"}

	r, err := app.Build(context.Background(), cfg, app.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer r.Close()
	require.NotNil(t, r.Metrics)

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, 2, r.Loop.Episodes())
}

func TestLLMActorWithStubClient(t *testing.T) {
	cfg := config.Default()
	cfg.Episodes = 1
	cfg.Agent.Actor = config.ActorConfig{Type: "llm", Model: "test-model"}

	client := &stubClient{}
	r, err := app.Build(context.Background(), cfg, app.WithLogger(quietLogger()), app.WithClient(client))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Execute(context.Background()))

	assert.Len(t, client.prompts, 4)
	cb, ok := r.Agent.Callback(agent.ActorName)
	require.True(t, ok)
	llm, ok := cb.(*actors.LLM)
	require.True(t, ok)
	assert.Len(t, llm.History(), 4)
}

func TestNoiseAndClipKeepActionsInBounds(t *testing.T) {
	cfg := constantConfig(2)
	cfg.Agent.Actor.Action = []float64{0.9}
	cfg.Agent.Noise = config.NoiseConfig{Stddev: 0.5, Seed: 7}
	cfg.Agent.Clip = true
	cfg.Replay = config.ReplayConfig{Backend: "memory"}

	ctx := context.Background()
	r, err := app.Build(ctx, cfg, app.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"learner", "noise", "clip"}, r.Agent.Names())

	require.NoError(t, r.Execute(ctx))
	got, err := r.Store.List(ctx, r.Loop.RunID(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, tr := range got {
		assert.GreaterOrEqual(t, tr.Action[0], -1.0)
		assert.LessOrEqual(t, tr.Action[0], 1.0)
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cfg := constantConfig(1)
	cfg.Environment.Type = "maze"
	_, err := app.Build(context.Background(), cfg, app.WithLogger(quietLogger()))
	assert.ErrorContains(t, err, "maze")

	cfg = constantConfig(1)
	cfg.Agent.Actor.Action = []float64{1, 1}
	_, err = app.Build(context.Background(), cfg, app.WithLogger(quietLogger()))
	assert.ErrorContains(t, err, "expects 1")

	cfg = constantConfig(1)
	cfg.Agent.ObservationsPerStep = 0
	_, err = app.Build(context.Background(), cfg, app.WithLogger(quietLogger()))
	assert.Error(t, err)
}
