// Package app assembles a runnable training loop from a RunConfig.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boristopalov/trainloop/internal/telemetry"
	"github.com/boristopalov/trainloop/pkg/actors"
	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/config"
	"github.com/boristopalov/trainloop/pkg/core"
	"github.com/boristopalov/trainloop/pkg/counting"
	"github.com/boristopalov/trainloop/pkg/environment"
	"github.com/boristopalov/trainloop/pkg/exploration"
	"github.com/boristopalov/trainloop/pkg/learning"
	"github.com/boristopalov/trainloop/pkg/logging"
	"github.com/boristopalov/trainloop/pkg/loop"
	"github.com/boristopalov/trainloop/pkg/providers"
	"github.com/boristopalov/trainloop/pkg/replay"
)

// Run is a fully wired training run.
type Run struct {
	Config     *config.RunConfig
	Env        environment.Environment
	Agent      *agent.Agent
	Controller *learning.Controller
	Loop       *loop.Loop
	Counter    *counting.Counter
	Broadcast  *logging.Broadcaster

	// Store is nil when replay is disabled.
	Store replay.Store

	// Metrics is nil when metrics are disabled.
	Metrics *telemetry.Metrics

	logger  *slog.Logger
	closers []func() error
}

type BuildParams struct {
	Logger *slog.Logger
	Client providers.Client
}

type BuildOption func(*BuildParams)

func WithLogger(logger *slog.Logger) BuildOption {
	return func(p *BuildParams) {
		p.Logger = logger
	}
}

// WithClient overrides the provider client used by the llm actor.
func WithClient(client providers.Client) BuildOption {
	return func(p *BuildParams) {
		p.Client = client
	}
}

// Build wires the environment, agent, replay store and logging writers
// described by cfg. The caller must Close the returned Run.
func Build(ctx context.Context, cfg *config.RunConfig, opts ...BuildOption) (_ *Run, err error) {
	params := &BuildParams{Logger: slog.Default()}
	for _, opt := range opts {
		opt(params)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Run{
		Config:    cfg,
		Counter:   counting.New(nil, ""),
		Broadcast: logging.NewBroadcaster(logging.WithBroadcastLogger(params.Logger)),
		logger:    params.Logger,
	}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	r.Env, err = environment.NewEnvironment(cfg.Environment)
	if err != nil {
		return nil, err
	}
	spec := r.Env.ActionSpec()

	actor, err := buildActor(ctx, cfg.Agent.Actor, spec, params)
	if err != nil {
		return nil, err
	}

	r.Controller, err = learning.NewController(learning.NewAverager(), cfg.Agent.MinObservations, cfg.Agent.ObservationsPerStep)
	if err != nil {
		return nil, err
	}

	agentOpts := []agent.AgentOption{
		agent.WithLogger(params.Logger),
		agent.WithCallback("learner", r.Controller),
	}
	if cfg.Agent.ID != "" {
		agentOpts = append(agentOpts, agent.WithAgentID(cfg.Agent.ID))
	}
	if cfg.Agent.Noise.Stddev > 0 {
		noise, err := exploration.NewGaussianNoise(cfg.Agent.Noise.Stddev, exploration.WithSeed(cfg.Agent.Noise.Seed))
		if err != nil {
			return nil, err
		}
		agentOpts = append(agentOpts, agent.WithCallback("noise", noise))
	}
	if cfg.Agent.Clip {
		agentOpts = append(agentOpts, agent.WithCallback("clip", exploration.NewClipToSpec(spec)))
	}
	r.Agent, err = agent.New(actor, agentOpts...)
	if err != nil {
		return nil, err
	}

	label := cfg.Name
	if label == "" {
		label = loop.DefaultLabel
	}
	runID := loop.NewRunID()

	writer, err := r.buildWriter(label, cfg)
	if err != nil {
		return nil, err
	}
	loopOpts := []loop.Option{
		loop.WithRunID(runID),
		loop.WithLabel(label),
		loop.WithSlogLogger(params.Logger),
		loop.WithLogger(logging.NewEpisodeLogger(writer, logging.WithCounter(r.Counter))),
	}

	switch cfg.Replay.Backend {
	case "", "none":
	default:
		store, err := replay.NewStore(cfg.Replay.Backend, cfg.Replay.Path, cfg.Replay.Capacity)
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("init replay store: %w", err)
		}
		r.Store = store
		r.closers = append(r.closers, store.Close)
		loopOpts = append(loopOpts, loop.WithCallbacks(replay.NewAdder(store, runID)))
	}

	r.Loop = loop.New(r.Env, r.Agent, loopOpts...)
	return r, nil
}

func buildActor(ctx context.Context, cfg config.ActorConfig, spec core.BoundedSpec, params *BuildParams) (core.Actor, error) {
	switch cfg.Type {
	case "", "random":
		return actors.NewRandom(spec, cfg.Seed)
	case "constant":
		action := core.Action(cfg.Action)
		if action == nil {
			action = make(core.Action, spec.Dims())
		}
		if len(action) != spec.Dims() {
			return nil, fmt.Errorf("constant action has %d values, environment expects %d", len(action), spec.Dims())
		}
		return actors.NewConstant(action), nil
	case "llm":
		client := params.Client
		if client == nil {
			var err error
			client, err = providers.New(ctx, cfg.Provider)
			if err != nil {
				return nil, err
			}
		}
		opts := []actors.LLMOption{actors.WithLogger(params.Logger)}
		if cfg.Model != "" {
			opts = append(opts, actors.WithModel(cfg.Model))
		}
		return actors.NewLLM(client, spec, opts...)
	default:
		return nil, fmt.Errorf("unknown actor type %q", cfg.Type)
	}
}

func (r *Run) buildWriter(label string, cfg *config.RunConfig) (logging.Writer, error) {
	writers := logging.MultiWriter{
		logging.MakeDefaultLogger(label, r.logger, cfg.Logging.Interval),
		r.Broadcast,
	}
	if cfg.Logging.CSVPath != "" {
		csvw, err := logging.OpenCSV(cfg.Logging.CSVPath)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, csvw.Close)
		writers = append(writers, csvw)
	}
	if cfg.Metrics.Enabled {
		m, err := telemetry.InitMetrics()
		if err != nil {
			return nil, err
		}
		r.Metrics = m
		r.closers = append(r.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return m.Shutdown(ctx)
		})
		mw, err := logging.NewMetricsWriter(m.Meter("trainloop"), "trainloop", label)
		if err != nil {
			return nil, err
		}
		writers = append(writers, mw)
	}
	return writers, nil
}

// Execute runs the configured number of episodes. When metrics are enabled
// the exporter is served for as long as the loop runs.
func (r *Run) Execute(ctx context.Context) error {
	if r.Metrics == nil {
		return r.Loop.Run(ctx, r.Config.Episodes)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return r.Loop.Run(gctx, r.Config.Episodes)
	})
	g.Go(func() error {
		r.logger.Info("serving metrics", "addr", r.Config.Metrics.Addr)
		return r.Metrics.Serve(gctx, r.Config.Metrics.Addr)
	})
	return g.Wait()
}

// Summary reports the learner variables and run totals.
func (r *Run) Summary() (map[string]float64, error) {
	names := []string{"mean_reward", "rewards_seen", "steps"}
	vals, err := r.Agent.QueryVariables(names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(names)+2)
	for i, name := range names {
		out["learner_"+name] = vals[i][0]
	}
	out["episodes"] = float64(r.Counter.Get("episodes"))
	out["env_steps"] = float64(r.Counter.Get("steps"))
	return out, nil
}

func (r *Run) Close() error {
	r.Broadcast.Reset()
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
