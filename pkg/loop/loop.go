// Package loop drives an agent through episodes of an environment and
// dispatches the episode events to every callback involved in the run.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/callback"
	"github.com/boristopalov/trainloop/pkg/core"
	"github.com/boristopalov/trainloop/pkg/logging"
)

const DefaultLabel = "environment_loop"

// ErrEnvironment marks failures reported by the environment itself.
var ErrEnvironment = errors.New("environment failure")

// Loop runs episodes. It is not safe for concurrent use.
type Loop struct {
	env       core.Environment
	agent     *agent.Agent
	callbacks *callback.List
	label     string
	runID     string
	tracer    trace.Tracer
	log       *slog.Logger
	episodes  int
}

// EpisodeResult summarizes one completed episode.
type EpisodeResult struct {
	Index    int
	Steps    int
	Return   float64
	Duration time.Duration
}

type loopParams struct {
	label     string
	recorder  callback.Callback
	extra     []callback.Callback
	tracer    trace.Tracer
	slog      *slog.Logger
	logWindow time.Duration
	runID     string
}

type Option func(*loopParams)

// WithLogger sets the logging callback. It is dispatched after every other
// callback. The default writes an episode summary through slog.
func WithLogger(cb callback.Callback) Option {
	return func(p *loopParams) {
		p.recorder = cb
	}
}

func WithLabel(label string) Option {
	return func(p *loopParams) {
		p.label = label
	}
}

// WithCallbacks adds loop-level callbacks, dispatched after the agent's own
// callbacks and before the logging callback. They receive episode_begin,
// feedback and episode_end.
func WithCallbacks(cbs ...callback.Callback) Option {
	return func(p *loopParams) {
		p.extra = append(p.extra, cbs...)
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(p *loopParams) {
		p.tracer = tr
	}
}

// WithSlogLogger sets the logger for run-level messages and for the default
// logging callback.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(p *loopParams) {
		p.slog = logger
	}
}

// WithLogInterval rate-limits the default logging callback.
func WithLogInterval(d time.Duration) Option {
	return func(p *loopParams) {
		p.logWindow = d
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(p *loopParams) {
		p.runID = id
	}
}

func New(env core.Environment, a *agent.Agent, opts ...Option) *Loop {
	params := &loopParams{
		label:  DefaultLabel,
		tracer: otel.Tracer("trainloop/loop"),
		slog:   slog.Default(),
	}
	for _, opt := range opts {
		opt(params)
	}
	if params.recorder == nil {
		params.recorder = logging.NewEpisodeLogger(logging.MakeDefaultLogger(params.label, params.slog, params.logWindow))
	}

	merged := a.Callbacks().Concat(callback.NewList(params.extra...))
	merged.Add(params.recorder)

	runID := params.runID
	if runID == "" {
		runID = NewRunID()
	}
	return &Loop{
		env:       env,
		agent:     a,
		callbacks: merged,
		label:     params.label,
		runID:     runID,
		tracer:    params.tracer,
		log:       params.slog.With("run_id", runID, "label", params.label),
	}
}

func NewRunID() string {
	return "run-" + uuid.New().String()
}

func (l *Loop) RunID() string {
	return l.runID
}

// Callbacks returns the merged registry in dispatch order.
func (l *Loop) Callbacks() *callback.List {
	return l.callbacks
}

// Episodes returns the number of episodes started so far.
func (l *Loop) Episodes() int {
	return l.episodes
}

// Run runs numEpisodes episodes, or until ctx is done when numEpisodes <= 0.
// The first error aborts the run.
func (l *Loop) Run(ctx context.Context, numEpisodes int) error {
	l.log.Info("run started", "episodes", numEpisodes, "agent_id", l.agent.ID())
	start := time.Now()
	for i := 0; numEpisodes <= 0 || i < numEpisodes; i++ {
		if err := ctx.Err(); err != nil {
			l.log.Info("run cancelled", "completed", i)
			return err
		}
		if _, err := l.RunEpisode(ctx); err != nil {
			l.log.Error("run aborted", "episode", l.episodes-1, "error", err)
			return err
		}
	}
	l.log.Info("run finished", "episodes", numEpisodes, "elapsed", time.Since(start))
	return nil
}

// RunEpisode runs a single episode from reset to the last timestep.
func (l *Loop) RunEpisode(ctx context.Context) (EpisodeResult, error) {
	res := EpisodeResult{Index: l.episodes}
	l.episodes++

	ctx, span := l.tracer.Start(ctx, "EnvironmentLoop.Episode", trace.WithAttributes(
		attribute.String("run.id", l.runID),
		attribute.String("agent.id", l.agent.ID()),
		attribute.Int("episode.index", res.Index),
	))
	defer span.End()

	start := time.Now()
	err := l.episode(ctx, &res)
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("episode.steps", res.Steps),
		attribute.Float64("episode.return", res.Return),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	return res, nil
}

func (l *Loop) episode(ctx context.Context, res *EpisodeResult) error {
	ts, err := l.env.Reset(ctx)
	if err != nil {
		return fmt.Errorf("%w: reset: %w", ErrEnvironment, err)
	}
	if err := l.callbacks.EpisodeBegin(ctx, ts); err != nil {
		return err
	}

	for !ts.Last() {
		if err := ctx.Err(); err != nil {
			return err
		}
		action, err := l.agent.SelectAction(ctx, ts.Observation)
		if err != nil {
			return err
		}
		next, err := l.env.Step(ctx, action)
		if err != nil {
			return fmt.Errorf("%w: step %d: %w", ErrEnvironment, res.Steps+1, err)
		}
		res.Steps++
		res.Return += next.Reward
		if err := l.callbacks.Feedback(ctx, action, next); err != nil {
			return err
		}
		ts = next
	}

	return l.callbacks.EpisodeEnd(ctx)
}
