package logging

import (
	"context"
	"time"

	"github.com/boristopalov/trainloop/pkg/callback"
	"github.com/boristopalov/trainloop/pkg/core"
	"github.com/boristopalov/trainloop/pkg/counting"
)

// EpisodeLogger is a loop callback that tracks the length and return of
// each episode and writes a summary record when it ends.
type EpisodeLogger struct {
	callback.Nop
	callback.Toggle

	writer  Writer
	counter *counting.Counter
	now     func() time.Time

	start  time.Time
	steps  int
	reward float64
}

type EpisodeLoggerOption func(*EpisodeLogger)

// WithCounter shares a counter across loggers. By default each logger has
// its own.
func WithCounter(c *counting.Counter) EpisodeLoggerOption {
	return func(l *EpisodeLogger) {
		l.counter = c
	}
}

func WithEpisodeClock(now func() time.Time) EpisodeLoggerOption {
	return func(l *EpisodeLogger) {
		l.now = now
	}
}

func NewEpisodeLogger(w Writer, opts ...EpisodeLoggerOption) *EpisodeLogger {
	l := &EpisodeLogger{writer: w, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.counter == nil {
		l.counter = counting.New(nil, "")
	}
	return l
}

func (l *EpisodeLogger) OnEpisodeBegin(context.Context, core.TimeStep) error {
	l.start = l.now()
	l.steps = 0
	l.reward = 0
	return nil
}

func (l *EpisodeLogger) OnFeedback(_ context.Context, _ core.Action, next core.TimeStep) error {
	l.steps++
	l.reward += next.Reward
	return nil
}

func (l *EpisodeLogger) OnEpisodeEnd(ctx context.Context) error {
	counts := l.counter.Increment(map[string]int{"episodes": 1, "steps": l.steps})

	data := Data{
		"episode_length":   l.steps,
		"episode_return":   l.reward,
		"steps_per_second": nil,
	}
	if elapsed := l.now().Sub(l.start); elapsed > 0 {
		data["steps_per_second"] = float64(l.steps) / elapsed.Seconds()
	}
	for k, v := range counts {
		data[k] = v
	}
	return l.writer.Write(ctx, data)
}

// Counter returns the counter episode totals are written to.
func (l *EpisodeLogger) Counter() *counting.Counter {
	return l.counter
}
