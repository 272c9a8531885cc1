// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/core"
)

// Journal records event names across several callbacks in call order.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Count returns how many entries equal entry.
func (j *Journal) Count(entry string) int {
	n := 0
	for _, e := range j.Entries() {
		if e == entry {
			n++
		}
	}
	return n
}

// Recorder is an agent callback that journals every event it receives,
// prefixed with its name.
type Recorder struct {
	agent.Base
	Name    string
	Journal *Journal

	// Replace, when set, is returned from OnAfterAction.
	Replace core.Action

	// FailOn makes the named event return Err.
	FailOn string
	Err    error
}

func NewRecorder(name string, j *Journal) *Recorder {
	return &Recorder{Name: name, Journal: j}
}

func (r *Recorder) record(event string) error {
	r.Journal.Add(r.Name + ":" + event)
	if r.FailOn == event {
		if r.Err != nil {
			return r.Err
		}
		return fmt.Errorf("%s failed on %s", r.Name, event)
	}
	return nil
}

func (r *Recorder) OnEpisodeBegin(context.Context, core.TimeStep) error {
	return r.record("episode_begin")
}

func (r *Recorder) OnBeforeAction(context.Context, core.Observation) error {
	return r.record("before_action")
}

func (r *Recorder) OnAfterAction(_ context.Context, action core.Action) (core.Action, error) {
	if err := r.record("after_action"); err != nil {
		return nil, err
	}
	if r.Replace != nil {
		return r.Replace.Clone(), nil
	}
	return action, nil
}

func (r *Recorder) OnFeedback(context.Context, core.Action, core.TimeStep) error {
	return r.record("feedback")
}

func (r *Recorder) OnEpisodeEnd(context.Context) error {
	return r.record("episode_end")
}

// FixedActor always proposes the same action and counts its calls.
type FixedActor struct {
	Action core.Action
	Err    error
	Calls  int
}

func (a *FixedActor) SelectAction(context.Context, core.Observation) (core.Action, error) {
	a.Calls++
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Action.Clone(), nil
}

// CountingLearner counts Step calls and serves fixed variables.
type CountingLearner struct {
	Steps int
	Err   error
	Vars  map[string][]float64
}

func (l *CountingLearner) Step(context.Context) error {
	if l.Err != nil {
		return l.Err
	}
	l.Steps++
	return nil
}

func (l *CountingLearner) Variables(names []string) ([][]float64, error) {
	out := make([][]float64, 0, len(names))
	for _, n := range names {
		v, ok := l.Vars[n]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", n)
		}
		out = append(out, v)
	}
	return out, nil
}

// FixedLengthEnv runs episodes of exactly Length steps with reward 1 per
// step. The observation is the step index.
type FixedLengthEnv struct {
	Length int

	ResetErr error
	StepErr  error

	// FailAtStep makes Step return StepErr on that 1-based step of an episode.
	FailAtStep int

	Resets  int
	Steps   int
	Actions []core.Action
	t       int
}

func (e *FixedLengthEnv) Reset(context.Context) (core.TimeStep, error) {
	if e.ResetErr != nil {
		return core.TimeStep{}, e.ResetErr
	}
	e.Resets++
	e.t = 0
	return core.Restart(core.Observation{0}), nil
}

func (e *FixedLengthEnv) Step(_ context.Context, action core.Action) (core.TimeStep, error) {
	e.t++
	if e.StepErr != nil && (e.FailAtStep == 0 || e.FailAtStep == e.t) {
		return core.TimeStep{}, e.StepErr
	}
	e.Steps++
	e.Actions = append(e.Actions, action.Clone())
	obs := core.Observation{float64(e.t)}
	if e.t >= e.Length {
		return core.Termination(1, obs), nil
	}
	return core.Transition(1, obs), nil
}
