// Package callback implements the lifecycle hooks observed during an
// agent/environment interaction loop and the ordered registry that
// dispatches them.
//
// A Callback receives five events:
//
//	episode_begin(timestep)
//	before_action(observation)
//	after_action(action)        -> returns the (possibly replaced) action
//	feedback(action, next_timestep)
//	episode_end()
//
// Embed Nop to get a no-op default for every hook and Toggle for the
// enabled flag; override only the hooks the callback cares about.
package callback

import (
	"context"
	"fmt"

	"github.com/boristopalov/trainloop/pkg/core"
)

// Callback responds to the lifecycle events of the environment loop.
type Callback interface {
	// Enabled reports whether the callback receives dispatched events
	Enabled() bool

	OnEpisodeBegin(ctx context.Context, ts core.TimeStep) error
	OnBeforeAction(ctx context.Context, obs core.Observation) error
	// OnAfterAction returns the action downstream consumers observe.
	// Returning the argument leaves it unchanged.
	OnAfterAction(ctx context.Context, action core.Action) (core.Action, error)
	OnFeedback(ctx context.Context, action core.Action, next core.TimeStep) error
	OnEpisodeEnd(ctx context.Context) error
}

// Nop provides empty implementations for all hooks.
type Nop struct{}

func (Nop) OnEpisodeBegin(context.Context, core.TimeStep) error    { return nil }
func (Nop) OnBeforeAction(context.Context, core.Observation) error { return nil }
func (Nop) OnAfterAction(_ context.Context, action core.Action) (core.Action, error) {
	return action, nil
}
func (Nop) OnFeedback(context.Context, core.Action, core.TimeStep) error { return nil }
func (Nop) OnEpisodeEnd(context.Context) error                           { return nil }

// Toggle is an embeddable enabled flag. The zero value is enabled.
type Toggle struct {
	disabled bool
}

func (t *Toggle) Enabled() bool      { return !t.disabled }
func (t *Toggle) Enable()            { t.disabled = false }
func (t *Toggle) Disable()           { t.disabled = true }
func (t *Toggle) SetEnabled(on bool) { t.disabled = !on }

// Event names the fixed vocabulary of dispatchable events.
type Event string

const (
	EventEpisodeBegin Event = "episode_begin"
	EventBeforeAction Event = "before_action"
	EventAfterAction  Event = "after_action"
	EventFeedback     Event = "feedback"
	EventEpisodeEnd   Event = "episode_end"
)

// Events lists the vocabulary in loop order.
var Events = []Event{
	EventEpisodeBegin,
	EventBeforeAction,
	EventAfterAction,
	EventFeedback,
	EventEpisodeEnd,
}

// Params carries the arguments of a name-driven dispatch. Only the fields
// relevant to the event are read.
type Params struct {
	TimeStep    core.TimeStep
	Observation core.Observation
	Action      core.Action
}

func (e Event) String() string { return string(e) }

// Known reports whether e belongs to the vocabulary.
func (e Event) Known() bool {
	for _, k := range Events {
		if k == e {
			return true
		}
	}
	return false
}

// ParseEvent maps a name onto the vocabulary.
func ParseEvent(name string) (Event, error) {
	e := Event(name)
	if !e.Known() {
		return "", fmt.Errorf("unknown callback event %q", name)
	}
	return e, nil
}
