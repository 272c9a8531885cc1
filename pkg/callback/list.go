package callback

import (
	"context"

	"github.com/boristopalov/trainloop/pkg/core"
)

// List is an ordered collection of callbacks. Dispatch visits enabled
// members in registration order; disabled members stay registered.
//
// A handler error stops dispatch immediately and is returned unchanged.
// List is not safe for concurrent mutation.
type List struct {
	callbacks []Callback
}

// NewList creates a list holding cbs in the given order.
func NewList(cbs ...Callback) *List {
	l := &List{callbacks: make([]Callback, 0, len(cbs))}
	for _, cb := range cbs {
		l.Add(cb)
	}
	return l
}

// Add appends cb. Nil callbacks are ignored.
func (l *List) Add(cb Callback) {
	if cb == nil {
		return
	}
	l.callbacks = append(l.callbacks, cb)
}

// Len returns the number of registered callbacks.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.callbacks)
}

// Callbacks returns a copy of the registered callbacks.
func (l *List) Callbacks() []Callback {
	if l == nil {
		return nil
	}
	out := make([]Callback, len(l.callbacks))
	copy(out, l.callbacks)
	return out
}

// Concat returns a new list with l's members followed by other's.
func (l *List) Concat(other *List) *List {
	merged := NewList(l.Callbacks()...)
	for _, cb := range other.Callbacks() {
		merged.Add(cb)
	}
	return merged
}

func (l *List) each(fn func(Callback) error) error {
	if l == nil {
		return nil
	}
	for _, cb := range l.callbacks {
		if !cb.Enabled() {
			continue
		}
		if err := fn(cb); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) EpisodeBegin(ctx context.Context, ts core.TimeStep) error {
	return l.each(func(cb Callback) error { return cb.OnEpisodeBegin(ctx, ts) })
}

func (l *List) BeforeAction(ctx context.Context, obs core.Observation) error {
	return l.each(func(cb Callback) error { return cb.OnBeforeAction(ctx, obs) })
}

// AfterAction threads action through every enabled member. Each member
// sees the value returned by the one before it.
func (l *List) AfterAction(ctx context.Context, action core.Action) (core.Action, error) {
	current := action
	err := l.each(func(cb Callback) error {
		next, err := cb.OnAfterAction(ctx, current)
		if err != nil {
			return err
		}
		current = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

func (l *List) Feedback(ctx context.Context, action core.Action, next core.TimeStep) error {
	return l.each(func(cb Callback) error { return cb.OnFeedback(ctx, action, next) })
}

func (l *List) EpisodeEnd(ctx context.Context) error {
	return l.each(func(cb Callback) error { return cb.OnEpisodeEnd(ctx) })
}

// Dispatch routes a named event. Names outside the vocabulary are no-ops.
// For EventAfterAction the returned action is the threaded result; for
// every other event it is p.Action.
func (l *List) Dispatch(ctx context.Context, event Event, p Params) (core.Action, error) {
	switch event {
	case EventEpisodeBegin:
		return p.Action, l.EpisodeBegin(ctx, p.TimeStep)
	case EventBeforeAction:
		return p.Action, l.BeforeAction(ctx, p.Observation)
	case EventAfterAction:
		return l.AfterAction(ctx, p.Action)
	case EventFeedback:
		return p.Action, l.Feedback(ctx, p.Action, p.TimeStep)
	case EventEpisodeEnd:
		return p.Action, l.EpisodeEnd(ctx)
	default:
		return p.Action, nil
	}
}
