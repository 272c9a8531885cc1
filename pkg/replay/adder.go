package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/core"
)

var (
	// ErrEpisodeOpen is returned when an episode begins before the previous
	// one has reached its last timestep.
	ErrEpisodeOpen = errors.New("replay: episode already open")
	// ErrNoEpisode is returned for feedback outside an episode.
	ErrNoEpisode = errors.New("replay: no open episode")
	// ErrNotFirst is returned when an episode begins with a timestep that is
	// not the first of an episode.
	ErrNotFirst = errors.New("replay: episode must begin with a first timestep")
)

// Adder is a callback that writes every feedback tick to a Store as a
// Transition. It can be bound to an agent or added to a loop directly.
type Adder struct {
	agent.Base

	store   Store
	runID   string
	open    bool
	episode int
	index   int
	prev    core.Observation
}

func NewAdder(store Store, runID string) *Adder {
	return &Adder{store: store, runID: runID}
}

func (a *Adder) OnEpisodeBegin(_ context.Context, ts core.TimeStep) error {
	if a.open {
		return ErrEpisodeOpen
	}
	if !ts.First() {
		return fmt.Errorf("%w: got %s", ErrNotFirst, ts.Type)
	}
	a.open = true
	a.index = 0
	a.prev = ts.Observation.Clone()
	return nil
}

func (a *Adder) OnFeedback(ctx context.Context, action core.Action, next core.TimeStep) error {
	if !a.open {
		return ErrNoEpisode
	}
	err := a.store.Add(ctx, Transition{
		RunID:           a.runID,
		Episode:         a.episode,
		Index:           a.index,
		Observation:     a.prev,
		Action:          action.Clone(),
		Reward:          next.Reward,
		Discount:        next.Discount,
		NextObservation: next.Observation.Clone(),
		Last:            next.Last(),
	})
	if err != nil {
		return err
	}
	a.prev = next.Observation.Clone()
	a.index++
	if next.Last() {
		a.close()
	}
	return nil
}

// OnEpisodeEnd closes an episode that ended without a last timestep.
func (a *Adder) OnEpisodeEnd(context.Context) error {
	if a.open {
		a.close()
	}
	return nil
}

func (a *Adder) close() {
	a.open = false
	a.prev = nil
	a.episode++
}

// Episodes returns the number of episodes written so far.
func (a *Adder) Episodes() int {
	return a.episode
}
