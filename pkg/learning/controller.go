// Package learning decides when learning steps fire during the
// environment loop.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/core"
)

var (
	// ErrInvalidRatio is returned for a non-positive or non-finite
	// observations-per-step ratio.
	ErrInvalidRatio = errors.New("observations per step must be a finite number > 0")
	// ErrInvalidWarmup is returned for a negative minimum observation count.
	ErrInvalidWarmup = errors.New("min observations must be >= 0")
)

// Controller is an agent callback that counts feedback events and runs
// learner steps at a fixed observation/step ratio.
//
// No step fires before minObservations feedback events have been seen.
// After that, every observationsPerUpdate events fire stepsPerUpdate
// consecutive learner steps. At most one of the two is greater than one.
type Controller struct {
	agent.Base

	learner               core.Learner
	observationCount      int
	observationsPerUpdate int
	stepsPerUpdate        int
	steps                 int
	logger                *slog.Logger
}

// NewController derives the update cadence from observationsPerStep. A
// ratio of at least one means floor(ratio) observations per single step;
// below one it means floor(1/ratio) steps per observation.
func NewController(learner core.Learner, minObservations int, observationsPerStep float64) (*Controller, error) {
	if learner == nil {
		return nil, errors.New("controller requires a learner")
	}
	if minObservations < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWarmup, minObservations)
	}
	if math.IsNaN(observationsPerStep) || math.IsInf(observationsPerStep, 0) || observationsPerStep <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, observationsPerStep)
	}

	observationsPerUpdate, stepsPerUpdate := 1, 1
	if observationsPerStep >= 1.0 {
		n, err := cadence(observationsPerStep)
		if err != nil {
			return nil, err
		}
		observationsPerUpdate = n
	} else {
		n, err := cadence(1.0 / observationsPerStep)
		if err != nil {
			return nil, err
		}
		stepsPerUpdate = n
	}

	return &Controller{
		learner:               learner,
		observationCount:      -minObservations,
		observationsPerUpdate: observationsPerUpdate,
		stepsPerUpdate:        stepsPerUpdate,
		logger:                slog.Default(),
	}, nil
}

// maxCadence bounds both derived counts so they convert to int exactly.
const maxCadence = math.MaxInt32

func cadence(v float64) (int, error) {
	f := math.Floor(v)
	if math.IsInf(f, 0) || f > maxCadence {
		return 0, fmt.Errorf("%w: derived cadence %v exceeds %d", ErrInvalidRatio, f, maxCadence)
	}
	return int(f), nil
}

// OnBind implements agent.BindHook.
func (c *Controller) OnBind(owner *agent.Agent) error {
	c.logger = owner.Logger().With("callback", "learning_controller")
	return nil
}

// OnFeedback implements callback.Callback.
func (c *Controller) OnFeedback(ctx context.Context, _ core.Action, next core.TimeStep) error {
	if obs, ok := c.learner.(RewardObserver); ok {
		obs.ObserveReward(next.Reward)
	}
	c.observationCount++
	if c.observationCount < 0 || c.observationCount%c.observationsPerUpdate != 0 {
		return nil
	}
	c.observationCount = 0

	for i := 0; i < c.stepsPerUpdate; i++ {
		if err := c.learner.Step(ctx); err != nil {
			return err
		}
		c.steps++
	}
	c.logger.Debug("learner update", "steps", c.stepsPerUpdate, "total_steps", c.steps)
	return nil
}

// Variables forwards to the learner.
func (c *Controller) Variables(names []string) ([][]float64, error) {
	return c.learner.Variables(names)
}

func (c *Controller) Learner() core.Learner {
	return c.learner
}

func (c *Controller) ObservationsPerUpdate() int {
	return c.observationsPerUpdate
}

func (c *Controller) StepsPerUpdate() int {
	return c.stepsPerUpdate
}

// ObservationCount is negative while warming up.
func (c *Controller) ObservationCount() int {
	return c.observationCount
}

// Steps returns the number of learner steps fired so far.
func (c *Controller) Steps() int {
	return c.steps
}
