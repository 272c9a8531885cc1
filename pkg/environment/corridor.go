package environment

import (
	"context"
	"fmt"

	"github.com/boristopalov/trainloop/pkg/core"
)

// Corridor is a one-dimensional walk from cell 0 to the last cell. A
// positive action[0] moves right, a negative one moves left. Reaching the
// goal pays 1 and ends the episode; every other step costs stepPenalty.
// Episodes are truncated after maxSteps.
type Corridor struct {
	BaseEnvironment

	length      int
	maxSteps    int
	stepPenalty float64
	position    int
}

func NewCorridor(length, maxSteps int, stepPenalty float64) (*Corridor, error) {
	if length < 2 {
		return nil, fmt.Errorf("corridor length must be >= 2, got %d", length)
	}
	if maxSteps < 1 {
		return nil, fmt.Errorf("corridor max steps must be >= 1, got %d", maxSteps)
	}
	return &Corridor{
		length:      length,
		maxSteps:    maxSteps,
		stepPenalty: stepPenalty,
	}, nil
}

func (c *Corridor) ActionSpec() core.BoundedSpec {
	return core.BoundedSpec{Minimum: []float64{-1}, Maximum: []float64{1}}
}

func (c *Corridor) Reset(ctx context.Context) (core.TimeStep, error) {
	if err := ctx.Err(); err != nil {
		return core.TimeStep{}, err
	}
	c.begin()
	c.position = 0
	return core.Restart(c.observe()), nil
}

func (c *Corridor) Step(ctx context.Context, action core.Action) (core.TimeStep, error) {
	if err := ctx.Err(); err != nil {
		return core.TimeStep{}, err
	}
	if len(action) != 1 {
		return core.TimeStep{}, fmt.Errorf("corridor expects 1 action value, got %d", len(action))
	}
	step, err := c.advance()
	if err != nil {
		return core.TimeStep{}, err
	}

	switch {
	case action[0] > 0 && c.position < c.length-1:
		c.position++
	case action[0] < 0 && c.position > 0:
		c.position--
	}

	if c.position == c.length-1 {
		c.finish()
		return core.Termination(1, c.observe()), nil
	}
	if int(step) >= c.maxSteps {
		c.finish()
		return core.Truncation(-c.stepPenalty, c.observe()), nil
	}
	return core.Transition(-c.stepPenalty, c.observe()), nil
}

func (c *Corridor) observe() core.Observation {
	return core.Observation{float64(c.position)}
}
