package core

import (
	"context"
)

// Environment is the external world the loop interacts with.
type Environment interface {
	// Reset starts a new episode and returns its first TimeStep
	Reset(ctx context.Context) (TimeStep, error)
	// Step applies an action and returns the resulting TimeStep
	Step(ctx context.Context, action Action) (TimeStep, error)
}

// ActionSpecProvider is implemented by environments with bounded actions.
type ActionSpecProvider interface {
	ActionSpec() BoundedSpec
}

// Actor proposes an action from an observation.
type Actor interface {
	SelectAction(ctx context.Context, obs Observation) (Action, error)
}

// ActorFunc adapts a plain function to the Actor interface.
type ActorFunc func(ctx context.Context, obs Observation) (Action, error)

func (f ActorFunc) SelectAction(ctx context.Context, obs Observation) (Action, error) {
	return f(ctx, obs)
}

// VariableSource exposes read-only named variables.
type VariableSource interface {
	Variables(names []string) ([][]float64, error)
}

// Learner performs units of learning and exposes its variables.
type Learner interface {
	VariableSource
	// Step performs one unit of learning
	Step(ctx context.Context) error
}
