package environment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/boristopalov/trainloop/pkg/core"
)

// Bandit is a k-armed bandit played for a fixed horizon. action[0] is
// rounded to the nearest arm index. The observation is the number of pulls
// so far.
type Bandit struct {
	BaseEnvironment

	means   []float64
	horizon int
	noise   float64
	rng     *rand.Rand
}

func NewBandit(means []float64, horizon int, noise float64, seed uint64) (*Bandit, error) {
	if len(means) == 0 {
		return nil, errors.New("bandit needs at least one arm")
	}
	if horizon < 1 {
		return nil, fmt.Errorf("bandit horizon must be >= 1, got %d", horizon)
	}
	if noise < 0 {
		return nil, fmt.Errorf("bandit noise must be >= 0, got %v", noise)
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Bandit{
		means:   append([]float64(nil), means...),
		horizon: horizon,
		noise:   noise,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
	}, nil
}

func (b *Bandit) ActionSpec() core.BoundedSpec {
	return core.BoundedSpec{Minimum: []float64{0}, Maximum: []float64{float64(len(b.means) - 1)}}
}

func (b *Bandit) Reset(ctx context.Context) (core.TimeStep, error) {
	if err := ctx.Err(); err != nil {
		return core.TimeStep{}, err
	}
	b.begin()
	return core.Restart(core.Observation{0}), nil
}

func (b *Bandit) Step(ctx context.Context, action core.Action) (core.TimeStep, error) {
	if err := ctx.Err(); err != nil {
		return core.TimeStep{}, err
	}
	if len(action) != 1 {
		return core.TimeStep{}, fmt.Errorf("bandit expects 1 action value, got %d", len(action))
	}
	step, err := b.advance()
	if err != nil {
		return core.TimeStep{}, err
	}

	arm := int(math.Round(action[0]))
	arm = max(0, min(arm, len(b.means)-1))
	reward := b.means[arm] + b.rng.NormFloat64()*b.noise
	obs := core.Observation{float64(step)}

	if int(step) >= b.horizon {
		b.finish()
		return core.Truncation(reward, obs), nil
	}
	return core.Transition(reward, obs), nil
}

// Means returns the expected reward of every arm.
func (b *Bandit) Means() []float64 {
	return append([]float64(nil), b.means...)
}
