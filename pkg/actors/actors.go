// Package actors provides ready-made action-selection delegates.
package actors

import (
	"context"
	"math/rand/v2"

	"github.com/boristopalov/trainloop/pkg/core"
)

// Constant always proposes the same action.
type Constant struct {
	action core.Action
}

func NewConstant(action core.Action) *Constant {
	return &Constant{action: action.Clone()}
}

func (c *Constant) SelectAction(context.Context, core.Observation) (core.Action, error) {
	return c.action.Clone(), nil
}

// Random proposes actions uniformly within a bounded spec.
type Random struct {
	spec core.BoundedSpec
	rng  *rand.Rand
}

// NewRandom validates spec. A zero seed draws one at random.
func NewRandom(spec core.BoundedSpec, seed uint64) (*Random, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Random{spec: spec, rng: rand.New(rand.NewPCG(seed, seed>>1|1))}, nil
}

func (r *Random) SelectAction(context.Context, core.Observation) (core.Action, error) {
	out := make(core.Action, r.spec.Dims())
	for i := range out {
		lo, hi := r.spec.Minimum[i], r.spec.Maximum[i]
		out[i] = lo + r.rng.Float64()*(hi-lo)
	}
	return out, nil
}

func (r *Random) ActionSpec() core.BoundedSpec {
	return r.spec
}
