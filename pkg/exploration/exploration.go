// Package exploration provides agent callbacks that perturb or reshape the
// action proposed by the actor before it reaches the environment.
package exploration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/core"
)

// resolveSpec returns spec, or the actor's action spec when spec is empty.
func resolveSpec(spec core.BoundedSpec, owner *agent.Agent) (core.BoundedSpec, error) {
	if spec.Dims() == 0 {
		p, ok := owner.Actor().(core.ActionSpecProvider)
		if !ok {
			return core.BoundedSpec{}, errors.New("no action spec given and actor does not provide one")
		}
		spec = p.ActionSpec()
	}
	if err := spec.Validate(); err != nil {
		return core.BoundedSpec{}, err
	}
	return spec, nil
}

// GaussianNoise adds zero-mean Gaussian noise to every action dimension,
// optionally clipping the result into a spec.
type GaussianNoise struct {
	agent.Base

	stddev float64
	rng    *rand.Rand
	clip   *core.BoundedSpec
}

type NoiseOption func(*GaussianNoise)

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed uint64) NoiseOption {
	return func(g *GaussianNoise) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClip clips noisy actions into spec.
func WithClip(spec core.BoundedSpec) NoiseOption {
	return func(g *GaussianNoise) {
		g.clip = &spec
	}
}

func NewGaussianNoise(stddev float64, opts ...NoiseOption) (*GaussianNoise, error) {
	if math.IsNaN(stddev) || math.IsInf(stddev, 0) || stddev < 0 {
		return nil, fmt.Errorf("noise stddev must be a finite number >= 0, got %v", stddev)
	}
	g := &GaussianNoise{stddev: stddev}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.clip != nil {
		if err := g.clip.Validate(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *GaussianNoise) OnAfterAction(_ context.Context, action core.Action) (core.Action, error) {
	out := make(core.Action, len(action))
	for i, v := range action {
		out[i] = v + g.rng.NormFloat64()*g.stddev
	}
	if g.clip != nil {
		return g.clip.Clip(out)
	}
	return out, nil
}

// ClipToSpec clamps every action into a bounded spec. An empty spec is
// taken from the owner's actor at bind time.
type ClipToSpec struct {
	agent.Base
	spec core.BoundedSpec
}

func NewClipToSpec(spec core.BoundedSpec) *ClipToSpec {
	return &ClipToSpec{spec: spec}
}

// OnBind implements agent.BindHook.
func (c *ClipToSpec) OnBind(owner *agent.Agent) error {
	spec, err := resolveSpec(c.spec, owner)
	if err != nil {
		return err
	}
	c.spec = spec
	return nil
}

func (c *ClipToSpec) OnAfterAction(_ context.Context, action core.Action) (core.Action, error) {
	return c.spec.Clip(action)
}

func (c *ClipToSpec) Spec() core.BoundedSpec {
	return c.spec
}

// RescaleToSpec maps actions from [-1, 1] onto the bounds of a spec. With
// Squash set, inputs are first passed through tanh so any real value lands
// inside the bounds.
type RescaleToSpec struct {
	agent.Base
	spec   core.BoundedSpec
	Squash bool
}

func NewRescaleToSpec(spec core.BoundedSpec) *RescaleToSpec {
	return &RescaleToSpec{spec: spec}
}

// NewTanhToSpec rescales tanh-squashed actions onto spec.
func NewTanhToSpec(spec core.BoundedSpec) *RescaleToSpec {
	return &RescaleToSpec{spec: spec, Squash: true}
}

// OnBind implements agent.BindHook.
func (r *RescaleToSpec) OnBind(owner *agent.Agent) error {
	spec, err := resolveSpec(r.spec, owner)
	if err != nil {
		return err
	}
	r.spec = spec
	return nil
}

func (r *RescaleToSpec) OnAfterAction(_ context.Context, action core.Action) (core.Action, error) {
	if len(action) != r.spec.Dims() {
		return nil, fmt.Errorf("action shape mismatch: got=%d want=%d", len(action), r.spec.Dims())
	}
	out := make(core.Action, len(action))
	for i, v := range action {
		if r.Squash {
			v = math.Tanh(v)
		}
		scale := r.spec.Maximum[i] - r.spec.Minimum[i]
		out[i] = 0.5*(v+1.0)*scale + r.spec.Minimum[i]
	}
	return out, nil
}
