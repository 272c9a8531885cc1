package core

import (
	"errors"
	"fmt"
	"math"
)

// Observation is what an environment reports to the agent.
type Observation []float64

// Clone returns an independent copy of the observation.
func (o Observation) Clone() Observation {
	if o == nil {
		return nil
	}
	return append(Observation(nil), o...)
}

// Action is what the agent sends back to the environment.
type Action []float64

// Clone returns an independent copy of the action.
func (a Action) Clone() Action {
	if a == nil {
		return nil
	}
	return append(Action(nil), a...)
}

// StepType marks where a TimeStep sits inside an episode.
type StepType int

const (
	StepFirst StepType = iota
	StepMid
	StepLast
)

func (t StepType) String() string {
	switch t {
	case StepFirst:
		return "first"
	case StepMid:
		return "mid"
	case StepLast:
		return "last"
	default:
		return fmt.Sprintf("step_type(%d)", int(t))
	}
}

// TimeStep is the environment's reported state after a reset or a step.
type TimeStep struct {
	Type        StepType
	Reward      float64
	Discount    float64
	Observation Observation
}

func (t TimeStep) First() bool { return t.Type == StepFirst }
func (t TimeStep) Mid() bool   { return t.Type == StepMid }
func (t TimeStep) Last() bool  { return t.Type == StepLast }

// Restart builds the first TimeStep of an episode.
func Restart(obs Observation) TimeStep {
	return TimeStep{Type: StepFirst, Observation: obs}
}

// Transition builds a mid-episode TimeStep.
func Transition(reward float64, obs Observation) TimeStep {
	return TimeStep{Type: StepMid, Reward: reward, Discount: 1, Observation: obs}
}

// Termination builds the terminal TimeStep of an episode.
func Termination(reward float64, obs Observation) TimeStep {
	return TimeStep{Type: StepLast, Reward: reward, Discount: 0, Observation: obs}
}

// Truncation ends an episode without zeroing the discount.
func Truncation(reward float64, obs Observation) TimeStep {
	return TimeStep{Type: StepLast, Reward: reward, Discount: 1, Observation: obs}
}

// BoundedSpec describes per-dimension bounds of an action.
type BoundedSpec struct {
	Minimum []float64 `yaml:"minimum" json:"minimum"`
	Maximum []float64 `yaml:"maximum" json:"maximum"`
}

// Validate checks that the bounds have matching shapes and are ordered.
func (s BoundedSpec) Validate() error {
	if len(s.Minimum) == 0 {
		return errors.New("bounded spec has no dimensions")
	}
	if len(s.Minimum) != len(s.Maximum) {
		return fmt.Errorf("bounded spec shape mismatch: minimum=%d maximum=%d", len(s.Minimum), len(s.Maximum))
	}
	for i := range s.Minimum {
		if math.IsNaN(s.Minimum[i]) || math.IsNaN(s.Maximum[i]) {
			return fmt.Errorf("bounded spec dimension %d is NaN", i)
		}
		if s.Minimum[i] > s.Maximum[i] {
			return fmt.Errorf("bounded spec dimension %d: minimum %.4g > maximum %.4g", i, s.Minimum[i], s.Maximum[i])
		}
	}
	return nil
}

// Dims returns the number of action dimensions.
func (s BoundedSpec) Dims() int {
	return len(s.Minimum)
}

// Clip returns a copy of a with every dimension clamped into the bounds.
func (s BoundedSpec) Clip(a Action) (Action, error) {
	if len(a) != len(s.Minimum) {
		return nil, fmt.Errorf("action shape mismatch: got=%d want=%d", len(a), len(s.Minimum))
	}
	out := make(Action, len(a))
	for i, v := range a {
		out[i] = math.Min(math.Max(v, s.Minimum[i]), s.Maximum[i])
	}
	return out, nil
}
