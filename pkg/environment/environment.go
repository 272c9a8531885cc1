// Package environment holds small bundled environments for running and
// testing the loop.
package environment

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boristopalov/trainloop/pkg/config"
	"github.com/boristopalov/trainloop/pkg/core"
)

// ErrNotReset is returned by Step before the first Reset or after an
// episode has ended.
var ErrNotReset = errors.New("environment must be reset before stepping")

type State struct {
	Status    string
	Step      uint32
	Episode   uint32
	Timestamp time.Time
}

// BaseEnvironment tracks episode bookkeeping shared by every environment.
// The zero value is idle.
type BaseEnvironment struct {
	mu    sync.RWMutex
	state State
}

func (e *BaseEnvironment) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.state
	if st.Status == "" {
		st.Status = "idle"
	}
	return st
}

func (e *BaseEnvironment) begin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Status = "running"
	e.state.Step = 0
	e.state.Episode++
	e.state.Timestamp = time.Now()
}

// advance counts one step. It fails unless an episode is running.
func (e *BaseEnvironment) advance() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != "running" {
		return 0, ErrNotReset
	}
	e.state.Step++
	e.state.Timestamp = time.Now()
	return e.state.Step, nil
}

func (e *BaseEnvironment) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Status = "done"
}

// Environment is a core.Environment with a bounded action space.
type Environment interface {
	core.Environment
	core.ActionSpecProvider
	GetState() State
}

// NewEnvironment builds a bundled environment by type name.
func NewEnvironment(cfg config.EnvConfig) (Environment, error) {
	p := params(cfg.Config)
	switch cfg.Type {
	case "", "corridor":
		length, err := p.intOpt("length", 5)
		if err != nil {
			return nil, err
		}
		maxSteps, err := p.intOpt("max_steps", 50)
		if err != nil {
			return nil, err
		}
		penalty, err := p.floatOpt("step_penalty", 0.01)
		if err != nil {
			return nil, err
		}
		return NewCorridor(length, maxSteps, penalty)
	case "bandit":
		means, err := p.floatsOpt("means", []float64{0.2, 0.5, 0.8})
		if err != nil {
			return nil, err
		}
		horizon, err := p.intOpt("horizon", 20)
		if err != nil {
			return nil, err
		}
		noise, err := p.floatOpt("noise", 0.1)
		if err != nil {
			return nil, err
		}
		seed, err := p.intOpt("seed", 0)
		if err != nil {
			return nil, err
		}
		return NewBandit(means, horizon, noise, uint64(seed))
	default:
		return nil, fmt.Errorf("unknown environment type %q", cfg.Type)
	}
}

type params map[string]any

func (p params) intOpt(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("environment option %s: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("environment option %s: expected integer, got %T", key, v)
	}
}

func (p params) floatOpt(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("environment option %s: expected number, got %T", key, v)
	}
}

func (p params) floatsOpt(key string, def []float64) ([]float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	raw, ok := v.([]any)
	if !ok {
		if fs, ok := v.([]float64); ok {
			return fs, nil
		}
		return nil, fmt.Errorf("environment option %s: expected list, got %T", key, v)
	}
	out := make([]float64, len(raw))
	for i, item := range raw {
		f, err := params{key: item}.floatOpt(key, 0)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
