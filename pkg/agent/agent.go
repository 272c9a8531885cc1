// Package agent combines an action-selection delegate with a fixed set of
// named, owner-bound callbacks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/boristopalov/trainloop/pkg/callback"
	"github.com/boristopalov/trainloop/pkg/core"
)

// ActorName is the name the actor is registered under when it is itself a
// Callback.
const ActorName = "actor"

var (
	// ErrNoLearner is returned by QueryVariables when no bound callback
	// exposes variables.
	ErrNoLearner = errors.New("no learner bound to agent")
	// ErrDuplicateName is returned when two callbacks share a name.
	ErrDuplicateName = errors.New("duplicate callback name")
)

// Agent mediates action selection through its bound callbacks.
type Agent struct {
	id        string
	actor     core.Actor
	callbacks *callback.List
	named     map[string]Callback
	names     []string
	logger    *slog.Logger
}

type namedCallback struct {
	name    string
	cb      Callback
	enabled bool
}

type AgentParams struct {
	AgentID   string
	Logger    *slog.Logger
	callbacks []namedCallback
}

type AgentOption func(*AgentParams)

func WithAgentID(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithLogger(logger *slog.Logger) AgentOption {
	return func(p *AgentParams) {
		p.Logger = logger
	}
}

// WithCallback registers cb under name, enabled. Callbacks are bound in the
// order their options are given.
func WithCallback(name string, cb Callback) AgentOption {
	return func(p *AgentParams) {
		p.callbacks = append(p.callbacks, namedCallback{name: name, cb: cb, enabled: true})
	}
}

// WithDisabledCallback registers cb under name but leaves it disabled.
func WithDisabledCallback(name string, cb Callback) AgentOption {
	return func(p *AgentParams) {
		p.callbacks = append(p.callbacks, namedCallback{name: name, cb: cb, enabled: false})
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID: "agent-" + uuid.New().String(),
		Logger:  slog.Default(),
	}
}

// New creates an agent around actor and binds every configured callback to
// it. If actor is itself a Callback it is bound last under ActorName.
// Names and instances are checked before any binding. Any bind failure
// aborts construction and releases the callbacks already bound, so the same
// instances can be passed to a later New.
func New(actor core.Actor, opts ...AgentOption) (*Agent, error) {
	if actor == nil {
		return nil, errors.New("agent requires an actor")
	}
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}

	a := &Agent{
		id:        params.AgentID,
		actor:     actor,
		callbacks: callback.NewList(),
		named:     make(map[string]Callback),
		logger:    params.Logger.With("agent_id", params.AgentID),
	}

	entries := params.callbacks
	if cb, ok := actor.(Callback); ok {
		entries = append(entries, namedCallback{name: ActorName, cb: cb, enabled: true})
	}
	if err := checkEntries(entries); err != nil {
		return nil, err
	}

	var bound []Callback
	for _, e := range entries {
		if err := Bind(e.cb, a, e.enabled); err != nil {
			if !errors.Is(err, ErrAlreadyBound) {
				bound = append(bound, e.cb)
			}
			release(bound, a)
			return nil, fmt.Errorf("callback %q: %w", e.name, err)
		}
		bound = append(bound, e.cb)
		a.named[e.name] = e.cb
		a.names = append(a.names, e.name)
		a.callbacks.Add(e.cb)
	}

	a.logger.Debug("agent created", "callbacks", a.names)
	return a, nil
}

// checkEntries rejects empty, duplicate or nil registrations before anything
// is bound.
func checkEntries(entries []namedCallback) error {
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.name == "" {
			return errors.New("callback name is empty")
		}
		if seen[e.name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, e.name)
		}
		seen[e.name] = true
		if e.cb == nil {
			return fmt.Errorf("callback %q is nil", e.name)
		}
		for _, prev := range entries[:i] {
			if prev.cb == e.cb {
				return fmt.Errorf("callback %q: same instance as %q: %w", e.name, prev.name, ErrAlreadyBound)
			}
		}
	}
	return nil
}

// release unbinds callbacks bound by a failed New so they can be reused.
// Callbacks that do not embed Base stay bound.
func release(bound []Callback, owner *Agent) {
	for _, cb := range bound {
		if u, ok := cb.(unbinder); ok {
			u.unbind(owner)
		}
	}
}

func (a *Agent) ID() string {
	return a.id
}

func (a *Agent) Actor() core.Actor {
	return a.actor
}

func (a *Agent) Logger() *slog.Logger {
	return a.logger
}

// Callbacks returns the agent's registry in binding order.
func (a *Agent) Callbacks() *callback.List {
	return a.callbacks
}

// Callback returns the callback registered under name.
func (a *Agent) Callback(name string) (Callback, bool) {
	cb, ok := a.named[name]
	return cb, ok
}

// Names returns the callback names in binding order.
func (a *Agent) Names() []string {
	return append([]string(nil), a.names...)
}

// SelectAction dispatches before_action, asks the actor for a proposal and
// threads it through after_action. The returned action reflects the last
// replacement made in dispatch order.
func (a *Agent) SelectAction(ctx context.Context, obs core.Observation) (core.Action, error) {
	if err := a.callbacks.BeforeAction(ctx, obs); err != nil {
		return nil, err
	}
	proposed, err := a.actor.SelectAction(ctx, obs)
	if err != nil {
		return nil, err
	}
	return a.callbacks.AfterAction(ctx, proposed)
}

// QueryVariables forwards to the first bound callback that exposes
// variables.
func (a *Agent) QueryVariables(names []string) ([][]float64, error) {
	for _, name := range a.names {
		if src, ok := a.named[name].(core.VariableSource); ok {
			return src.Variables(names)
		}
	}
	return nil, ErrNoLearner
}
