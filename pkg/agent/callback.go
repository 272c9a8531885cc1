package agent

import (
	"errors"
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/boristopalov/trainloop/pkg/callback"
)

var (
	// ErrAlreadyBound is returned when a callback is bound a second time.
	ErrAlreadyBound = errors.New("callback already bound to an agent")
	// ErrNotBound is returned when the owner of an unbound callback is requested.
	ErrNotBound = errors.New("callback is not bound to an agent")
	// ErrOwnerGone is returned when the owning agent no longer exists.
	ErrOwnerGone = errors.New("owning agent is gone")
)

// Callback is a lifecycle callback bound to exactly one Agent.
type Callback interface {
	callback.Callback
	// Bind records owner as the callback's agent. It fails with
	// ErrAlreadyBound if called more than once.
	Bind(owner *Agent) error
	SetEnabled(on bool)
}

// BindHook is implemented by callbacks that validate or capture state from
// their owner while being bound. A returned error fails the bind.
type BindHook interface {
	OnBind(owner *Agent) error
}

// Base is embedded by agent callbacks. It supplies no-op event handlers,
// the enabled flag and a one-shot, non-owning reference to the agent.
type Base struct {
	callback.Nop
	callback.Toggle

	owner atomic.Pointer[weak.Pointer[Agent]]
}

// Bind implements Callback.
func (b *Base) Bind(owner *Agent) error {
	if owner == nil {
		return errors.New("cannot bind callback to a nil agent")
	}
	ref := weak.Make(owner)
	if !b.owner.CompareAndSwap(nil, &ref) {
		return ErrAlreadyBound
	}
	return nil
}

// unbind releases a binding to owner made by a constructor that failed.
func (b *Base) unbind(owner *Agent) {
	ref := b.owner.Load()
	if ref != nil && ref.Value() == owner {
		b.owner.CompareAndSwap(ref, nil)
	}
}

type unbinder interface {
	unbind(owner *Agent)
}

// Bound reports whether Bind has succeeded.
func (b *Base) Bound() bool {
	return b.owner.Load() != nil
}

// Owner resolves the back-reference to the owning agent.
func (b *Base) Owner() (*Agent, error) {
	ref := b.owner.Load()
	if ref == nil {
		return nil, ErrNotBound
	}
	a := ref.Value()
	if a == nil {
		return nil, ErrOwnerGone
	}
	return a, nil
}

// Bind binds cb to owner, runs its BindHook if any and sets its enabled
// flag. The callback is left disabled when the hook fails.
func Bind(cb Callback, owner *Agent, enabled bool) error {
	if cb == nil {
		return errors.New("callback is nil")
	}
	if err := cb.Bind(owner); err != nil {
		return fmt.Errorf("bind %T: %w", cb, err)
	}
	if hook, ok := cb.(BindHook); ok {
		if err := hook.OnBind(owner); err != nil {
			cb.SetEnabled(false)
			return fmt.Errorf("bind %T: %w", cb, err)
		}
	}
	cb.SetEnabled(enabled)
	return nil
}
