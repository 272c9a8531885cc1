// Package replay records the transitions an agent experiences so they can
// be sampled later.
package replay

import (
	"context"
	"fmt"

	"github.com/boristopalov/trainloop/pkg/core"
)

// Transition is one (observation, action, reward, next observation) step.
type Transition struct {
	RunID           string           `json:"run_id"`
	Episode         int              `json:"episode"`
	Index           int              `json:"index"`
	Observation     core.Observation `json:"observation"`
	Action          core.Action      `json:"action"`
	Reward          float64          `json:"reward"`
	Discount        float64          `json:"discount"`
	NextObservation core.Observation `json:"next_observation"`
	Last            bool             `json:"last"`
}

// Store persists transitions. List returns the oldest transitions of a run
// first; a limit <= 0 returns all of them.
type Store interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, t Transition) error
	List(ctx context.Context, runID string, limit int) ([]Transition, error)
	Count(ctx context.Context, runID string) (int, error)
	Close() error
}

// NewStore builds a store by backend name. capacity only applies to the
// memory backend.
func NewStore(kind, sqlitePath string, capacity int) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(capacity), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported replay backend: %s", kind)
	}
}
