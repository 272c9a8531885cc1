package learning

import (
	"context"
	"fmt"
	"sync"
)

// RewardObserver is implemented by learners that want the reward of every
// feedback event the Controller sees.
type RewardObserver interface {
	ObserveReward(reward float64)
}

// Averager is a minimal learner. Observed rewards accumulate into a pending
// sum and are folded into the running mean on each Step.
type Averager struct {
	mu           sync.Mutex
	pendingSum   float64
	pendingCount int
	mean         float64
	seen         int
	steps        int
}

func NewAverager() *Averager {
	return &Averager{}
}

func (a *Averager) ObserveReward(reward float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingSum += reward
	a.pendingCount++
}

func (a *Averager) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingCount > 0 {
		total := a.seen + a.pendingCount
		a.mean += (a.pendingSum - a.mean*float64(a.pendingCount)) / float64(total)
		a.seen = total
		a.pendingSum, a.pendingCount = 0, 0
	}
	a.steps++
	return nil
}

// Pending returns the number of rewards observed since the last Step.
func (a *Averager) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingCount
}

// Variables serves "mean_reward", "rewards_seen" and "steps".
func (a *Averager) Variables(names []string) ([][]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]float64, 0, len(names))
	for _, name := range names {
		switch name {
		case "mean_reward":
			out = append(out, []float64{a.mean})
		case "rewards_seen":
			out = append(out, []float64{float64(a.seen)})
		case "steps":
			out = append(out, []float64{float64(a.steps)})
		default:
			return nil, fmt.Errorf("unknown variable %q", name)
		}
	}
	return out, nil
}
