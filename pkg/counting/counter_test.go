package counting

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterAccumulates(t *testing.T) {
	c := New(nil, "")
	c.Increment(map[string]int{"episodes": 1, "steps": 10})
	got := c.Increment(map[string]int{"episodes": 1, "steps": 5})

	assert.Equal(t, map[string]int{"episodes": 2, "steps": 15}, got)
	assert.Equal(t, 15, c.Get("steps"))
	assert.Zero(t, c.Get("missing"))
}

func TestCounterForwardsToParent(t *testing.T) {
	root := New(nil, "")
	actor := New(root, "actor")
	learner := New(root, "learner")

	actor.Increment(map[string]int{"steps": 3})
	learner.Increment(map[string]int{"steps": 1})
	actor.Increment(map[string]int{"steps": 2})

	assert.Equal(t, map[string]int{"steps": 5}, actor.Counts())
	assert.Equal(t, map[string]int{"actor_steps": 5, "learner_steps": 1}, root.Counts())
}

func TestCounterSnapshotIsCopy(t *testing.T) {
	c := New(nil, "")
	snap := c.Increment(map[string]int{"a": 1})
	snap["a"] = 100
	assert.Equal(t, 1, c.Get("a"))
}

func TestCounterConcurrentIncrements(t *testing.T) {
	root := New(nil, "")
	child := New(root, "w")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				child.Increment(map[string]int{"n": 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, child.Get("n"))
	assert.Equal(t, 800, root.Get("w_n"))
}
