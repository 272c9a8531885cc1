package learning_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/trainloop/internal/testutil"
	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/core"
	"github.com/boristopalov/trainloop/pkg/learning"
)

// stepsPerTick feeds n feedback events and returns the learner steps fired
// by each one.
func stepsPerTick(t *testing.T, c *learning.Controller, l *testutil.CountingLearner, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		before := l.Steps
		require.NoError(t, c.OnFeedback(context.Background(), nil, core.Transition(0, nil)))
		out = append(out, l.Steps-before)
	}
	return out
}

func TestControllerDerivation(t *testing.T) {
	cases := []struct {
		ratio    float64
		wantObs  int
		wantStep int
	}{
		{ratio: 1, wantObs: 1, wantStep: 1},
		{ratio: 4, wantObs: 4, wantStep: 1},
		{ratio: 2.7, wantObs: 2, wantStep: 1},
		{ratio: 0.25, wantObs: 1, wantStep: 4},
		{ratio: 0.3, wantObs: 1, wantStep: 3},
	}
	for _, tc := range cases {
		c, err := learning.NewController(&testutil.CountingLearner{}, 0, tc.ratio)
		require.NoError(t, err)
		assert.Equal(t, tc.wantObs, c.ObservationsPerUpdate(), "ratio %v", tc.ratio)
		assert.Equal(t, tc.wantStep, c.StepsPerUpdate(), "ratio %v", tc.ratio)
	}
}

func TestControllerRejectsInvalidArguments(t *testing.T) {
	for _, ratio := range []float64{0, -1, math.NaN(), math.Inf(1), 1e20, 1e-320, 1e-12} {
		_, err := learning.NewController(&testutil.CountingLearner{}, 0, ratio)
		assert.ErrorIs(t, err, learning.ErrInvalidRatio, "ratio %v", ratio)
	}

	_, err := learning.NewController(&testutil.CountingLearner{}, -1, 1)
	assert.ErrorIs(t, err, learning.ErrInvalidWarmup)

	_, err = learning.NewController(nil, 0, 1)
	assert.Error(t, err)
}

func TestControllerLargestCadenceStaysPositive(t *testing.T) {
	c, err := learning.NewController(&testutil.CountingLearner{}, 0, math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, c.ObservationsPerUpdate())

	c, err = learning.NewController(&testutil.CountingLearner{}, 0, 1.0/1024)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.StepsPerUpdate())
}

func TestControllerWarmup(t *testing.T) {
	l := &testutil.CountingLearner{}
	c, err := learning.NewController(l, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, -5, c.ObservationCount())

	// The count returns to zero on the fifth tick, which fires.
	got := stepsPerTick(t, c, l, 8)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1}, got)
	assert.Equal(t, 4, c.Steps())
}

func TestControllerSeveralStepsPerObservation(t *testing.T) {
	l := &testutil.CountingLearner{}
	c, err := learning.NewController(l, 0, 0.25)
	require.NoError(t, err)

	assert.Equal(t, []int{4, 4, 4}, stepsPerTick(t, c, l, 3))
	assert.Equal(t, 12, l.Steps)
}

func TestControllerSeveralObservationsPerStep(t *testing.T) {
	l := &testutil.CountingLearner{}
	c, err := learning.NewController(l, 0, 4)
	require.NoError(t, err)

	got := stepsPerTick(t, c, l, 12)
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1}, got)
	assert.Equal(t, 0, c.ObservationCount())
}

func TestControllerWarmupThenRatio(t *testing.T) {
	l := &testutil.CountingLearner{}
	c, err := learning.NewController(l, 2, 2)
	require.NoError(t, err)

	got := stepsPerTick(t, c, l, 6)
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, got)
}

func TestControllerStepErrorAborts(t *testing.T) {
	boom := errors.New("step failed")
	l := &testutil.CountingLearner{Err: boom}
	c, err := learning.NewController(l, 0, 0.5)
	require.NoError(t, err)

	err = c.OnFeedback(context.Background(), nil, core.Transition(0, nil))
	assert.Same(t, boom, err)
	assert.Zero(t, c.Steps())
}

func TestControllerAsAgentLearner(t *testing.T) {
	l := &testutil.CountingLearner{Vars: map[string][]float64{"w": {0.5}}}
	c, err := learning.NewController(l, 0, 1)
	require.NoError(t, err)

	a, err := agent.New(&testutil.FixedActor{}, agent.WithCallback("learner", c))
	require.NoError(t, err)
	owner, err := c.Owner()
	require.NoError(t, err)
	assert.Same(t, a, owner)

	vals, err := a.QueryVariables([]string{"w"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5}}, vals)
}

func TestControllerDisabledDoesNotCount(t *testing.T) {
	l := &testutil.CountingLearner{}
	c, err := learning.NewController(l, 0, 1)
	require.NoError(t, err)
	a, err := agent.New(&testutil.FixedActor{}, agent.WithDisabledCallback("learner", c))
	require.NoError(t, err)

	require.NoError(t, a.Callbacks().Feedback(context.Background(), nil, core.Transition(0, nil)))
	assert.Zero(t, l.Steps)
}
