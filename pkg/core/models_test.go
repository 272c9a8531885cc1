package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeStepConstructors(t *testing.T) {
	obs := Observation{1, 2}

	first := Restart(obs)
	assert.True(t, first.First())
	assert.False(t, first.Last())

	mid := Transition(0.5, obs)
	assert.True(t, mid.Mid())
	assert.Equal(t, 1.0, mid.Discount)

	term := Termination(1, obs)
	assert.True(t, term.Last())
	assert.Zero(t, term.Discount)

	trunc := Truncation(-1, obs)
	assert.True(t, trunc.Last())
	assert.Equal(t, 1.0, trunc.Discount)
}

func TestCloneIsIndependent(t *testing.T) {
	a := Action{1, 2}
	c := a.Clone()
	c[0] = 9
	assert.Equal(t, 1.0, a[0])
	assert.Nil(t, Action(nil).Clone())
	assert.Nil(t, Observation(nil).Clone())
}

func TestBoundedSpecValidate(t *testing.T) {
	assert.NoError(t, BoundedSpec{Minimum: []float64{-1, 0}, Maximum: []float64{1, 0}}.Validate())
	assert.Error(t, BoundedSpec{}.Validate())
	assert.Error(t, BoundedSpec{Minimum: []float64{0}, Maximum: []float64{1, 2}}.Validate())
	assert.Error(t, BoundedSpec{Minimum: []float64{2}, Maximum: []float64{1}}.Validate())
	assert.Error(t, BoundedSpec{Minimum: []float64{math.NaN()}, Maximum: []float64{1}}.Validate())
}

func TestBoundedSpecClip(t *testing.T) {
	spec := BoundedSpec{Minimum: []float64{-1, 0}, Maximum: []float64{1, 10}}

	in := Action{-3, 5}
	got, err := spec.Clip(in)
	require.NoError(t, err)
	assert.Equal(t, Action{-1, 5}, got)
	assert.Equal(t, Action{-3, 5}, in)

	_, err = spec.Clip(Action{0})
	assert.Error(t, err)
	assert.Equal(t, 2, spec.Dims())
}
