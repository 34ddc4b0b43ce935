package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_NoCandidatesShortCircuits(t *testing.T) {
	pins := []pin{{id: 1, at: orb.Point{-100, 45}}}
	idx := NewGridIndex(pins, locatePin, 0.01)

	buf, err := NewBufferBuilder(50).Build(orb.MultiLineString{{{-122.00, 37.00}, {-121.99, 37.00}}})
	require.NoError(t, err)

	assert.Empty(t, Candidates(idx, buf))
	assert.Nil(t, Join(idx, buf))
}

func TestJoin_FiltersCandidatesExactly(t *testing.T) {
	line := orb.LineString{{-122.00, 37.00}, {-121.99, 37.00}}
	pins := []pin{
		// ~11m from the trail
		{id: 1, at: orb.Point{-121.995, 37.0001}},
		// same grid cell, too far
		{id: 2, at: orb.Point{-121.995, 37.0 + metersToDegLat(80)}},
		// ~22m south
		{id: 3, at: orb.Point{-121.991, 36.9998}},
	}
	idx := NewGridIndex(pins, locatePin, 0.01)

	buf, err := NewBufferBuilder(50).Build(orb.MultiLineString{line})
	require.NoError(t, err)

	candidates := Candidates(idx, buf)
	assert.Len(t, candidates, 3)

	matches := Join(idx, buf)
	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.id)
	}
	assert.Equal(t, []int{1, 3}, ids)
}

func TestJoin_NilInputs(t *testing.T) {
	assert.Nil(t, Join[pin](nil, nil))
}
