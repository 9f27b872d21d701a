package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrid(t *testing.T) {
	names, ranges, err := parseGrid([]string{"high=21,22.5, 23", "low=19"})
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, names)
	assert.Equal(t, [][]float64{{21, 22.5, 23}, {19}}, ranges)

	for _, bad := range []string{"high", "=1", "high=a,2"} {
		_, _, err := parseGrid([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "a=1 b=0.5", formatParams(map[string]float64{"b": 0.5, "a": 1}))
	assert.Equal(t, "", formatParams(nil))
}
