package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegions(t *testing.T) {
	got, err := parseRegions("eu=2, NA ,AS=0.5")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"EU": 2, "NA": 1, "AS": 0.5}, got)

	for _, bad := range []string{"", " , ", "=1", "EU=x", "EU=-1"} {
		_, err := parseRegions(bad)
		assert.Error(t, err, bad)
	}
}
