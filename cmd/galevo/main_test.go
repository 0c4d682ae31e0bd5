package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrid(t *testing.T) {
	names, ranges, err := parseGrid([]string{"beta_disk=1,2.5, 4", "v_sn=110"})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta_disk", "v_sn"}, names)
	assert.Equal(t, [][]float64{{1, 2.5, 4}, {110}}, ranges)

	for _, bad := range []string{"beta_disk", "beta_disk=x", "v_sn=1,,2"} {
		_, _, err := parseGrid([]string{bad})
		assert.Error(t, err, bad)
	}
}
