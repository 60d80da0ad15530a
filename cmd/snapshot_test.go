package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immansha/renewcast/core/forecast"
)

func TestWriteSnapshot(t *testing.T) {
	snap := forecast.Snapshot{
		SavedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Entities: map[string]forecast.EntitySnapshot{
			"TN01": {NTrained: 3},
			"RJ01": {NTrained: 12, MAESum: 24, MAECount: 8, MAEHistory: []float64{2, 4}, Deviations: []float64{0.1, 0.5}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, snap))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "saved 2024-05-01 12:00:00Z, 2 plants", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "RJ01"))
	assert.Equal(t, []string{"RJ01", "12", "3.00", "3.00", "1.41", "0.30", "0.50"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"TN01", "3", "0.00", "0.00", "0.00", "0.00", "0.00"}, strings.Fields(lines[3]))
}

func TestMeanStd(t *testing.T) {
	m, s := meanStd([]float64{7})
	assert.Equal(t, 7.0, m)
	assert.Equal(t, 0.0, s)
}
