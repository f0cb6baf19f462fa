package analysis_test

import (
	"math"
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	sec, err := analysis.ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 27000.0, sec)
	sec, err = analysis.ParseClock("25:05")
	require.NoError(t, err)
	assert.Equal(t, 90300.0, sec)

	for _, bad := range []string{"0730", "7:60", "a:00", "-1:00", "7:xx"} {
		_, err := analysis.ParseClock(bad)
		assert.ErrorIs(t, err, algo.ErrSchema, bad)
	}
}

func occupancyProfile(t *testing.T) *analysis.OccupancyProfile {
	p, err := analysis.NewOccupancyProfile([]string{"STAY", "RELOCATE", "0 pax", "1 pax"}, []analysis.OccupancySample{
		{Time: 28800, Counts: []float64{5, 1, 2, 2}},
		{Time: 0, Counts: []float64{10, 0, 0, 0}},
		{Time: 25200, Counts: []float64{6, 0, 3, 1}},
		{Time: 32400, Counts: []float64{4, 0, 4, 2}},
	})
	require.NoError(t, err)
	return p
}

func TestOccupancyWindow(t *testing.T) {
	p := occupancyProfile(t)
	w, err := p.Window(analysis.OccupancyOptions{StartHour: 7, EndHour: 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"0 pax", "1 pax"}, w.States)
	// 两端都包含，按时刻排序
	require.Len(t, w.Samples, 2)
	assert.Equal(t, 25200.0, w.Samples[0].Time)
	assert.Equal(t, []float64{3, 1}, w.Samples[0].Counts)
	assert.Equal(t, []float64{2, 2}, w.Samples[1].Counts)
	assert.Equal(t, []float64{2.5, 1.5}, w.MeanCounts())

	all, err := p.Window(analysis.OccupancyOptions{StartHour: 0, EndHour: 24, KeepIdle: true})
	require.NoError(t, err)
	assert.Len(t, all.States, 4)
	assert.Len(t, all.Samples, 4)
	assert.Equal(t, 0.0, all.Samples[0].Time)
	// 原剖面不变
	assert.Equal(t, 28800.0, p.Samples[0].Time)

	empty, err := p.Window(analysis.OccupancyOptions{StartHour: 12, EndHour: 13})
	require.NoError(t, err)
	assert.Empty(t, empty.Samples)
	assert.True(t, math.IsNaN(empty.MeanCounts()[0]))

	_, err = p.Window(analysis.OccupancyOptions{StartHour: 9, EndHour: 8})
	assert.ErrorIs(t, err, algo.ErrConfig)
}

func TestNewOccupancyProfileErrors(t *testing.T) {
	_, err := analysis.NewOccupancyProfile(nil, nil)
	assert.ErrorIs(t, err, algo.ErrSchema)
	_, err = analysis.NewOccupancyProfile([]string{"a", "a"}, nil)
	assert.ErrorIs(t, err, algo.ErrSchema)
	_, err = analysis.NewOccupancyProfile([]string{"a", "b"}, []analysis.OccupancySample{{Counts: []float64{1}}})
	assert.ErrorIs(t, err, algo.ErrSchema)
}
