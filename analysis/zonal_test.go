package analysis_test

import (
	"math"
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Z3远离所有出行
func zonalFixture(t *testing.T) (*analysis.TripTable, *analysis.ZoneLayer) {
	layer, err := analysis.NewZoneLayer("", []analysis.Zone{
		{ID: "Z1", Geometry: square(0, 0, 1000)},
		{ID: "Z2", Geometry: square(1000, 0, 1000)},
		{ID: "Z3", Geometry: square(5000, 0, 1000)},
	})
	require.NoError(t, err)
	trips := newTrips(t,
		analysis.Trip{StartTime: 7 * 3600, Origin: orb.Point{100, 100}, WaitTime: 60, TotalTravelTime: 600},
		analysis.Trip{StartTime: 23 * 3600, Origin: orb.Point{900, 900}, WaitTime: 120, TotalTravelTime: 300},
		analysis.Trip{StartTime: 1 * 3600, Origin: orb.Point{1500, 500}, WaitTime: 300, TotalTravelTime: 900},
		analysis.Trip{StartTime: 12 * 3600, Origin: orb.Point{2500, 500}, WaitTime: 999, TotalTravelTime: 100},
	)
	return trips, layer
}

func TestZonalSummary(t *testing.T) {
	trips, layer := zonalFixture(t)
	zones, err := analysis.ZonalSummary(trips, layer, analysis.ZonalOptions{})
	require.NoError(t, err)
	require.Len(t, zones, 3)
	assert.Equal(t, []string{"Z1", "Z2", "Z3"}, []string{zones[0].ZoneID, zones[1].ZoneID, zones[2].ZoneID})
	assert.Equal(t, 2, zones[0].Trips)
	assert.Equal(t, 90.0, zones[0].Means[analysis.MetricWaitTime])
	assert.Equal(t, 300.0, zones[1].Means[analysis.MetricWaitTime])
	assert.Equal(t, 0, zones[2].Trips)
	assert.True(t, math.IsNaN(zones[2].Means[analysis.MetricWaitTime]))
}

func TestZonalSummaryFillAndFix(t *testing.T) {
	trips, layer := zonalFixture(t)
	zones, err := analysis.ZonalSummary(trips, layer, analysis.ZonalOptions{
		Metrics:   []analysis.Metric{analysis.MetricWaitTime, analysis.MetricTotalTravelTime},
		FillEmpty: true,
		Impute:    analysis.ImputeOptions{FixByDistance: true},
	})
	require.NoError(t, err)
	// (2500,500)距Z2中心最近
	assert.Equal(t, 2, zones[1].Trips)
	assert.Equal(t, (300.0+999.0)/2, zones[1].Means[analysis.MetricWaitTime])
	assert.Equal(t, 500.0, zones[1].Means[analysis.MetricTotalTravelTime])
	assert.Equal(t, 0.0, zones[2].Means[analysis.MetricWaitTime])
}

func TestZonalSummaryWindow(t *testing.T) {
	trips, layer := zonalFixture(t)
	w, err := analysis.ParseHourWindow("22-2")
	require.NoError(t, err)
	zones, err := analysis.ZonalSummary(trips, layer, analysis.ZonalOptions{Window: w})
	require.NoError(t, err)
	assert.Equal(t, 1, zones[0].Trips)
	assert.Equal(t, 120.0, zones[0].Means[analysis.MetricWaitTime])
	assert.Equal(t, 1, zones[1].Trips)

	_, err = analysis.ZonalSummary(trips, layer, analysis.ZonalOptions{Metrics: []analysis.Metric{"speed"}})
	assert.ErrorIs(t, err, algo.ErrConfig)
}

func TestHourWindow(t *testing.T) {
	w, err := analysis.ParseHourWindow(" 7 - 9.5 ")
	require.NoError(t, err)
	assert.Equal(t, analysis.HourWindow{Start: 7, End: 9.5}, *w)
	assert.True(t, w.Contains(7*3600))
	assert.False(t, w.Contains(9.5*3600))
	assert.Equal(t, "7-9.5h", w.String())

	night := analysis.HourWindow{Start: 22, End: 2}
	assert.True(t, night.Contains(23*3600))
	assert.True(t, night.Contains(1*3600))
	assert.False(t, night.Contains(12*3600))

	for _, bad := range []string{"7", "a-b", "-1-3", "7-25", "8-8"} {
		_, err := analysis.ParseHourWindow(bad)
		assert.ErrorIs(t, err, algo.ErrConfig, bad)
	}
}

func TestZonalBinned(t *testing.T) {
	trips, layer := zonalFixture(t)
	series, err := analysis.ZonalBinned(trips, layer, analysis.Origin,
		analysis.TimeQuery(0, 24, 720, algo.OpCount, ""), analysis.ImputeOptions{})
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, "Z1", series[0].ZoneID)
	assert.Equal(t, []float64{1, 1}, []float64{series[0].Values[0].Value, series[0].Values[1].Value})
	assert.Equal(t, 1.0, series[1].Values[0].Value)
	assert.Equal(t, 0.0, series[2].Values[0].Value)
}
