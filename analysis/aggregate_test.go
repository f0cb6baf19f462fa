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

func TestAggregateTripsTimeCount(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{StartTime: 22000},
		analysis.Trip{StartTime: 25200},
		analysis.Trip{StartTime: 30000},
	)
	values, err := analysis.AggregateTrips(trips, analysis.TimeQuery(6, 8, 60, algo.OpCount, ""))
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 21600.0, values[0].Lo)
	assert.Equal(t, 1, values[0].Count)
	assert.Equal(t, 1.0, values[0].Value)
	assert.Equal(t, 25200.0, values[1].Lo)
	assert.Equal(t, 1.0, values[1].Value)
}

func TestAggregateTripsDistanceMean(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{Destination: orb.Point{300, 400}, WaitTime: 60},
		analysis.Trip{Destination: orb.Point{900, 1200}, WaitTime: 120},
		analysis.Trip{Destination: orb.Point{600, 800}, WaitTime: 180},
	)
	values, err := analysis.AggregateTrips(trips,
		analysis.DistanceQuery(0, 2000, 1000, algo.OpMean, analysis.MetricWaitTime))
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 60.0, values[0].Value)
	// 1000米落在第二个分箱
	assert.Equal(t, 150.0, values[1].Value)
	assert.Equal(t, 2, values[1].Count)
}

func TestAggregateTripsSumRatio(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{StartTime: 7 * 3600, TotalTravelTime: 300, RouterUnsharedTime: 100},
		analysis.Trip{StartTime: 7 * 3600, TotalTravelTime: 100, RouterUnsharedTime: 50},
	)
	q := analysis.TimeQuery(0, 24, 1440, algo.OpMean, analysis.MetricWaitTime).
		ComputedDelayFactor(analysis.MetricRouterUnsharedTime)
	assert.Equal(t, algo.OpSumRatio, q.Operator)
	assert.Equal(t, analysis.MetricTotalTravelTime, q.Metric)
	values, err := analysis.AggregateTrips(trips, q)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.InDelta(t, 400.0/150.0, values[0].Value, 1e-12)
}

func TestAggregateTripsEmptyBinIsNaN(t *testing.T) {
	trips := newTrips(t, analysis.Trip{StartTime: 0, WaitTime: 10})
	values, err := analysis.AggregateTrips(trips, analysis.TimeQuery(0, 2, 60, algo.OpMedian, analysis.MetricWaitTime))
	require.NoError(t, err)
	assert.Equal(t, 10.0, values[0].Value)
	assert.True(t, math.IsNaN(values[1].Value))
	assert.Equal(t, 0, values[1].Count)
}

func TestAggregateTripsValidation(t *testing.T) {
	trips := newTrips(t, analysis.Trip{})
	for name, q := range map[string]analysis.BinnedQuery{
		"axis":        {Axis: "space", Start: 0, End: 1, Width: 1, Operator: algo.OpMean, Metric: analysis.MetricWaitTime},
		"operator":    {Axis: analysis.AxisTime, Start: 0, End: 1, Width: 1, Operator: "max", Metric: analysis.MetricWaitTime},
		"metric":      {Axis: analysis.AxisTime, Start: 0, End: 1, Width: 1, Operator: algo.OpMean, Metric: "speed"},
		"denominator": {Axis: analysis.AxisTime, Start: 0, End: 1, Width: 1, Operator: algo.OpSumRatio},
		"width":       {Axis: analysis.AxisTime, Start: 0, End: 1, Width: 0, Operator: algo.OpCount},
	} {
		_, err := analysis.AggregateTrips(trips, q)
		assert.ErrorIs(t, err, algo.ErrConfig, name)
	}
}

func TestParseAxisAndMetric(t *testing.T) {
	a, err := analysis.ParseAxis(" Distance ")
	require.NoError(t, err)
	assert.Equal(t, analysis.AxisDistance, a)
	_, err = analysis.ParseAxis("space")
	assert.ErrorIs(t, err, algo.ErrConfig)

	m, err := analysis.ParseMetric("WAIT_TIME")
	require.NoError(t, err)
	assert.Equal(t, analysis.MetricWaitTime, m)
	assert.True(t, m.IsTime())
	assert.False(t, analysis.MetricDelayFactor.IsTime())
	_, err = analysis.ParseMetric("speed")
	assert.ErrorIs(t, err, algo.ErrConfig)
}
