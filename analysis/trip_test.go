package analysis_test

import (
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTripTableDefaults(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{Origin: orb.Point{0, 0}, Destination: orb.Point{3, 4}},
		analysis.Trip{Weight: 2.5},
		analysis.Trip{Weight: 0},
	)
	all := trips.Trips()
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "2", all[1].ID)
	assert.Equal(t, 2.5, all[1].Weight)
	// 0权重保持不变
	assert.Equal(t, 0.0, all[2].Weight)
	assert.Equal(t, 5.0, all[0].EuclideanDistance())

	// 修改副本不影响表
	all[0].WaitTime = 99
	assert.Equal(t, 0.0, trips.Trips()[0].WaitTime)

	_, err := analysis.NewTripTable("", []analysis.Trip{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, algo.ErrSchema)
}

func TestTripTableFilterAndValues(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{RouterUnsharedTime: 0, TotalTravelTime: 10},
		analysis.Trip{RouterUnsharedTime: 5, TotalTravelTime: 20, EstimatedUnsharedTime: 4},
	)
	kept := trips.Filter(analysis.NonZero(analysis.MetricRouterUnsharedTime))
	assert.Equal(t, 1, kept.Len())
	assert.Equal(t, 2, trips.Len())
	assert.Equal(t, []float64{20}, kept.Values(analysis.MetricTotalTravelTime))
	assert.Equal(t, []float64{5}, kept.Values(analysis.MetricDelayFactorEstimated))

	points := trips.Points(analysis.Destination)
	assert.Equal(t, "1", points[0].ID)
	assert.Equal(t, "destination", analysis.Destination.String())
	assert.Equal(t, "origin", analysis.Origin.String())
}
