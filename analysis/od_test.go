package analysis_test

import (
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func odTrips(t *testing.T) *analysis.TripTable {
	return newTrips(t,
		analysis.Trip{Origin: orb.Point{500, 500}, Destination: orb.Point{1500, 500},
			TotalTravelTime: 600, RouterUnsharedTime: 300, EstimatedUnsharedTime: 400, DelayFactor: 2},
		analysis.Trip{Origin: orb.Point{100, 100}, Destination: orb.Point{1900, 900},
			TotalTravelTime: 300, RouterUnsharedTime: 200, EstimatedUnsharedTime: 200, DelayFactor: 1.5},
		analysis.Trip{Origin: orb.Point{1500, 500}, Destination: orb.Point{500, 500},
			TotalTravelTime: 200, RouterUnsharedTime: 100, EstimatedUnsharedTime: 100, DelayFactor: 2},
		// 路由直达时间为0
		analysis.Trip{Origin: orb.Point{1500, 500}, Destination: orb.Point{500, 500},
			TotalTravelTime: 200, RouterUnsharedTime: 0, EstimatedUnsharedTime: 100},
		// 终点在区域外
		analysis.Trip{Origin: orb.Point{500, 500}, Destination: orb.Point{5000, 500},
			TotalTravelTime: 900, RouterUnsharedTime: 300, EstimatedUnsharedTime: 300, DelayFactor: 3},
	)
}

func TestODDelayFactors(t *testing.T) {
	cells, err := analysis.ODDelayFactors(odTrips(t), adjacentZones(t), analysis.ImputeOptions{})
	require.NoError(t, err)
	require.Len(t, cells, 2)

	c := cells[0]
	assert.Equal(t, analysis.ODPair{Origin: "Z1", Destination: "Z2"}, c.ODPair)
	assert.Equal(t, 2, c.Trips)
	assert.InDelta(t, 1.75, c.MeanDelayFactor, 1e-12)
	assert.InDelta(t, 1.5, c.MeanDelayFactorEstimated, 1e-12)
	assert.InDelta(t, 900.0/500.0, c.RatioDelayFactor, 1e-12)
	assert.InDelta(t, 900.0/600.0, c.RatioDelayFactorEstimated, 1e-12)

	assert.Equal(t, analysis.ODPair{Origin: "Z2", Destination: "Z1"}, cells[1].ODPair)
	assert.Equal(t, 1, cells[1].Trips)
	assert.InDelta(t, 2.0, cells[1].RatioDelayFactor, 1e-12)
}

func TestODDelayFactorsFixByDistance(t *testing.T) {
	cells, err := analysis.ODDelayFactors(odTrips(t), adjacentZones(t), analysis.ImputeOptions{FixByDistance: true})
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, 3, cells[0].Trips)
	assert.InDelta(t, 1800.0/800.0, cells[0].RatioDelayFactor, 1e-12)
}

func TestODDelayFactorsNoTrips(t *testing.T) {
	trips := newTrips(t, analysis.Trip{TotalTravelTime: 10})
	cells, err := analysis.ODDelayFactors(trips, adjacentZones(t), analysis.ImputeOptions{})
	assert.NoError(t, err)
	assert.Empty(t, cells)
}
