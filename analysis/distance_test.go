package analysis_test

import (
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceDistribution(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{Destination: orb.Point{3, 4}},
		analysis.Trip{Destination: orb.Point{6, 8}},
	)
	d := analysis.DistanceDistribution(trips)
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, 7.5, d.Mean)
	assert.Equal(t, 10.0, d.Max)
}

func TestModeShareByDistance(t *testing.T) {
	trips := newTrips(t,
		analysis.Trip{Mode: "drt", Destination: orb.Point{3, 4}, Weight: 1},
		analysis.Trip{Mode: "car", Destination: orb.Point{3, 4}, Weight: 3},
		analysis.Trip{Mode: "drt", Destination: orb.Point{9, 12}, Weight: 1},
		analysis.Trip{Mode: "walk", Destination: orb.Point{300, 400}, Weight: 1},
		analysis.Trip{Mode: "bike", Destination: orb.Point{6, 8}, Weight: 0},
	)
	bins, err := algo.NewBins(0, 20, 10)
	require.NoError(t, err)

	shares := analysis.ModeShareByDistance(trips, bins, false)
	require.Len(t, shares, 2)
	assert.Equal(t, 3.0, shares[0].Total)
	assert.InDeltaMapValues(t, map[string]float64{"drt": 1.0 / 3, "car": 1.0 / 3, "bike": 1.0 / 3, "walk": 0}, shares[0].Shares, 1e-12)
	assert.Equal(t, 1.0, shares[1].Total)
	assert.Equal(t, 1.0, shares[1].Shares["drt"])
	assert.Equal(t, 0.0, shares[1].Shares["car"])
	assert.Equal(t, 10.0, shares[1].Lo)

	weighted := analysis.ModeShareByDistance(trips, bins, true)
	assert.Equal(t, 4.0, weighted[0].Total)
	assert.Equal(t, 0.25, weighted[0].Shares["drt"])
	assert.Equal(t, 0.75, weighted[0].Shares["car"])
	// 0权重的出行不计入
	assert.Equal(t, 0.0, weighted[0].Shares["bike"])
}
