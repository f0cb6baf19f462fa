package analysis_test

import (
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, size float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0}}}
}

// 两个相邻的1000米正方形
func adjacentZones(t *testing.T) *analysis.ZoneLayer {
	layer, err := analysis.NewZoneLayer("EPSG:2056", []analysis.Zone{
		{ID: "Z1", Geometry: square(0, 0, 1000)},
		{ID: "Z2", Geometry: square(1000, 0, 1000)},
	})
	require.NoError(t, err)
	return layer
}

func newTrips(t *testing.T, trips ...analysis.Trip) *analysis.TripTable {
	table, err := analysis.NewTripTable("EPSG:2056", trips)
	require.NoError(t, err)
	return table
}
