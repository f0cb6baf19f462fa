package analysis_test

import (
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquareGridTriangle(t *testing.T) {
	boundary, err := analysis.NewZoneLayer("EPSG:2056", []analysis.Zone{
		{ID: "tri", Geometry: orb.Polygon{{{0, 0}, {1000, 0}, {0, 1000}, {0, 0}}}},
	})
	require.NoError(t, err)
	grid, err := analysis.SquareGrid(boundary, 400)
	require.NoError(t, err)

	// 3x3个格子，右上角的格子不与三角形相交
	assert.Equal(t, 8, grid.Len())
	assert.Equal(t, "EPSG:2056", grid.CRS)
	_, ok := grid.Zone("2_0")
	assert.False(t, ok)

	// 只在斜边上接触的格子保留
	_, ok = grid.Zone("1_0")
	assert.True(t, ok)

	z, ok := grid.Zone("0_0")
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 600}, Max: orb.Point{400, 1000}}, z.Geometry.Bound())
	z, ok = grid.Zone("2_2")
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{800, -200}, Max: orb.Point{1200, 200}}, z.Geometry.Bound())
}

func TestSquareGridImpute(t *testing.T) {
	grid, err := analysis.SquareGrid(adjacentZones(t), 500)
	require.NoError(t, err)
	assert.Equal(t, 8, grid.Len())
	as, err := analysis.Impute([]analysis.PointRecord{{ID: "p", Point: orb.Point{1750, 250}}}, grid, analysis.ImputeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "3_1", as[0].ZoneID)
}

func TestSquareGridErrors(t *testing.T) {
	layer := adjacentZones(t)
	for _, size := range []float64{0, -1} {
		_, err := analysis.SquareGrid(layer, size)
		assert.ErrorIs(t, err, algo.ErrConfig)
	}
	_, err := analysis.SquareGrid(nil, 100)
	assert.ErrorIs(t, err, algo.ErrSchema)
}
