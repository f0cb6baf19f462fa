package algo_test

import (
	"math"
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func square(x0, y0, size float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0}}}
}

func indexed(id string, g orb.Geometry) algo.IndexedZone {
	return algo.IndexedZone{ID: id, Geometry: g, Bound: g.Bound(), Centroid: algo.Centroid(g)}
}

func TestSpatialIndexContains(t *testing.T) {
	s := algo.NewSpatialIndex([]algo.IndexedZone{
		indexed("Z1", square(0, 0, 1000)),
		indexed("Z2", square(1000, 0, 1000)),
	})
	assert.Equal(t, 2, s.Len())

	i, ok := s.Contains(orb.Point{500, 500})
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	i, ok = s.Contains(orb.Point{1500, 500})
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = s.Contains(orb.Point{2500, 500})
	assert.False(t, ok)

	// 公共边上的点取图层中靠前的区域
	i, ok = s.Contains(orb.Point{1000, 500})
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestSpatialIndexOverlapFirstWins(t *testing.T) {
	s := algo.NewSpatialIndex([]algo.IndexedZone{
		indexed("big", square(0, 0, 100)),
		indexed("small", square(10, 10, 10)),
	})
	i, ok := s.Contains(orb.Point{15, 15})
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	s = algo.NewSpatialIndex([]algo.IndexedZone{
		indexed("small", square(10, 10, 10)),
		indexed("big", square(0, 0, 100)),
	})
	i, ok = s.Contains(orb.Point{15, 15})
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestSpatialIndexHole(t *testing.T) {
	donut := orb.Polygon{
		{{0, 0}, {30, 0}, {30, 30}, {0, 30}, {0, 0}},
		{{10, 10}, {10, 20}, {20, 20}, {20, 10}, {10, 10}},
	}
	s := algo.NewSpatialIndex([]algo.IndexedZone{indexed("donut", donut)})
	_, ok := s.Contains(orb.Point{15, 15})
	assert.False(t, ok)
	_, ok = s.Contains(orb.Point{5, 5})
	assert.True(t, ok)
	// 外环边界包含，洞边界不包含
	_, ok = s.Contains(orb.Point{0, 15})
	assert.True(t, ok)
	_, ok = s.Contains(orb.Point{10, 15})
	assert.False(t, ok)
}

func TestNearestCentroid(t *testing.T) {
	s := algo.NewSpatialIndex([]algo.IndexedZone{
		indexed("Z1", square(0, 0, 1000)),
		indexed("Z2", square(1000, 0, 1000)),
	})
	i, ok := s.NearestCentroid(orb.Point{2500, 500})
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	i, ok = s.NearestCentroid(orb.Point{-300, 900})
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok = algo.NewSpatialIndex(nil).NearestCentroid(orb.Point{0, 0})
	assert.False(t, ok)
}

func TestNearestCentroidTieBreaksByID(t *testing.T) {
	// 与两个中心点等距时取编号较小者，与构建顺序无关
	zones := []algo.IndexedZone{
		{ID: "10", Geometry: square(1000, 0, 1000), Bound: square(1000, 0, 1000).Bound(), Centroid: orb.Point{1500, 500}},
		{ID: "9", Geometry: square(0, 0, 1000), Bound: square(0, 0, 1000).Bound(), Centroid: orb.Point{500, 500}},
	}
	s := algo.NewSpatialIndex(zones)
	i, ok := s.NearestCentroid(orb.Point{1000, 2000})
	assert.True(t, ok)
	assert.Equal(t, "9", s.Zone(i).ID)

	s = algo.NewSpatialIndex([]algo.IndexedZone{zones[1], zones[0]})
	i, _ = s.NearestCentroid(orb.Point{1000, 2000})
	assert.Equal(t, "9", s.Zone(i).ID)
}

func TestCentroidAndValidate(t *testing.T) {
	c := algo.Centroid(square(1000, 0, 1000))
	assert.InDelta(t, 1500, c.X(), 1e-9)
	assert.InDelta(t, 500, c.Y(), 1e-9)

	assert.NoError(t, algo.ValidatePolygonal(square(0, 0, 1)))
	assert.NoError(t, algo.ValidatePolygonal(orb.MultiPolygon{square(0, 0, 1), square(5, 5, 1)}))
	for _, g := range []orb.Geometry{
		nil,
		orb.Point{1, 1},
		orb.MultiPolygon{},
		orb.Polygon{{{0, 0}, {1, 1}}},
		orb.Polygon{{{0, 0}, {1, 1}, {2, 2}, {0, 0}}},
	} {
		assert.ErrorIs(t, algo.ValidatePolygonal(g), algo.ErrGeometry, "%v", g)
	}
}

func TestBoundIntersects(t *testing.T) {
	tri := orb.Polygon{{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}
	// 角点在多边形内
	assert.True(t, algo.BoundIntersects(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}, tri))
	// 多边形整体在矩形内
	assert.True(t, algo.BoundIntersects(orb.Bound{Min: orb.Point{-5, -5}, Max: orb.Point{20, 20}}, tri))
	// 仅边相交
	assert.True(t, algo.BoundIntersects(orb.Bound{Min: orb.Point{4, -1}, Max: orb.Point{6, 1}}, tri))
	// 外包框相交但与斜边不相交
	assert.False(t, algo.BoundIntersects(orb.Bound{Min: orb.Point{8, 8}, Max: orb.Point{9, 9}}, tri))
	// 边界接触
	assert.True(t, algo.BoundIntersects(orb.Bound{Min: orb.Point{10, -5}, Max: orb.Point{12, 0}}, tri))
	assert.False(t, algo.BoundIntersects(orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{30, 30}}, tri))
}

func TestLessID(t *testing.T) {
	assert.True(t, algo.LessID("9", "10"))
	assert.False(t, algo.LessID("10", "9"))
	assert.True(t, algo.LessID("a", "b"))
	assert.True(t, algo.LessID("10", "a"))
	assert.False(t, algo.LessID("7", "7"))
}

func TestQuantiles(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 2.5, algo.Quantile(values, 0.5))
	assert.Equal(t, 1.0, algo.Quantile(values, 0))
	assert.Equal(t, 4.0, algo.Quantile(values, 1))
	// 输入不被修改
	assert.Equal(t, []float64{4, 1, 3, 2}, values)
	assert.Equal(t, []float64{1.75, 2.5, 3.25}, algo.Quantiles(values, 0.25, 0.5, 0.75))
	assert.Len(t, algo.Quantiles(nil, 0.5), 1)
	assert.True(t, math.IsNaN(algo.Quantile(nil, 0.5)))
	assert.True(t, math.IsNaN(algo.Quantile(values, math.NaN())))

	// NaN不参与排序
	withNaN := []float64{math.NaN(), 4, 1, math.NaN(), 3, 2}
	assert.Equal(t, 1.0, algo.Quantile(withNaN, 0))
	assert.Equal(t, []float64{1.75, 2.5, 3.25}, algo.Quantiles(withNaN, 0.25, 0.5, 0.75))
	assert.True(t, math.IsNaN(algo.Quantile([]float64{math.NaN()}, 0.9)))
	assert.Equal(t, []float64{4, 1, 3, 2}, algo.DropNaN(withNaN))
	assert.Equal(t, 5400.0, algo.MinutesToSeconds(90))
	assert.Equal(t, 5.0, algo.EuclideanDistance(orb.Point{0, 0}, orb.Point{3, 4}))
}
