package algo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
	"github.com/tidwall/rtree"
)

// 建立索引的区域
type IndexedZone struct {
	ID       string
	Geometry orb.Geometry // orb.Polygon 或 orb.MultiPolygon
	Bound    orb.Bound
	Centroid orb.Point
}

// 区域中心点，放入quadtree
type centroidItem struct {
	index int
	p     orb.Point
}

func (c centroidItem) Point() orb.Point {
	return c.p
}

// SpatialIndex 区域外包框的R树 + 区域中心点的四叉树
// 构建后只读，可并发查询
type SpatialIndex struct {
	zones     []IndexedZone
	tree      rtree.RTreeG[int]
	centroids *quadtree.Quadtree
}

func NewSpatialIndex(zones []IndexedZone) *SpatialIndex {
	s := &SpatialIndex{zones: zones}
	if len(zones) == 0 {
		return s
	}
	bound := orb.Bound{Min: zones[0].Centroid, Max: zones[0].Centroid}
	for i, z := range zones {
		s.tree.Insert(
			[2]float64{z.Bound.Min.X(), z.Bound.Min.Y()},
			[2]float64{z.Bound.Max.X(), z.Bound.Max.Y()},
			i,
		)
		bound = bound.Extend(z.Centroid)
	}
	s.centroids = quadtree.New(bound.Pad(1))
	for i, z := range zones {
		if err := s.centroids.Add(centroidItem{index: i, p: z.Centroid}); err != nil {
			log.Panicf("failed to index centroid of zone %s: %v", z.ID, err)
		}
	}
	return s
}

func (s *SpatialIndex) Len() int {
	return len(s.zones)
}

func (s *SpatialIndex) Zone(i int) IndexedZone {
	return s.zones[i]
}

// Contains 返回包含点p的区域下标；多个区域包含时取构建顺序中最靠前的
func (s *SpatialIndex) Contains(p orb.Point) (int, bool) {
	best := -1
	xy := [2]float64{p.X(), p.Y()}
	s.tree.Search(xy, xy, func(_, _ [2]float64, i int) bool {
		if best != -1 && i > best {
			return true
		}
		if GeometryContains(s.zones[i].Geometry, p) {
			best = i
		}
		return true
	})
	return best, best != -1
}

// NearestCentroid 返回中心点距p最近的区域下标，等距时取编号最小者
func (s *SpatialIndex) NearestCentroid(p orb.Point) (int, bool) {
	if s.centroids == nil {
		return 0, false
	}
	nearest := s.centroids.Find(p)
	if nearest == nil {
		return 0, false
	}
	d := planar.Distance(p, nearest.Point())
	// 取出所有可能等距的中心点再确定性地选择
	pad := d + math.Max(d*1e-9, 1e-9)
	candidates := s.centroids.InBound(nil, orb.Bound{Min: p, Max: p}.Pad(pad))
	best := nearest.(centroidItem).index
	bestD := d
	for _, c := range candidates {
		item := c.(centroidItem)
		cd := planar.Distance(p, item.p)
		if cd < bestD || (cd == bestD && LessID(s.zones[item.index].ID, s.zones[best].ID)) {
			best, bestD = item.index, cd
		}
	}
	return best, true
}

// GeometryContains 外环边界上的点视为包含，洞边界上的点视为不包含
func GeometryContains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	case orb.Ring:
		return planar.RingContains(g, p)
	}
	return false
}

// Centroid 面积加权中心点
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

// ValidatePolygonal 检查几何体为非空多边形
func ValidatePolygonal(g orb.Geometry) error {
	var polygons []orb.Polygon
	switch g := g.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{g}
	case orb.MultiPolygon:
		polygons = g
	case nil:
		return fmt.Errorf("%w: empty geometry", ErrGeometry)
	default:
		return fmt.Errorf("%w: unsupported geometry type %s", ErrGeometry, g.GeoJSONType())
	}
	if len(polygons) == 0 {
		return fmt.Errorf("%w: empty multipolygon", ErrGeometry)
	}
	for _, poly := range polygons {
		if len(poly) == 0 || len(poly[0]) < 3 {
			return fmt.Errorf("%w: polygon outer ring has fewer than 3 points", ErrGeometry)
		}
		for _, ring := range poly {
			for _, pt := range ring {
				if math.IsNaN(pt.X()) || math.IsNaN(pt.Y()) || math.IsInf(pt.X(), 0) || math.IsInf(pt.Y(), 0) {
					return fmt.Errorf("%w: non-finite coordinate", ErrGeometry)
				}
			}
		}
		if planar.Area(poly) == 0 {
			return fmt.Errorf("%w: zero-area polygon", ErrGeometry)
		}
	}
	return nil
}

// BoundIntersects 判断矩形与多边形是否有公共点（含边界接触）
func BoundIntersects(b orb.Bound, g orb.Geometry) bool {
	if !b.Intersects(g.Bound()) {
		return false
	}
	// 矩形角点落在多边形内
	for _, c := range []orb.Point{b.Min, b.Max, b.LeftTop(), b.RightBottom()} {
		if GeometryContains(g, c) {
			return true
		}
	}
	var rings []orb.Ring
	switch g := g.(type) {
	case orb.Polygon:
		rings = g
	case orb.MultiPolygon:
		for _, poly := range g {
			rings = append(rings, poly...)
		}
	default:
		return false
	}
	edges := b.ToRing()
	for _, r := range rings {
		for i, p := range r {
			// 多边形顶点落在矩形内
			if b.Contains(p) {
				return true
			}
			if i == 0 {
				continue
			}
			for j := 1; j < len(edges); j++ {
				if segmentsIntersect(r[i-1], p, edges[j-1], edges[j]) {
					return true
				}
			}
		}
	}
	return false
}

func cross(o, a, b orb.Point) float64 {
	return (a.X()-o.X())*(b.Y()-o.Y()) - (a.Y()-o.Y())*(b.X()-o.X())
}

func onSegment(p, a, b orb.Point) bool {
	return math.Min(a.X(), b.X()) <= p.X() && p.X() <= math.Max(a.X(), b.X()) &&
		math.Min(a.Y(), b.Y()) <= p.Y() && p.Y() <= math.Max(a.Y(), b.Y())
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(p1, q1, q2):
		return true
	case d2 == 0 && onSegment(p2, q1, q2):
		return true
	case d3 == 0 && onSegment(q1, p1, p2):
		return true
	case d4 == 0 && onSegment(q2, p1, p2):
		return true
	}
	return false
}
