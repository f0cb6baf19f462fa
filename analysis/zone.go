package analysis

import (
	"fmt"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// 区域：行政区、网格或交通小区
type Zone struct {
	ID       string
	Name     string
	Geometry orb.Geometry // orb.Polygon 或 orb.MultiPolygon
}

// ZoneLayer 一组编号唯一的区域及其空间索引，创建后只读
type ZoneLayer struct {
	CRS   string
	zones []Zone
	ids   map[string]int
	index *algo.SpatialIndex
}

// NewZoneLayer 区域顺序即重叠时的优先顺序
func NewZoneLayer(crs string, zones []Zone) (*ZoneLayer, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: zone layer is empty", algo.ErrSchema)
	}
	ids := make(map[string]int, len(zones))
	indexed := make([]algo.IndexedZone, len(zones))
	for i, z := range zones {
		if z.ID == "" {
			return nil, fmt.Errorf("%w: zone %d has no id", algo.ErrSchema, i)
		}
		if _, ok := ids[z.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate zone id %q", algo.ErrSchema, z.ID)
		}
		ids[z.ID] = i
		if err := algo.ValidatePolygonal(z.Geometry); err != nil {
			return nil, fmt.Errorf("zone %q: %w", z.ID, err)
		}
		indexed[i] = algo.IndexedZone{
			ID:       z.ID,
			Geometry: z.Geometry,
			Bound:    z.Geometry.Bound(),
			Centroid: algo.Centroid(z.Geometry),
		}
	}
	out := make([]Zone, len(zones))
	copy(out, zones)
	return &ZoneLayer{
		CRS:   crs,
		zones: out,
		ids:   ids,
		index: algo.NewSpatialIndex(indexed),
	}, nil
}

func (l *ZoneLayer) Len() int {
	return len(l.zones)
}

func (l *ZoneLayer) Zones() []Zone {
	out := make([]Zone, len(l.zones))
	copy(out, l.zones)
	return out
}

func (l *ZoneLayer) IDs() []string {
	return lo.Map(l.zones, func(z Zone, _ int) string { return z.ID })
}

func (l *ZoneLayer) Zone(id string) (Zone, bool) {
	i, ok := l.ids[id]
	if !ok {
		return Zone{}, false
	}
	return l.zones[i], true
}

func (l *ZoneLayer) Centroid(id string) (orb.Point, bool) {
	i, ok := l.ids[id]
	if !ok {
		return orb.Point{}, false
	}
	return l.index.Zone(i).Centroid, true
}

func (l *ZoneLayer) Bound() orb.Bound {
	b := l.zones[0].Geometry.Bound()
	for _, z := range l.zones[1:] {
		b = b.Union(z.Geometry.Bound())
	}
	return b
}

// Locate 返回包含p的区域编号
func (l *ZoneLayer) Locate(p orb.Point) (string, bool) {
	if i, ok := l.index.Contains(p); ok {
		return l.zones[i].ID, true
	}
	return "", false
}

// Nearest 返回中心点最近的区域编号，p坐标非有限值时返回false
func (l *ZoneLayer) Nearest(p orb.Point) (string, bool) {
	if !algo.Finite(p) {
		return "", false
	}
	i, ok := l.index.NearestCentroid(p)
	if !ok {
		return "", false
	}
	return l.zones[i].ID, true
}

// 两个坐标系都声明时必须一致
func checkCRS(a, b string) error {
	if a == "" || b == "" {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return fmt.Errorf("%w: CRS mismatch between points (%s) and zones (%s)", algo.ErrGeometry, a, b)
	}
	return nil
}
