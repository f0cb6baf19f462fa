package analysis

import (
	"fmt"
	"math"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
)

// SquareGrid 覆盖边界图层外包框的正方形网格，只保留与边界相交的格子
// 编号为"<列>_<行>"，列从左、行从上开始计数
func SquareGrid(boundary *ZoneLayer, size float64) (*ZoneLayer, error) {
	if boundary == nil || boundary.Len() == 0 {
		return nil, fmt.Errorf("%w: boundary layer is empty", algo.ErrSchema)
	}
	if math.IsNaN(size) || size <= 0 {
		return nil, fmt.Errorf("%w: grid size must be positive, got %v", algo.ErrConfig, size)
	}
	b := boundary.Bound()
	cols := int(math.Ceil((b.Max.X() - b.Min.X()) / size))
	rows := int(math.Ceil((b.Max.Y() - b.Min.Y()) / size))
	cols, rows = max(cols, 1), max(rows, 1)

	zones := make([]Zone, 0, cols*rows)
	for i := 0; i < cols; i++ {
		left := b.Min.X() + float64(i)*size
		for j := 0; j < rows; j++ {
			top := b.Max.Y() - float64(j)*size
			cell := orb.Bound{
				Min: orb.Point{left, top - size},
				Max: orb.Point{left + size, top},
			}
			if !touches(boundary, cell) {
				continue
			}
			id := fmt.Sprintf("%d_%d", i, j)
			zones = append(zones, Zone{ID: id, Name: id, Geometry: orb.Polygon{cell.ToRing()}})
		}
	}
	log.Infof("grid of %gm: %d of %d cells touch the boundary", size, len(zones), cols*rows)
	return NewZoneLayer(boundary.CRS, zones)
}

func touches(layer *ZoneLayer, cell orb.Bound) bool {
	for _, z := range layer.zones {
		if algo.BoundIntersects(cell, z.Geometry) {
			return true
		}
	}
	return false
}
