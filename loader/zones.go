package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type ZoneOptions struct {
	// 编号字段，为空时使用记录序号
	IDField   string
	NameField string
	// 覆盖文件自带的坐标系
	CRS string
}

// ReadZonesFile 按扩展名读取Shapefile或GeoJSON区域图层
func ReadZonesFile(path string, opts ZoneOptions) (*analysis.ZoneLayer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefile(path, opts)
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open zones: %w", err)
		}
		defer f.Close()
		return ReadGeoJSON(f, opts)
	}
	return nil, fmt.Errorf("%w: unsupported zone file %s", algo.ErrConfig, path)
}

// ReadShapefile 读取面状Shapefile，坐标系取自同名.prj文件
func ReadShapefile(path string, opts ZoneOptions) (*analysis.ZoneLayer, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	idField, nameField := -1, -1
	for i, f := range r.Fields() {
		switch f.String() {
		case opts.IDField:
			idField = i
		case opts.NameField:
			nameField = i
		}
	}
	if opts.IDField != "" && idField == -1 {
		return nil, fmt.Errorf("%w: %s has no field %q", algo.ErrSchema, path, opts.IDField)
	}

	var zones []analysis.Zone
	for r.Next() {
		n, shape := r.Shape()
		g, err := shapeGeometry(shape)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", path, n, err)
		}
		z := analysis.Zone{ID: strconv.Itoa(n), Geometry: g}
		if idField >= 0 {
			z.ID = attribute(r, n, idField)
		}
		if nameField >= 0 {
			z.Name = attribute(r, n, nameField)
		}
		zones = append(zones, z)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	crs := opts.CRS
	if crs == "" {
		crs = readPrj(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	}
	log.Infof("read %d zones from %s (crs=%q)", len(zones), path, crs)
	return analysis.NewZoneLayer(crs, zones)
}

func attribute(r *shp.Reader, n, field int) string {
	return strings.TrimSpace(strings.Trim(r.ReadAttribute(n, field), "\x00"))
}

func shapeGeometry(s shp.Shape) (orb.Geometry, error) {
	var parts []int32
	var points []shp.Point
	switch s := s.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil, fmt.Errorf("%w: shape %T is not a polygon", algo.ErrGeometry, s)
	}
	return polygonFromParts(parts, points), nil
}

// Shapefile中顺时针环为外环，逆时针环为前一个外环的洞
func polygonFromParts(parts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for i, lo := range parts {
		hi := int32(len(points))
		if i+1 < len(parts) {
			hi = parts[i+1]
		}
		ring := make(orb.Ring, 0, hi-lo)
		for _, p := range points[lo:hi] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// 取WKT中第一个名称，例如PROJCS["CH1903+_LV95",...]
func readPrj(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	wkt := string(data)
	start := strings.Index(wkt, "[\"")
	if start == -1 {
		return ""
	}
	end := strings.Index(wkt[start+2:], "\"")
	if end == -1 {
		return ""
	}
	return wkt[start+2 : start+2+end]
}

// ReadGeoJSON 读取FeatureCollection，编号与名称取自属性
func ReadGeoJSON(r io.Reader, opts ZoneOptions) (*analysis.ZoneLayer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse geojson: %v", algo.ErrSchema, err)
	}
	zones := make([]analysis.Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		z := analysis.Zone{Geometry: f.Geometry}
		switch {
		case opts.IDField != "":
			v, ok := f.Properties[opts.IDField]
			if !ok {
				return nil, fmt.Errorf("%w: feature %d has no property %q", algo.ErrSchema, i, opts.IDField)
			}
			z.ID = fmt.Sprint(v)
		case f.ID != nil:
			z.ID = fmt.Sprint(f.ID)
		default:
			z.ID = strconv.Itoa(i)
		}
		if opts.NameField != "" {
			z.Name = f.Properties.MustString(opts.NameField, "")
		}
		zones = append(zones, z)
	}
	log.Infof("read %d zones from geojson", len(zones))
	return analysis.NewZoneLayer(opts.CRS, zones)
}
