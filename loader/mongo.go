package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 区域文档中GeoJSON几何字段名
const GEOMETRY_FIELD = "geometry"

// Sources 按Path读取数据，MongoDB连接在首次需要时建立
type Sources struct {
	MongoURI string
	// 集合下载的本地缓存目录，为空时不缓存
	CacheDir string

	mu     sync.Mutex
	client *mongo.Client
}

func (s *Sources) lazyClient(ctx context.Context) (*mongo.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if s.MongoURI == "" {
		return nil, fmt.Errorf("%w: mongo uri is required for collection sources", algo.ErrConfig)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *Sources) Client(ctx context.Context) (*mongo.Client, error) {
	return s.lazyClient(ctx)
}

func (s *Sources) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		if err := s.client.Disconnect(ctx); err != nil {
			log.Warnf("failed to disconnect mongo: %v", err)
		}
		s.client = nil
	}
}

// Trips 从文件或集合读取出行表
func (s *Sources) Trips(ctx context.Context, p *Path, crs string, opts TableOptions) (*analysis.TripTable, error) {
	var trips []analysis.Trip
	var err error
	if p.IsFile() {
		trips, err = ReadTripsFile(p.File, opts)
	} else {
		var docs []bson.Raw
		if docs, err = s.download(ctx, p); err == nil {
			trips, err = decodeTrips(docs, opts.Columns.withDefaults())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load trips from %s: %w", p, err)
	}
	return analysis.NewTripTable(crs, trips)
}

// Zones 从文件或集合读取区域图层
func (s *Sources) Zones(ctx context.Context, p *Path, opts ZoneOptions) (*analysis.ZoneLayer, error) {
	if p.IsFile() {
		return ReadZonesFile(p.File, opts)
	}
	docs, err := s.download(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load zones from %s: %w", p, err)
	}
	zones, err := decodeZones(docs, opts)
	if err != nil {
		return nil, fmt.Errorf("load zones from %s: %w", p, err)
	}
	return analysis.NewZoneLayer(opts.CRS, zones)
}

func (s *Sources) download(ctx context.Context, p *Path) ([]bson.Raw, error) {
	return loadWithCache(s.CacheDir, p, func() ([]bson.Raw, error) {
		client, err := s.lazyClient(ctx)
		if err != nil {
			return nil, err
		}
		cur, err := client.Database(p.DB).Collection(p.Coll).Find(ctx, bson.D{})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		var docs []bson.Raw
		for cur.Next(ctx) {
			doc := make(bson.Raw, len(cur.Current))
			copy(doc, cur.Current)
			docs = append(docs, doc)
		}
		if err := cur.Err(); err != nil {
			return nil, err
		}
		log.Infof("downloaded %d documents from %s", len(docs), p)
		return docs, nil
	})
}

// loadWithCache 缓存存在时直接读取，否则下载并写入缓存，缓存文件为连续的BSON文档
func loadWithCache(cacheDir string, p *Path, download func() ([]bson.Raw, error)) ([]bson.Raw, error) {
	if cacheDir == "" {
		return download()
	}
	file := filepath.Join(cacheDir, p.GetCachePath())
	if data, err := os.ReadFile(file); err == nil {
		docs, err := splitDocuments(data)
		if err == nil {
			log.Infof("loaded %d documents from cache %s", len(docs), file)
			return docs, nil
		}
		log.Warnf("ignore broken cache %s: %v", file, err)
	}
	docs, err := download()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, d := range docs {
		buf.Write(d)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		log.Warnf("failed to create cache dir %s: %v", cacheDir, err)
	} else if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
		log.Warnf("failed to write cache %s: %v", file, err)
	}
	return docs, nil
}

// splitDocuments 逐个读取首尾相接的BSON文档
func splitDocuments(data []byte) (docs []bson.Raw, err error) {
	// 长度字段小于4时驱动会越界
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("invalid document: %v", r)
		}
	}()
	r := bytes.NewReader(data)
	for {
		doc, err := bson.NewFromIOReader(r)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// 文档字段转为浮点数，缺失时为NaN
func rawFloat(doc bson.Raw, key string) (float64, error) {
	if key == "" {
		return math.NaN(), nil
	}
	v, err := doc.LookupErr(key)
	if err != nil {
		return math.NaN(), nil
	}
	switch v.Type {
	case bson.TypeDouble:
		return v.Double(), nil
	case bson.TypeInt32:
		return float64(v.Int32()), nil
	case bson.TypeInt64:
		return float64(v.Int64()), nil
	case bson.TypeString:
		f, err := strconv.ParseFloat(v.StringValue(), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %q: %q is not a number", algo.ErrSchema, key, v.StringValue())
		}
		return f, nil
	case bson.TypeNull:
		return math.NaN(), nil
	}
	return 0, fmt.Errorf("%w: field %q has type %s", algo.ErrSchema, key, v.Type)
}

// 文档字段转为字符串，数值按十进制输出
func rawString(doc bson.Raw, key string) string {
	if key == "" {
		return ""
	}
	v, err := doc.LookupErr(key)
	if err != nil {
		return ""
	}
	switch v.Type {
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeInt32:
		return strconv.Itoa(int(v.Int32()))
	case bson.TypeInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case bson.TypeDouble:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	}
	return v.String()
}

func decodeTrips(docs []bson.Raw, c TripColumns) ([]analysis.Trip, error) {
	trips := make([]analysis.Trip, len(docs))
	for i, doc := range docs {
		fields := []struct {
			key      string
			dst      *float64
			required bool
		}{
			{c.StartTime, &trips[i].StartTime, true},
			{c.ArrivalTime, &trips[i].ArrivalTime, false},
			{c.TotalTravelTime, &trips[i].TotalTravelTime, false},
			{c.RouterUnsharedTime, &trips[i].RouterUnsharedTime, false},
			{c.EstimatedUnsharedTime, &trips[i].EstimatedUnsharedTime, false},
			{c.DelayFactor, &trips[i].DelayFactor, false},
			{c.WaitTime, &trips[i].WaitTime, false},
		}
		for _, f := range fields {
			v, err := rawFloat(doc, f.key)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			if f.required && math.IsNaN(v) {
				return nil, fmt.Errorf("%w: document %d has no %q", algo.ErrSchema, i, f.key)
			}
			*f.dst = v
		}
		var xy [4]float64
		for j, key := range []string{c.StartX, c.StartY, c.EndX, c.EndY} {
			v, err := rawFloat(doc, key)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			if math.IsNaN(v) {
				return nil, fmt.Errorf("%w: document %d has no %q", algo.ErrSchema, i, key)
			}
			xy[j] = v
		}
		trips[i].Origin = orb.Point{xy[0], xy[1]}
		trips[i].Destination = orb.Point{xy[2], xy[3]}
		trips[i].ID = rawString(doc, c.ID)
		trips[i].PersonID = rawString(doc, c.PersonID)
		trips[i].Mode = rawString(doc, c.Mode)
		if idx, err := rawFloat(doc, c.TripIndex); err == nil && !math.IsNaN(idx) {
			trips[i].TripIndex = int(idx)
		}
		trips[i].Weight = 1
		if w, err := rawFloat(doc, c.Weight); err == nil && !math.IsNaN(w) {
			trips[i].Weight = w
		}
	}
	return trips, nil
}

// GeoJSON几何在BSON中的形式
type bsonGeometry struct {
	Type        string        `bson:"type"`
	Coordinates bson.RawValue `bson:"coordinates"`
}

func decodeZones(docs []bson.Raw, opts ZoneOptions) ([]analysis.Zone, error) {
	zones := make([]analysis.Zone, 0, len(docs))
	for i, doc := range docs {
		raw, err := doc.LookupErr(GEOMETRY_FIELD)
		if err != nil {
			return nil, fmt.Errorf("%w: document %d has no %q", algo.ErrSchema, i, GEOMETRY_FIELD)
		}
		var bg bsonGeometry
		if err := raw.Unmarshal(&bg); err != nil {
			return nil, fmt.Errorf("%w: document %d geometry: %v", algo.ErrSchema, i, err)
		}
		g, err := bg.geometry()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		z := analysis.Zone{ID: strconv.Itoa(i), Geometry: g}
		if opts.IDField != "" {
			if z.ID = rawString(doc, opts.IDField); z.ID == "" {
				return nil, fmt.Errorf("%w: document %d has no %q", algo.ErrSchema, i, opts.IDField)
			}
		}
		z.Name = rawString(doc, opts.NameField)
		zones = append(zones, z)
	}
	return zones, nil
}

func (g bsonGeometry) geometry() (orb.Geometry, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := g.Coordinates.Unmarshal(&coords); err != nil {
			return nil, fmt.Errorf("%w: polygon coordinates: %v", algo.ErrGeometry, err)
		}
		return toPolygon(coords), nil
	case "MultiPolygon":
		var coords [][][][]float64
		if err := g.Coordinates.Unmarshal(&coords); err != nil {
			return nil, fmt.Errorf("%w: multipolygon coordinates: %v", algo.ErrGeometry, err)
		}
		mp := make(orb.MultiPolygon, len(coords))
		for i, c := range coords {
			mp[i] = toPolygon(c)
		}
		return mp, nil
	}
	return nil, fmt.Errorf("%w: unsupported geometry type %q", algo.ErrGeometry, g.Type)
}

func toPolygon(coords [][][]float64) orb.Polygon {
	poly := make(orb.Polygon, len(coords))
	for i, ring := range coords {
		poly[i] = make(orb.Ring, 0, len(ring))
		for _, c := range ring {
			if len(c) >= 2 {
				poly[i] = append(poly[i], orb.Point{c[0], c[1]})
			}
		}
	}
	return poly
}
