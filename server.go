package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/eqasim-org/drt-analysis/config"
	"github.com/eqasim-org/drt-analysis/loader"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

const (
	ANALYSIS_SERVICE_NAME = "drt.analysis.v1.AnalysisService"

	BinProcedure    = "/" + ANALYSIS_SERVICE_NAME + "/Bin"
	ImputeProcedure = "/" + ANALYSIS_SERVICE_NAME + "/Impute"
	ZonalProcedure  = "/" + ANALYSIS_SERVICE_NAME + "/Zonal"
	ReloadProcedure = "/" + ANALYSIS_SERVICE_NAME + "/Reload"
)

type AnalysisServer struct {
	cfg       *config.AppConfig
	sources   *loader.Sources
	tripsPath *loader.Path
	zonesPath *loader.Path
	metrics   *Collector

	// 保护可热更新的出行表与区域图层
	mu    *xsync.RBMutex
	trips *analysis.TripTable
	layer *analysis.ZoneLayer

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewAnalysisServer(
	ctx context.Context,
	cfg *config.AppConfig,
	sources *loader.Sources,
	tripsPath, zonesPath *loader.Path,
	metrics *Collector,
) (*AnalysisServer, error) {
	if tripsPath == nil {
		return nil, fmt.Errorf("%w: trips source is required", algo.ErrConfig)
	}
	if metrics == nil {
		metrics = NewCollector()
	}
	s := &AnalysisServer{
		cfg:       cfg,
		sources:   sources,
		tripsPath: tripsPath,
		zonesPath: zonesPath,
		metrics:   metrics,
		mu:        xsync.NewRBMutex(),
		ok:        true,
		cond:      sync.NewCond(&sync.Mutex{}),
	}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewAnalysisServerFromData 使用已加载的数据，不支持Reload；metrics为nil时使用独立的Collector
func NewAnalysisServerFromData(cfg *config.AppConfig, trips *analysis.TripTable, layer *analysis.ZoneLayer, metrics *Collector) *AnalysisServer {
	if metrics == nil {
		metrics = NewCollector()
	}
	return &AnalysisServer{
		cfg:     cfg,
		metrics: metrics,
		mu:      xsync.NewRBMutex(),
		trips:   trips,
		layer:   layer,
		ok:      true,
		cond:    sync.NewCond(&sync.Mutex{}),
	}
}

// Register 在mux上注册所有过程
func (s *AnalysisServer) Register(mux *http.ServeMux) {
	opts := connect.WithInterceptors(s.metrics.Interceptor())
	mux.Handle(BinProcedure, connect.NewUnaryHandler(BinProcedure, s.Bin, opts))
	mux.Handle(ImputeProcedure, connect.NewUnaryHandler(ImputeProcedure, s.Impute, opts))
	mux.Handle(ZonalProcedure, connect.NewUnaryHandler(ZonalProcedure, s.Zonal, opts))
	mux.Handle(ReloadProcedure, connect.NewUnaryHandler(ReloadProcedure, s.Reload, opts))
}

func (s *AnalysisServer) reload(ctx context.Context) error {
	if s.sources == nil {
		return connect.NewError(connect.CodeFailedPrecondition, errors.New("server has no data sources"))
	}
	trips, err := s.sources.Trips(ctx, s.tripsPath, s.cfg.CRS, s.cfg.TableOptions())
	if err != nil {
		return err
	}
	var layer *analysis.ZoneLayer
	if s.zonesPath != nil {
		if layer, err = s.sources.Zones(ctx, s.zonesPath, s.cfg.ZoneOptions()); err != nil {
			return err
		}
		s.metrics.Zones.Set(float64(layer.Len()))
	}
	s.metrics.Trips.Set(float64(trips.Len()))
	s.metrics.ZoneReloads.Inc()

	s.mu.Lock()
	s.trips, s.layer = trips, layer
	s.mu.Unlock()
	log.Infof("loaded %d trips from %s", trips.Len(), s.tripsPath)
	return nil
}

// Refresh 暂停服务并重新加载数据
func (s *AnalysisServer) Refresh(ctx context.Context) error {
	s.Suspend()
	defer s.Resume()
	return s.reload(ctx)
}

func (s *AnalysisServer) snapshot() (*analysis.TripTable, *analysis.ZoneLayer) {
	token := s.mu.RLock()
	defer s.mu.RUnlock(token)
	return s.trips, s.layer
}

// 暂停-恢复机制
func (s *AnalysisServer) wait() {
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()
}

// Bin 请求字段与配置文件中的查询相同，或以query给出预设名称
func (s *AnalysisServer) Bin(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.wait()
	var in struct {
		Query              string `yaml:"query"`
		config.QueryConfig `yaml:",inline"`
	}
	if err := decodeStruct(req.Msg, &in); err != nil {
		return nil, err
	}
	qc := in.QueryConfig
	if in.Query != "" {
		preset, ok := s.cfg.Query(in.Query)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no query preset %q", in.Query))
		}
		qc = preset
	}
	if qc.Name == "" {
		qc.Name = "request"
	}
	if err := config.ValidateQuery(qc); err != nil {
		return nil, toConnectError(err)
	}
	q, err := qc.BinnedQuery()
	if err != nil {
		return nil, toConnectError(err)
	}
	trips, _ := s.snapshot()
	if trips == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no trips loaded"))
	}
	if qc.FilterRouterZeros {
		trips = trips.Filter(analysis.NonZero(analysis.MetricRouterUnsharedTime))
	}
	log.Debugf("bin %d trips by %s", trips.Len(), q.Axis)
	values, err := analysis.AggregateTrips(trips, q)
	if err != nil {
		return nil, toConnectError(err)
	}
	return newResponse(map[string]any{
		"query": qc.Name,
		"axis":  string(q.Axis),
		"bins":  binsValue(values),
	})
}

// Impute 对请求中的点分配区域；未给出点时对已加载出行的端点分配
func (s *AnalysisServer) Impute(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.wait()
	var in struct {
		Points []struct {
			ID string  `yaml:"id"`
			X  float64 `yaml:"x"`
			Y  float64 `yaml:"y"`
		} `yaml:"points"`
		Endpoint      string `yaml:"endpoint"`
		FixByDistance *bool  `yaml:"fix_by_distance"`
	}
	if err := decodeStruct(req.Msg, &in); err != nil {
		return nil, err
	}
	trips, layer := s.snapshot()
	if layer == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no zone layer loaded"))
	}
	opts := s.cfg.ImputeOptions()
	if in.FixByDistance != nil {
		opts.FixByDistance = *in.FixByDistance
	}
	var points []analysis.PointRecord
	if len(in.Points) > 0 {
		points = make([]analysis.PointRecord, len(in.Points))
		for i, p := range in.Points {
			points[i] = analysis.PointRecord{ID: p.ID, Point: orb.Point{p.X, p.Y}}
		}
	} else {
		if trips == nil {
			return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no trips loaded"))
		}
		e, err := parseEndpoint(in.Endpoint)
		if err != nil {
			return nil, toConnectError(err)
		}
		points = trips.Points(e)
		if opts.CRS == "" {
			opts.CRS = trips.CRS
		}
	}
	assignments, err := analysis.Impute(points, layer, opts)
	if err != nil {
		return nil, toConnectError(err)
	}
	for _, a := range assignments {
		s.metrics.ImputedPoints.WithLabelValues(a.Status.String()).Inc()
	}
	return newResponse(map[string]any{
		"assignments": lo.Map(assignments, func(a analysis.Assignment, _ int) any {
			return map[string]any{"point_id": a.PointID, "zone_id": a.ZoneID, "status": a.Status.String()}
		}),
	})
}

// Zonal 每个区域的出行数与指标均值
func (s *AnalysisServer) Zonal(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.wait()
	var in struct {
		Endpoint  string   `yaml:"endpoint"`
		Metrics   []string `yaml:"metrics"`
		Window    string   `yaml:"window"`
		FillEmpty bool     `yaml:"fill_empty"`
	}
	if err := decodeStruct(req.Msg, &in); err != nil {
		return nil, err
	}
	trips, layer := s.snapshot()
	if layer == nil || trips == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("trips and zone layer are required"))
	}
	opts := analysis.ZonalOptions{FillEmpty: in.FillEmpty, Impute: s.cfg.ImputeOptions()}
	var err error
	if opts.Endpoint, err = parseEndpoint(in.Endpoint); err != nil {
		return nil, toConnectError(err)
	}
	if opts.Metrics, err = parseMetrics(in.Metrics); err != nil {
		return nil, toConnectError(err)
	}
	if in.Window != "" {
		if opts.Window, err = analysis.ParseHourWindow(in.Window); err != nil {
			return nil, toConnectError(err)
		}
	}
	zones, err := analysis.ZonalSummary(trips, layer, opts)
	if err != nil {
		return nil, toConnectError(err)
	}
	return newResponse(map[string]any{
		"zones": lo.Map(zones, func(z analysis.ZoneMetrics, _ int) any {
			means := make(map[string]any, len(z.Means))
			for m, v := range z.Means {
				means[string(m)] = number(v)
			}
			return map[string]any{"zone_id": z.ZoneID, "trips": z.Trips, "means": means}
		}),
	})
}

// Reload 重新加载出行表与区域图层
func (s *AnalysisServer) Reload(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.Refresh(ctx); err != nil {
		return nil, toConnectError(err)
	}
	trips, layer := s.snapshot()
	out := map[string]any{"trips": trips.Len(), "zones": 0}
	if layer != nil {
		out["zones"] = layer.Len()
	}
	return newResponse(out)
}

// 暂停分析服务
func (s *AnalysisServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复分析服务
func (s *AnalysisServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭分析服务
func (s *AnalysisServer) Close() {
	if s.sources != nil {
		s.sources.Close(context.Background())
	}
}

// decodeStruct 请求以JSON形式按yaml标签解码
func decodeStruct(msg *structpb.Struct, out any) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("decode request: %w", err))
	}
	return nil
}

func newResponse(m map[string]any) (*connect.Response[structpb.Struct], error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// 分类错误是调用方的问题，其余为内部错误
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	if errors.Is(err, algo.ErrConfig) || errors.Is(err, algo.ErrSchema) || errors.Is(err, algo.ErrGeometry) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// NaN和Inf在JSON中没有表示，输出为null
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func binsValue(values []algo.BinValue) []any {
	return lo.Map(values, func(v algo.BinValue, _ int) any {
		return map[string]any{
			"lo":    v.Lo,
			"hi":    v.Hi,
			"mid":   v.Mid(),
			"value": number(v.Value),
			"count": v.Count,
		}
	})
}

func parseEndpoint(s string) (analysis.Endpoint, error) {
	switch s {
	case "", "origin":
		return analysis.Origin, nil
	case "destination":
		return analysis.Destination, nil
	}
	return analysis.Origin, fmt.Errorf("%w: unknown endpoint %q", algo.ErrConfig, s)
}

func parseMetrics(names []string) ([]analysis.Metric, error) {
	out := make([]analysis.Metric, 0, len(names))
	for _, n := range names {
		m, err := analysis.ParseMetric(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
