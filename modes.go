package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/eqasim-org/drt-analysis/config"
	"github.com/eqasim-org/drt-analysis/loader"
	"github.com/eqasim-org/drt-analysis/report"
	"github.com/samber/lo"
)

// 一种分析模式，返回待输出的结果表
type modeFunc func(ctx context.Context, e *env) ([]report.Table, error)

var MODES = map[string]modeFunc{
	"impute":      runImpute,
	"bin":         runBin,
	"zonal":       runZonal,
	"od":          runOD,
	"grid":        runGrid,
	"summary":     runSummary,
	"predictions": runPredictions,
	"diff":        runDiff,
	"distance":    runDistance,
	"occupancy":   runOccupancy,
}

type env struct {
	cfg     *config.AppConfig
	sources *loader.Sources
}

func (e *env) trips(ctx context.Context) (*analysis.TripTable, error) {
	p, err := loader.NewPath(*tripsPathStr)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: -trips is required", algo.ErrConfig)
	}
	trips, err := e.sources.Trips(ctx, p, e.cfg.CRS, e.cfg.TableOptions())
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d trips from %s", trips.Len(), p)
	return trips, nil
}

func (e *env) zones(ctx context.Context) (*analysis.ZoneLayer, error) {
	p, err := loader.NewPath(e.cfg.Zones.Path)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: -zones is required", algo.ErrConfig)
	}
	layer, err := e.sources.Zones(ctx, p, e.cfg.ZoneOptions())
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d zones from %s", layer.Len(), p)
	return layer, nil
}

// query 配置中的预设优先，否则由命令行参数构造
func (e *env) query() (string, analysis.BinnedQuery, bool, error) {
	if *queryName != "" {
		qc, ok := e.cfg.Query(*queryName)
		if !ok {
			return "", analysis.BinnedQuery{}, false, fmt.Errorf("%w: no query preset %q", algo.ErrConfig, *queryName)
		}
		q, err := qc.BinnedQuery()
		return qc.Name, q, qc.FilterRouterZeros, err
	}
	ax, err := analysis.ParseAxis(*axis)
	if err != nil {
		return "", analysis.BinnedQuery{}, false, err
	}
	op, err := algo.ParseOperator(*operator)
	if err != nil {
		return "", analysis.BinnedQuery{}, false, err
	}
	m, err := analysis.ParseMetric(*metric)
	if err != nil {
		return "", analysis.BinnedQuery{}, false, err
	}
	var q analysis.BinnedQuery
	if ax == analysis.AxisTime {
		q = analysis.TimeQuery(*binStart, *binEnd, *binWidth, op, m)
	} else {
		q = analysis.DistanceQuery(*binStart, *binEnd, *binWidth, op, m)
	}
	if op == algo.OpSumRatio {
		den, err := analysis.ParseMetric(*denominator)
		if err != nil {
			return "", analysis.BinnedQuery{}, false, err
		}
		q = q.ComputedDelayFactor(den)
	}
	name := fmt.Sprintf("%s_%s_%s", ax, op, q.Metric)
	return name, q, *filterRouterZeros, nil
}

func parseEndpointFlag() (analysis.Endpoint, error) {
	return parseEndpoint(*endpoint)
}

func runImpute(ctx context.Context, e *env) ([]report.Table, error) {
	layer, err := e.zones(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	ep, err := parseEndpointFlag()
	if err != nil {
		return nil, err
	}
	opts := e.cfg.ImputeOptions()
	if opts.CRS == "" {
		opts.CRS = trips.CRS
	}
	assignments, err := analysis.Impute(trips.Points(ep), layer, opts)
	if err != nil {
		return nil, err
	}
	counts := lo.MapValues(lo.GroupBy(assignments, func(a analysis.Assignment) string {
		return a.Status.String()
	}), func(as []analysis.Assignment, _ string) int { return len(as) })
	log.Infof("imputed %d %s points: %v", len(assignments), ep, counts)
	t := report.AssignmentsTable(assignments)
	t.Name = "assignments_" + ep.String()
	return []report.Table{t}, nil
}

func runBin(ctx context.Context, e *env) ([]report.Table, error) {
	name, q, filterZeros, err := e.query()
	if err != nil {
		return nil, err
	}
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	if filterZeros {
		n := trips.Len()
		trips = trips.Filter(analysis.NonZero(analysis.MetricRouterUnsharedTime))
		log.Infof("dropped %d trips with zero router unshared time", n-trips.Len())
	}
	values, err := analysis.AggregateTrips(trips, q)
	if err != nil {
		return nil, err
	}
	return []report.Table{report.SeriesTable(name, q.Axis, values)}, nil
}

func runZonal(ctx context.Context, e *env) ([]report.Table, error) {
	layer, err := e.zones(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	opts := analysis.ZonalOptions{FillEmpty: *fillEmpty, Impute: e.cfg.ImputeOptions()}
	if opts.Endpoint, err = parseEndpointFlag(); err != nil {
		return nil, err
	}
	if opts.Metrics, err = parseMetrics(strings.Split(*metrics, ",")); err != nil {
		return nil, err
	}
	if *window != "" {
		if opts.Window, err = analysis.ParseHourWindow(*window); err != nil {
			return nil, err
		}
	}
	zones, err := analysis.ZonalSummary(trips, layer, opts)
	if err != nil {
		return nil, err
	}
	tables := []report.Table{report.ZonalTable("zonal_"+opts.Endpoint.String(), opts.Metrics, zones)}
	if *queryName != "" {
		name, q, _, err := e.query()
		if err != nil {
			return nil, err
		}
		series, err := analysis.ZonalBinned(trips, layer, opts.Endpoint, q, opts.Impute)
		if err != nil {
			return nil, err
		}
		tables = append(tables, report.ZoneSeriesTable("zonal_"+name, series))
	}
	return tables, nil
}

func runOD(ctx context.Context, e *env) ([]report.Table, error) {
	layer, err := e.zones(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	cells, err := analysis.ODDelayFactors(trips, layer, e.cfg.ImputeOptions())
	if err != nil {
		return nil, err
	}
	return []report.Table{report.ODTable(cells)}, nil
}

// runGrid 在区域图层外包范围上生成方格，给出出行时同时输出方格统计
func runGrid(ctx context.Context, e *env) ([]report.Table, error) {
	boundary, err := e.zones(ctx)
	if err != nil {
		return nil, err
	}
	grid, err := analysis.SquareGrid(boundary, *gridSize)
	if err != nil {
		return nil, err
	}
	log.Infof("generated %d grid cells of %gm", grid.Len(), *gridSize)
	tables := []report.Table{report.ZonesTable(grid)}
	if *tripsPathStr == "" {
		return tables, nil
	}
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	opts := analysis.ZonalOptions{FillEmpty: *fillEmpty, Impute: e.cfg.ImputeOptions()}
	if opts.Endpoint, err = parseEndpointFlag(); err != nil {
		return nil, err
	}
	if opts.Metrics, err = parseMetrics(strings.Split(*metrics, ",")); err != nil {
		return nil, err
	}
	zones, err := analysis.ZonalSummary(trips, grid, opts)
	if err != nil {
		return nil, err
	}
	return append(tables, report.ZonalTable("grid_"+opts.Endpoint.String(), opts.Metrics, zones)), nil
}

func runPredictions(ctx context.Context, e *env) ([]report.Table, error) {
	if *predictionsStr == "" {
		return nil, fmt.Errorf("%w: -predictions is required", algo.ErrConfig)
	}
	preds, err := loader.ReadPredictionsFile(*predictionsStr, e.cfg.DelimiterRune())
	if err != nil {
		return nil, err
	}
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	r, err := analysis.EvaluatePredictions(preds, trips)
	if err != nil {
		return nil, err
	}
	log.Infof("matched %d predictions, wait error %s", r.Matched, r.WaitErrors)
	return []report.Table{report.PredictionTable(r)}, nil
}

func runDiff(ctx context.Context, e *env) ([]report.Table, error) {
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	r := analysis.UnsharedTimeDifferences(trips)
	return []report.Table{
		report.DescriptionsTable("unshared_time_difference", []string{"abs_difference_min", "rel_difference"},
			[]analysis.Description{r.AbsMinutes, r.Relative}),
		report.DifferencesTable("top_abs_difference", r.TopByAbsolute(*topN)),
		report.DifferencesTable("top_rel_difference", r.TopByRelative(*topN)),
	}, nil
}

// runDistance 距离分布，以-start/-end/-width（米）分箱计算方式份额
func runDistance(ctx context.Context, e *env) ([]report.Table, error) {
	trips, err := e.trips(ctx)
	if err != nil {
		return nil, err
	}
	tables := []report.Table{
		report.DescriptionsTable("distance", []string{"euclidean_distance"},
			[]analysis.Description{analysis.DistanceDistribution(trips)}),
	}
	bins, err := algo.NewBins(*binStart, *binEnd, *binWidth)
	if err != nil {
		return nil, err
	}
	return append(tables, report.ModeShareTable(analysis.ModeShareByDistance(trips, bins, *weighted))), nil
}

func runOccupancy(ctx context.Context, e *env) ([]report.Table, error) {
	if *occupancyStr == "" {
		return nil, fmt.Errorf("%w: -occupancy is required", algo.ErrConfig)
	}
	profile, err := loader.ReadOccupancyFile(*occupancyStr)
	if err != nil {
		return nil, err
	}
	windowed, err := profile.Window(analysis.OccupancyOptions{
		StartHour: *occupancyStart,
		EndHour:   *occupancyEnd,
		KeepIdle:  *occupancyIdle,
	})
	if err != nil {
		return nil, err
	}
	return []report.Table{report.OccupancyTable(windowed), report.OccupancyMeansTable(windowed)}, nil
}
