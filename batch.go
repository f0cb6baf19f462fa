package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/eqasim-org/drt-analysis/loader"
	"github.com/eqasim-org/drt-analysis/report"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

var (
	batchRuns      = flag.String("batch.runs", "", "comma separated runs [format: {fleet}:{iteration}={fspath or db.col}]")
	batchCPU       = flag.Int("batch.cpu", 1, "the cpu count for loading runs")
	batchHorizon   = flag.Int("batch.horizon", 5, "the rolling horizon of convergence curves")
	batchCosts     = flag.String("batch.costs", "", "comma separated drt cost tables [format: {fleet}={fspath}]")
	batchIteration = flag.Int("batch.iteration", -1, "the iteration compared across fleet sizes (-1 means the last one)")
)

// 一次运行的数据来源
type runSource struct {
	key  analysis.RunKey
	path *loader.Path
}

// parseRuns 解析{fleet}:{iteration}={path}列表
func parseRuns(s string) ([]runSource, error) {
	var out []runSource
	seen := make(map[analysis.RunKey]struct{})
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		keyStr, pathStr, ok := strings.Cut(entry, "=")
		fleetStr, iterStr, ok2 := strings.Cut(keyStr, ":")
		if !ok || !ok2 {
			return nil, fmt.Errorf("%w: run %q is not {fleet}:{iteration}={path}", algo.ErrConfig, entry)
		}
		fleet, err1 := strconv.Atoi(strings.TrimSpace(fleetStr))
		iter, err2 := strconv.Atoi(strings.TrimSpace(iterStr))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: invalid run key %q", algo.ErrConfig, keyStr)
		}
		key := analysis.RunKey{FleetSize: fleet, Iteration: iter}
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: duplicate run %s", algo.ErrConfig, key)
		}
		seen[key] = struct{}{}
		p, err := loader.NewPath(pathStr)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: run %s has no path", algo.ErrConfig, key)
		}
		out = append(out, runSource{key: key, path: p})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: -batch.runs is required", algo.ErrConfig)
	}
	return out, nil
}

// readCosts 读取{fleet}={path}列表中每个车队规模的票价表
func readCosts(s string, delimiter rune) (map[int][]analysis.FareRecord, error) {
	out := make(map[int][]analysis.FareRecord)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fleetStr, path, ok := strings.Cut(entry, "=")
		fleet, err := strconv.Atoi(strings.TrimSpace(fleetStr))
		if !ok || err != nil || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: cost table %q is not {fleet}={path}", algo.ErrConfig, entry)
		}
		if _, ok := out[fleet]; ok {
			return nil, fmt.Errorf("%w: duplicate cost table of fleet %d", algo.ErrConfig, fleet)
		}
		records, err := loader.ReadCostsFile(strings.TrimSpace(path), delimiter)
		if err != nil {
			return nil, fmt.Errorf("fleet %d: %w", fleet, err)
		}
		out[fleet] = records
	}
	return out, nil
}

// loadRuns 并行读取所有运行的出行表
func loadRuns(ctx context.Context, e *env, runs []runSource, cpu int) (*xsync.MapOf[analysis.RunKey, *analysis.TripTable], error) {
	tables := xsync.NewMapOf[analysis.RunKey, *analysis.TripTable]()
	var failed atomic.Int32
	var once sync.Once
	var firstErr error
	load := func(r runSource) {
		trips, err := e.sources.Trips(ctx, r.path, e.cfg.CRS, e.cfg.TableOptions())
		if err != nil {
			log.Errorf("failed to load run %s: %v", r.key, err)
			failed.Add(1)
			once.Do(func() { firstErr = err })
			return
		}
		tables.Store(r.key, trips)
		log.Debugf("loaded run %s with %d trips", r.key, trips.Len())
	}

	start := time.Now()
	if cpu <= 1 {
		for _, r := range runs {
			load(r)
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(cpu)
		var wg sync.WaitGroup
		sem := make(chan struct{}, cpu)
		wg.Add(len(runs))
		for _, r := range runs {
			sem <- struct{}{}
			go func(r runSource) {
				defer wg.Done()
				defer func() { <-sem }()
				load(r)
			}(r)
		}
		wg.Wait()
	}
	if n := failed.Load(); n > 0 {
		return nil, fmt.Errorf("%d of %d runs failed: %w", n, len(runs), firstErr)
	}
	log.Infof("loaded %d runs in %v", tables.Size(), time.Since(start))
	return tables, nil
}

func runSummary(ctx context.Context, e *env) ([]report.Table, error) {
	runs, err := parseRuns(*batchRuns)
	if err != nil {
		return nil, err
	}
	tables, err := loadRuns(ctx, e, runs, *batchCPU)
	if err != nil {
		return nil, err
	}

	stats := make([]analysis.RunStats, 0, tables.Size())
	tables.Range(func(key analysis.RunKey, trips *analysis.TripTable) bool {
		stats = append(stats, analysis.RunSummary(key, trips))
		return true
	})
	analysis.SortRuns(stats)
	out := []report.Table{report.RunsTable(stats)}

	costs, err := readCosts(*batchCosts, e.cfg.DelimiterRune())
	if err != nil {
		return nil, err
	}
	fleetStats, err := analysis.FleetSummary(stats, costs, *batchIteration)
	if err != nil {
		return nil, err
	}
	out = append(out, report.FleetTable(fleetStats))

	byFleet := lo.GroupBy(stats, func(r analysis.RunStats) int { return r.FleetSize })
	fleets := lo.Keys(byFleet)
	sort.Ints(fleets)
	for _, fleet := range fleets {
		table, err := convergenceTable(fleet, byFleet[fleet], costs[fleet], *batchHorizon)
		if err != nil {
			return nil, err
		}
		out = append(out, table)
	}

	if *queryName != "" {
		smoothed, err := smoothedSeries(e, tables, byFleet, fleets)
		if err != nil {
			return nil, err
		}
		out = append(out, smoothed...)
	}

	if *vehiclesStr != "" {
		vehicles, err := loader.ReadVehiclesFile(*vehiclesStr, e.cfg.DelimiterRune())
		if err != nil {
			return nil, err
		}
		out = append(out, report.VehiclesTable(analysis.VehicleSummary(vehicles)))
	}
	return out, nil
}

// convergenceTable 一个车队规模逐次迭代的请求数、票价、等待与出行时间及其滑动平均
// its已按迭代次数排序
func convergenceTable(fleet int, its []analysis.RunStats, fares []analysis.FareRecord, horizon int) (report.Table, error) {
	iterations := lo.Map(its, func(r analysis.RunStats, _ int) int { return r.Iteration })
	fare, err := analysis.FareSeries(fares, iterations)
	if err != nil {
		return report.Table{}, fmt.Errorf("fleet %d: %w", fleet, err)
	}
	series := map[string][]float64{
		"requests":          lo.Map(its, func(r analysis.RunStats, _ int) float64 { return float64(r.Requests) }),
		"cost_per_km":       fare,
		"mean_wait_time":    lo.Map(its, func(r analysis.RunStats, _ int) float64 { return r.MeanWaitTime }),
		"mean_travel_time":  lo.Map(its, func(r analysis.RunStats, _ int) float64 { return r.MeanTravelTime }),
		"mean_delay_factor": lo.Map(its, func(r analysis.RunStats, _ int) float64 { return r.MeanDelayFactor }),
	}
	var order []string
	for _, name := range []string{"requests", "cost_per_km", "mean_wait_time", "mean_travel_time", "mean_delay_factor"} {
		rolling := name + "_rolling"
		series[rolling] = analysis.Convergence(series[name], horizon)
		order = append(order, name, rolling)
	}
	return report.SeriesColumnsTable(fmt.Sprintf("convergence_fleet_%d", fleet), iterations, series, order), nil
}

// smoothedSeries 每个车队规模的分箱序列在迭代间平滑
func smoothedSeries(
	e *env,
	tables *xsync.MapOf[analysis.RunKey, *analysis.TripTable],
	byFleet map[int][]analysis.RunStats,
	fleets []int,
) ([]report.Table, error) {
	name, q, filterZeros, err := e.query()
	if err != nil {
		return nil, err
	}
	method, param := e.cfg.Smoothing.Method, e.cfg.Smoothing.Param
	if method == "" {
		method, param = "window", float64(*batchHorizon)
	}
	smoother, err := analysis.NewSmoother(method, param)
	if err != nil {
		return nil, err
	}
	var out []report.Table
	for _, fleet := range fleets {
		var history [][]float64
		var last []algo.BinValue
		for _, r := range byFleet[fleet] {
			trips, _ := tables.Load(r.RunKey)
			if filterZeros {
				trips = trips.Filter(analysis.NonZero(analysis.MetricRouterUnsharedTime))
			}
			values, err := analysis.AggregateTrips(trips, q)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", r.RunKey, err)
			}
			history = append(history, lo.Map(values, func(v algo.BinValue, _ int) float64 { return v.Value }))
			last = values
		}
		// 分箱与计数取最后一次迭代
		smoothed := smoother.Smooth(history)
		for i := range last {
			last[i].Value = smoothed[i]
		}
		out = append(out, report.SeriesTable(fmt.Sprintf("smoothed_%s_fleet_%d", name, fleet), q.Axis, last))
	}
	return out, nil
}
