package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
)

// 一天中的时段[Start, End)小时，End <= Start 时跨越零点
type HourWindow struct {
	Start float64
	End   float64
}

func (w HourWindow) Contains(seconds float64) bool {
	lo, hi := algo.HoursToSeconds(w.Start), algo.HoursToSeconds(w.End)
	if lo < hi {
		return seconds >= lo && seconds < hi
	}
	return seconds >= lo || seconds < hi
}

// ParseHourWindow 解析"7-9"形式的时段，小时可以是小数
func ParseHourWindow(s string) (*HourWindow, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return nil, fmt.Errorf("%w: hour window %q is not {start}-{end}", algo.ErrConfig, s)
	}
	lo, err1 := strconv.ParseFloat(strings.TrimSpace(start), 64)
	hi, err2 := strconv.ParseFloat(strings.TrimSpace(end), 64)
	if err1 != nil || err2 != nil || lo < 0 || hi < 0 || lo > 24 || hi > 24 || lo == hi {
		return nil, fmt.Errorf("%w: invalid hour window %q", algo.ErrConfig, s)
	}
	return &HourWindow{Start: lo, End: hi}, nil
}

func (w HourWindow) String() string {
	return fmt.Sprintf("%g-%gh", w.Start, w.End)
}

// 单个区域的统计
type ZoneMetrics struct {
	ZoneID string
	Trips  int
	Means  map[Metric]float64
}

type ZonalOptions struct {
	Endpoint Endpoint
	Metrics  []Metric
	// 只统计出发时刻在时段内的出行
	Window *HourWindow
	// 无出行的区域均值填0，否则为NaN
	FillEmpty bool
	Impute    ImputeOptions
}

// ZonalSummary 每个区域（包括没有出行的区域）的出行数与指标均值，按图层顺序输出
func ZonalSummary(trips *TripTable, layer *ZoneLayer, opts ZonalOptions) ([]ZoneMetrics, error) {
	if len(opts.Metrics) == 0 {
		opts.Metrics = []Metric{MetricWaitTime}
	}
	for _, m := range opts.Metrics {
		if _, ok := metricGetters[m]; !ok {
			return nil, fmt.Errorf("%w: unknown metric %q", algo.ErrConfig, m)
		}
	}
	assignments, err := ImputeTrips(trips, layer, opts.Endpoint, opts.Impute)
	if err != nil {
		return nil, err
	}
	type acc struct {
		n    int
		sums map[Metric]float64
	}
	byZone := make(map[string]*acc, layer.Len())
	for _, t := range trips.trips {
		if opts.Window != nil && !opts.Window.Contains(t.StartTime) {
			continue
		}
		a := assignments[t.ID]
		if !a.Assigned() {
			continue
		}
		z, ok := byZone[a.ZoneID]
		if !ok {
			z = &acc{sums: make(map[Metric]float64, len(opts.Metrics))}
			byZone[a.ZoneID] = z
		}
		z.n++
		for _, m := range opts.Metrics {
			z.sums[m] += m.Of(t)
		}
	}
	out := make([]ZoneMetrics, 0, layer.Len())
	for _, id := range layer.IDs() {
		zm := ZoneMetrics{ZoneID: id, Means: make(map[Metric]float64, len(opts.Metrics))}
		z, ok := byZone[id]
		for _, m := range opts.Metrics {
			switch {
			case ok:
				zm.Means[m] = z.sums[m] / float64(z.n)
			case opts.FillEmpty:
				zm.Means[m] = 0
			default:
				zm.Means[m] = math.NaN()
			}
		}
		if ok {
			zm.Trips = z.n
		}
		out = append(out, zm)
	}
	return out, nil
}

// 区域 × 时间分箱的聚合结果
type ZoneSeries struct {
	ZoneID string
	Values []algo.BinValue
}

// ZonalBinned 对每个区域分别做分箱聚合（例如分区域、分时段的等待时间）
func ZonalBinned(trips *TripTable, layer *ZoneLayer, e Endpoint, q BinnedQuery, opts ImputeOptions) ([]ZoneSeries, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	assignments, err := ImputeTrips(trips, layer, e, opts)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]Trip, layer.Len())
	for _, t := range trips.trips {
		if a := assignments[t.ID]; a.Assigned() {
			grouped[a.ZoneID] = append(grouped[a.ZoneID], t)
		}
	}
	out := make([]ZoneSeries, 0, layer.Len())
	for _, id := range layer.IDs() {
		values, err := AggregateTrips(&TripTable{CRS: trips.CRS, trips: grouped[id]}, q)
		if err != nil {
			return nil, err
		}
		out = append(out, ZoneSeries{ZoneID: id, Values: values})
	}
	return out, nil
}
