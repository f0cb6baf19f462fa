package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/samber/lo"
)

// 一次仿真运行：车队规模 × 迭代次数
type RunKey struct {
	FleetSize int
	Iteration int
}

func (k RunKey) String() string {
	return fmt.Sprintf("fleet=%d it=%d", k.FleetSize, k.Iteration)
}

// 一次运行的服务水平汇总，时间单位为秒
type RunStats struct {
	RunKey
	Requests        int
	MeanWaitTime    float64
	Q90WaitTime     float64
	MeanTravelTime  float64
	Q90TravelTime   float64
	MeanDelayFactor float64
}

func RunSummary(key RunKey, trips *TripTable) RunStats {
	wait := trips.Values(MetricWaitTime)
	travel := trips.Values(MetricTotalTravelTime)
	return RunStats{
		RunKey:          key,
		Requests:        trips.Len(),
		MeanWaitTime:    mean(wait),
		Q90WaitTime:     algo.Quantile(wait, 0.9),
		MeanTravelTime:  mean(travel),
		Q90TravelTime:   algo.Quantile(travel, 0.9),
		MeanDelayFactor: mean(trips.Filter(NonZero(MetricRouterUnsharedTime)).Values(MetricDelayFactor)),
	}
}

// SortRuns 按车队规模、迭代次数排序
func SortRuns(runs []RunStats) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].FleetSize != runs[j].FleetSize {
			return runs[i].FleetSize < runs[j].FleetSize
		}
		return runs[i].Iteration < runs[j].Iteration
	})
}

// 某次迭代的DRT距离票价
type FareRecord struct {
	Iteration int
	CostPerKm float64
}

// FareSeries 按iterations顺序取票价，缺失的迭代为NaN
func FareSeries(records []FareRecord, iterations []int) ([]float64, error) {
	byIter := make(map[int]float64, len(records))
	for _, r := range records {
		if _, ok := byIter[r.Iteration]; ok {
			return nil, fmt.Errorf("%w: duplicate fare of iteration %d", algo.ErrSchema, r.Iteration)
		}
		byIter[r.Iteration] = r.CostPerKm
	}
	return lo.Map(iterations, func(it int, _ int) float64 {
		if v, ok := byIter[it]; ok {
			return v
		}
		return math.NaN()
	}), nil
}

// 一个车队规模在选定迭代的汇总
type FleetStats struct {
	RunStats
	CostPerKm float64
}

// FleetSummary 每个车队规模取第iteration次迭代（小于0时取最后一次），按车队规模排序
// fares缺失的车队规模票价为NaN
func FleetSummary(runs []RunStats, fares map[int][]FareRecord, iteration int) ([]FleetStats, error) {
	picked := make(map[int]RunStats)
	for _, r := range runs {
		cur, ok := picked[r.FleetSize]
		switch {
		case iteration >= 0 && r.Iteration == iteration:
			picked[r.FleetSize] = r
		case iteration < 0 && (!ok || r.Iteration > cur.Iteration):
			picked[r.FleetSize] = r
		}
	}
	fleets := lo.Uniq(lo.Map(runs, func(r RunStats, _ int) int { return r.FleetSize }))
	sort.Ints(fleets)
	out := make([]FleetStats, 0, len(fleets))
	for _, f := range fleets {
		r, ok := picked[f]
		if !ok {
			return nil, fmt.Errorf("%w: fleet %d has no iteration %d", algo.ErrConfig, f, iteration)
		}
		fare, err := FareSeries(fares[f], []int{r.Iteration})
		if err != nil {
			return nil, fmt.Errorf("fleet %d: %w", f, err)
		}
		out = append(out, FleetStats{RunStats: r, CostPerKm: fare[0]})
	}
	return out, nil
}

// 单车行驶里程，单位米
type VehicleRecord struct {
	ID            string
	Distance      float64
	EmptyDistance float64
}

// 车队里程汇总，单位公里
type VehicleStats struct {
	Vehicles         int
	TotalKm          float64
	EmptyKm          float64
	EmptySharePct    float64
	MeanKmPerVehicle float64
	MaxKmPerVehicle  float64
}

func VehicleSummary(vehicles []VehicleRecord) VehicleStats {
	s := VehicleStats{Vehicles: len(vehicles)}
	if len(vehicles) == 0 {
		s.EmptySharePct, s.MeanKmPerVehicle, s.MaxKmPerVehicle = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	for _, v := range vehicles {
		s.TotalKm += v.Distance / 1000
		s.EmptyKm += v.EmptyDistance / 1000
	}
	s.EmptySharePct = s.EmptyKm / s.TotalKm * 100
	s.MeanKmPerVehicle = s.TotalKm / float64(len(vehicles))
	s.MaxKmPerVehicle = lo.MaxBy(vehicles, func(a, b VehicleRecord) bool {
		return a.Distance > b.Distance
	}).Distance / 1000
	return s
}

// Convergence 逐次迭代序列的尾随滑动平均，前horizon-1项为NaN；horizon<=1时原样返回
// 窗口内含NaN时该窗口结果为NaN，不影响其他窗口
func Convergence(series []float64, horizon int) []float64 {
	out := make([]float64, len(series))
	if horizon <= 1 {
		copy(out, series)
		return out
	}
	var sum float64
	nans := 0
	for i, v := range series {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= horizon {
			if old := series[i-horizon]; math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i < horizon-1 || nans > 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(horizon)
	}
	return out
}

// Smoother 将多次迭代的分箱序列平滑为一条，NaN分箱不参与
// history[i][b]为第i次迭代第b个分箱的值
type Smoother interface {
	Smooth(history [][]float64) []float64
}

// 最近Window次迭代的均值
type MovingWindow struct {
	Window int
}

func (m MovingWindow) Smooth(history [][]float64) []float64 {
	out := make([]float64, width(history))
	first := max(0, len(history)-m.Window)
	for b := range out {
		var total float64
		count := 0
		for _, it := range history[first:] {
			if b < len(it) && !math.IsNaN(it[b]) {
				total += it[b]
				count++
			}
		}
		out[b] = total / float64(count)
	}
	return out
}

// 逐次平均：v = v*(1-w) + x*w，首个有效值直接取用
type SuccessiveAverage struct {
	Weight float64
}

func (s SuccessiveAverage) Smooth(history [][]float64) []float64 {
	out := make([]float64, width(history))
	for b := range out {
		v := math.NaN()
		for _, it := range history {
			if b >= len(it) || math.IsNaN(it[b]) {
				continue
			}
			if math.IsNaN(v) {
				v = it[b]
			} else {
				v = v*(1-s.Weight) + it[b]*s.Weight
			}
		}
		out[b] = v
	}
	return out
}

// NewSmoother 按名称创建："window"使用整数窗口，"msa"使用(0,1]的权重
func NewSmoother(name string, param float64) (Smoother, error) {
	switch name {
	case "window":
		if param < 1 || param != math.Trunc(param) {
			return nil, fmt.Errorf("%w: moving window must be a positive integer, got %v", algo.ErrConfig, param)
		}
		return MovingWindow{Window: int(param)}, nil
	case "msa":
		if !(param > 0 && param <= 1) {
			return nil, fmt.Errorf("%w: msa weight must be in (0, 1], got %v", algo.ErrConfig, param)
		}
		return SuccessiveAverage{Weight: param}, nil
	}
	return nil, fmt.Errorf("%w: unknown smoothing %q", algo.ErrConfig, name)
}

func width(history [][]float64) int {
	n := 0
	for _, it := range history {
		n = max(n, len(it))
	}
	return n
}

// NaN值不参与
func mean(values []float64) float64 {
	values = algo.DropNaN(values)
	if len(values) == 0 {
		return math.NaN()
	}
	return lo.Sum(values) / float64(len(values))
}
