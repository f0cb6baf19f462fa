package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
)

var DEFAULT_PERCENTILES = []float64{0.25, 0.5, 0.75}

type Percentile struct {
	Q     float64
	Value float64
}

// 描述性统计，空输入时除Count外均为NaN
type Description struct {
	Count       int
	Mean        float64
	Std         float64 // 样本标准差
	Min         float64
	Percentiles []Percentile
	Max         float64
}

// Describe 计算描述性统计，NaN值不参与
func Describe(values []float64, percentiles ...float64) Description {
	if len(percentiles) == 0 {
		percentiles = DEFAULT_PERCENTILES
	}
	data := stats.Float64Data(lo.Filter(values, func(v float64, _ int) bool { return !math.IsNaN(v) }))
	d := Description{
		Count:       data.Len(),
		Mean:        math.NaN(),
		Std:         math.NaN(),
		Min:         math.NaN(),
		Max:         math.NaN(),
		Percentiles: make([]Percentile, len(percentiles)),
	}
	qs := algo.Quantiles(data, percentiles...)
	for i, q := range percentiles {
		d.Percentiles[i] = Percentile{Q: q, Value: qs[i]}
	}
	if d.Count == 0 {
		return d
	}
	d.Mean, _ = data.Mean()
	d.Min, _ = data.Min()
	d.Max, _ = data.Max()
	if std, err := data.StandardDeviationSample(); err == nil && d.Count > 1 {
		d.Std = std
	}
	return d
}

// Percentile 返回q分位数，未计算时为NaN
func (d Description) Percentile(q float64) float64 {
	for _, p := range d.Percentiles {
		if p.Q == q {
			return p.Value
		}
	}
	return math.NaN()
}

func (d Description) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "count=%d mean=%.3f std=%.3f min=%.3f", d.Count, d.Mean, d.Std, d.Min)
	for _, p := range d.Percentiles {
		fmt.Fprintf(&b, " %g%%=%.3f", p.Q*100, p.Value)
	}
	fmt.Fprintf(&b, " max=%.3f", d.Max)
	return b.String()
}

// 误差指标
type ErrorMetrics struct {
	MSE  float64
	RMSE float64
	MAE  float64
}

// NewErrorMetrics 由误差序列计算，空输入时均为NaN
func NewErrorMetrics(errs []float64) ErrorMetrics {
	if len(errs) == 0 {
		return ErrorMetrics{MSE: math.NaN(), RMSE: math.NaN(), MAE: math.NaN()}
	}
	var sq, abs float64
	for _, e := range errs {
		sq += e * e
		abs += math.Abs(e)
	}
	n := float64(len(errs))
	return ErrorMetrics{MSE: sq / n, RMSE: math.Sqrt(sq / n), MAE: abs / n}
}
