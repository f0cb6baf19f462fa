package algo

import (
	"math"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func HoursToSeconds(h float64) float64 {
	return h * SECONDS_PER_HOUR
}

func MinutesToSeconds(m float64) float64 {
	return m * SECONDS_PER_MINUTE
}

// Finite 两个坐标都不是NaN或Inf
func Finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) && !math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

// 起终点欧氏距离
func EuclideanDistance(o, d orb.Point) float64 {
	return planar.Distance(o, d)
}

// Quantile 线性插值分位数（位置(n-1)q），NaN值不参与，不修改输入
func Quantile(values []float64, q float64) float64 {
	return Quantiles(values, q)[0]
}

func quantileSorted(sorted []float64, q float64) float64 {
	q = math.Max(0, math.Min(1, q))
	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Quantiles 一次排序计算多个分位数，NaN值不参与
func Quantiles(values []float64, qs ...float64) []float64 {
	out := make([]float64, len(qs))
	sorted := DropNaN(values)
	sort.Float64s(sorted)
	for i, q := range qs {
		if len(sorted) == 0 || math.IsNaN(q) {
			out[i] = math.NaN()
			continue
		}
		out[i] = quantileSorted(sorted, q)
	}
	return out
}

// DropNaN 返回去掉NaN后的副本
func DropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// LessID 比较两个编号：都是整数时按数值，否则按字典序
func LessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		if ai != bi {
			return ai < bi
		}
	}
	return a < b
}
