package analysis

import (
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/samber/lo"
)

var DISTANCE_PERCENTILES = []float64{0.25, 0.5, 0.75, 0.9, 0.95, 0.99}

// DistanceDistribution 起终点欧氏距离（米）的描述性统计
func DistanceDistribution(trips *TripTable) Description {
	return Describe(trips.Values(MetricEuclideanDistance), DISTANCE_PERCENTILES...)
}

// 一个距离分箱内各方式的份额
type ModeShare struct {
	algo.Bin
	Total  float64 // 出行数或权重和
	Shares map[string]float64
}

// ModeShareByDistance 按欧氏距离分箱计算各方式份额，分箱内缺失的方式份额为0
// weighted为true时按出行权重计算
func ModeShareByDistance(trips *TripTable, bins *algo.Bins, weighted bool) []ModeShare {
	modes := lo.Uniq(lo.Map(trips.trips, func(t Trip, _ int) string { return t.Mode }))
	out := make([]ModeShare, bins.Len())
	for i := range out {
		out[i] = ModeShare{Bin: bins.Bin(i), Shares: make(map[string]float64, len(modes))}
		for _, m := range modes {
			out[i].Shares[m] = 0
		}
	}
	for _, t := range trips.trips {
		i, ok := bins.Locate(t.EuclideanDistance())
		if !ok {
			continue
		}
		w := 1.0
		if weighted {
			w = t.Weight
		}
		out[i].Total += w
		out[i].Shares[t.Mode] += w
	}
	for i := range out {
		if out[i].Total == 0 {
			continue
		}
		for m := range out[i].Shares {
			out[i].Shares[m] /= out[i].Total
		}
	}
	return out
}
