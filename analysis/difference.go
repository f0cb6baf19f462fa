package analysis

import (
	"math"
	"sort"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/samber/lo"
)

var DIFFERENCE_PERCENTILES = []float64{0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 0.999}

// DRT内部估计直达时间与路由直达时间的差
type UnsharedTimeDifference struct {
	Trip       Trip
	AbsSeconds float64
	AbsMinutes float64
	Relative   float64 // 绝对差 / 估计直达时间
}

type DifferenceReport struct {
	Differences []UnsharedTimeDifference
	AbsMinutes  Description
	Relative    Description
}

// UnsharedTimeDifferences 只统计路由直达时间非零的出行
func UnsharedTimeDifferences(trips *TripTable) DifferenceReport {
	kept := trips.Filter(NonZero(MetricRouterUnsharedTime))
	diffs := lo.Map(kept.trips, func(t Trip, _ int) UnsharedTimeDifference {
		abs := math.Abs(t.EstimatedUnsharedTime - t.RouterUnsharedTime)
		return UnsharedTimeDifference{
			Trip:       t,
			AbsSeconds: abs,
			AbsMinutes: abs / algo.SECONDS_PER_MINUTE,
			Relative:   abs / t.EstimatedUnsharedTime,
		}
	})
	return DifferenceReport{
		Differences: diffs,
		AbsMinutes: Describe(lo.Map(diffs, func(d UnsharedTimeDifference, _ int) float64 {
			return d.AbsMinutes
		}), DIFFERENCE_PERCENTILES...),
		Relative: Describe(lo.Map(diffs, func(d UnsharedTimeDifference, _ int) float64 {
			return d.Relative
		}), DIFFERENCE_PERCENTILES...),
	}
}

// TopByAbsolute 绝对差最大的n条，相等时按trip编号
func (r DifferenceReport) TopByAbsolute(n int) []UnsharedTimeDifference {
	return topN(r.Differences, n, func(d UnsharedTimeDifference) float64 { return d.AbsSeconds })
}

// TopByRelative 相对差最大的n条
func (r DifferenceReport) TopByRelative(n int) []UnsharedTimeDifference {
	return topN(r.Differences, n, func(d UnsharedTimeDifference) float64 { return d.Relative })
}

func topN(diffs []UnsharedTimeDifference, n int, key func(UnsharedTimeDifference) float64) []UnsharedTimeDifference {
	sorted := make([]UnsharedTimeDifference, len(diffs))
	copy(sorted, diffs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki > kj
		}
		return algo.LessID(sorted[i].Trip.ID, sorted[j].Trip.ID)
	})
	return sorted[:min(max(n, 0), len(sorted))]
}
