package analysis

import (
	"fmt"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
)

// 分箱轴
type Axis string

const (
	AxisTime     Axis = "time"     // 出发时刻，秒
	AxisDistance Axis = "distance" // 起终点欧氏距离，米
)

func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(strings.TrimSpace(s))); a {
	case AxisTime, AxisDistance:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown axis %q", algo.ErrConfig, s)
}

// 轴上的取值：时间轴取出发时刻，距离轴总是由起终点坐标计算
func (a Axis) Of(t Trip) float64 {
	if a == AxisDistance {
		return t.EuclideanDistance()
	}
	return t.StartTime
}

// BinnedQuery 一次分箱聚合的参数，Start/End/Width使用轴的原生单位
type BinnedQuery struct {
	Axis     Axis
	Start    float64
	End      float64
	Width    float64
	Operator algo.Operator
	// mean/median/count/q90聚合的指标
	Metric Metric
	// sum-ratio的分母（总行程时间为分子），例如router_unshared_time
	Denominator Metric
}

// TimeQuery 以小时给出起止、以分钟给出宽度的时间轴分箱
func TimeQuery(startHour, endHour, binMinutes float64, op algo.Operator, metric Metric) BinnedQuery {
	return BinnedQuery{
		Axis:     AxisTime,
		Start:    algo.HoursToSeconds(startHour),
		End:      algo.HoursToSeconds(endHour),
		Width:    algo.MinutesToSeconds(binMinutes),
		Operator: op,
		Metric:   metric,
	}
}

// DistanceQuery 以米为单位的距离轴分箱
func DistanceQuery(minDistance, maxDistance, binDistance float64, op algo.Operator, metric Metric) BinnedQuery {
	return BinnedQuery{
		Axis:     AxisDistance,
		Start:    minDistance,
		End:      maxDistance,
		Width:    binDistance,
		Operator: op,
		Metric:   metric,
	}
}

// ComputedDelayFactor 将查询改为sum(总行程时间)/sum(denominator)
func (q BinnedQuery) ComputedDelayFactor(denominator Metric) BinnedQuery {
	q.Operator = algo.OpSumRatio
	q.Metric = MetricTotalTravelTime
	q.Denominator = denominator
	return q
}

func (q BinnedQuery) validate() error {
	if q.Axis != AxisTime && q.Axis != AxisDistance {
		return fmt.Errorf("%w: unknown axis %q", algo.ErrConfig, q.Axis)
	}
	if _, err := algo.ParseOperator(string(q.Operator)); err != nil {
		return err
	}
	switch q.Operator {
	case algo.OpSumRatio:
		if _, ok := metricGetters[q.Denominator]; !ok {
			return fmt.Errorf("%w: sum-ratio needs a denominator metric, got %q", algo.ErrConfig, q.Denominator)
		}
	case algo.OpCount:
	default:
		if _, ok := metricGetters[q.Metric]; !ok {
			return fmt.Errorf("%w: unknown metric %q", algo.ErrConfig, q.Metric)
		}
	}
	return nil
}

// AggregateTrips 按查询对出行分箱并归约，结果按分箱中点升序
func AggregateTrips(trips *TripTable, q BinnedQuery) ([]algo.BinValue, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	bins, err := algo.NewBins(q.Start, q.End, q.Width)
	if err != nil {
		return nil, err
	}
	samples := make([]algo.Sample, len(trips.trips))
	for i, t := range trips.trips {
		s := algo.Sample{Axis: q.Axis.Of(t)}
		switch q.Operator {
		case algo.OpSumRatio:
			s.Num = t.TotalTravelTime
			s.Den = q.Denominator.Of(t)
		case algo.OpCount:
		default:
			s.Value = q.Metric.Of(t)
		}
		samples[i] = s
	}
	return algo.Aggregate(samples, bins, q.Operator)
}
