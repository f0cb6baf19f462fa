package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "analysis")

// 一次完成的DRT出行
type Trip struct {
	ID        string
	PersonID  string
	TripIndex int
	Mode      string
	Weight    float64 // 加权统计用，读取时权重列缺失则为1

	StartTime   float64 // 当日零点起的秒数
	ArrivalTime float64

	Origin      orb.Point
	Destination orb.Point

	WaitTime              float64
	TotalTravelTime       float64
	RouterUnsharedTime    float64
	EstimatedUnsharedTime float64
	DelayFactor           float64
}

func (t Trip) EuclideanDistance() float64 {
	return algo.EuclideanDistance(t.Origin, t.Destination)
}

// 以DRT内部估计的直达时间计算的延误系数
func (t Trip) DelayFactorEstimated() float64 {
	return t.TotalTravelTime / t.EstimatedUnsharedTime
}

// 出行记录上可聚合的指标
type Metric string

const (
	MetricStartTime             Metric = "start_time"
	MetricWaitTime              Metric = "wait_time"
	MetricTotalTravelTime       Metric = "total_travel_time"
	MetricRouterUnsharedTime    Metric = "router_unshared_time"
	MetricEstimatedUnsharedTime Metric = "estimated_unshared_time"
	MetricDelayFactor           Metric = "delay_factor"
	MetricDelayFactorEstimated  Metric = "delay_factor_estimated"
	MetricEuclideanDistance     Metric = "euclidean_distance"
)

var metricGetters = map[Metric]func(Trip) float64{
	MetricStartTime:             func(t Trip) float64 { return t.StartTime },
	MetricWaitTime:              func(t Trip) float64 { return t.WaitTime },
	MetricTotalTravelTime:       func(t Trip) float64 { return t.TotalTravelTime },
	MetricRouterUnsharedTime:    func(t Trip) float64 { return t.RouterUnsharedTime },
	MetricEstimatedUnsharedTime: func(t Trip) float64 { return t.EstimatedUnsharedTime },
	MetricDelayFactor:           func(t Trip) float64 { return t.DelayFactor },
	MetricDelayFactorEstimated:  Trip.DelayFactorEstimated,
	MetricEuclideanDistance:     Trip.EuclideanDistance,
}

func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricGetters[m]; !ok {
		return "", fmt.Errorf("%w: unknown metric %q", algo.ErrConfig, s)
	}
	return m, nil
}

// Of 取出t的指标值
func (m Metric) Of(t Trip) float64 {
	return metricGetters[m](t)
}

// 时间类指标在展示时换算为分钟
func (m Metric) IsTime() bool {
	return strings.HasSuffix(string(m), "_time")
}

// TripTable 一次迭代的出行表，创建后不可变
type TripTable struct {
	CRS   string
	trips []Trip
}

// NewTripTable 校验trip编号唯一；编号为空时按1..n顺序补齐
func NewTripTable(crs string, trips []Trip) (*TripTable, error) {
	out := make([]Trip, len(trips))
	copy(out, trips)
	seen := make(map[string]struct{}, len(out))
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = strconv.Itoa(i + 1)
		}
		if _, ok := seen[out[i].ID]; ok {
			return nil, fmt.Errorf("%w: duplicate trip id %q", algo.ErrSchema, out[i].ID)
		}
		seen[out[i].ID] = struct{}{}
	}
	return &TripTable{CRS: crs, trips: out}, nil
}

func (t *TripTable) Len() int {
	return len(t.trips)
}

// Trips 返回副本，调用方修改不会影响表
func (t *TripTable) Trips() []Trip {
	out := make([]Trip, len(t.trips))
	copy(out, t.trips)
	return out
}

// Filter 返回满足条件的新表
func (t *TripTable) Filter(keep func(Trip) bool) *TripTable {
	return &TripTable{
		CRS:   t.CRS,
		trips: lo.Filter(t.trips, func(trip Trip, _ int) bool { return keep(trip) }),
	}
}

// NonZero 过滤指标为0的出行（例如路由直达时间为0）
func NonZero(m Metric) func(Trip) bool {
	return func(t Trip) bool {
		return m.Of(t) != 0
	}
}

func (t *TripTable) Values(m Metric) []float64 {
	return lo.Map(t.trips, func(trip Trip, _ int) float64 { return m.Of(trip) })
}

// 出行端点
type Endpoint int

const (
	Origin Endpoint = iota
	Destination
)

func (e Endpoint) String() string {
	if e == Destination {
		return "destination"
	}
	return "origin"
}

// Points 以trip编号为主键的起点或终点
func (t *TripTable) Points(e Endpoint) []PointRecord {
	return lo.Map(t.trips, func(trip Trip, _ int) PointRecord {
		p := trip.Origin
		if e == Destination {
			p = trip.Destination
		}
		return PointRecord{ID: trip.ID, Point: p}
	})
}
