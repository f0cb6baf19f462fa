package main

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 分析服务的Prometheus指标，使用独立的registry
type Collector struct {
	reg *prometheus.Registry

	Requests        *prometheus.CounterVec // procedure, code
	RequestDuration *prometheus.HistogramVec
	ZoneReloads     prometheus.Counter
	Zones           prometheus.Gauge
	Trips           prometheus.Gauge
	ImputedPoints   *prometheus.CounterVec // status
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drt_analysis_requests_total",
			Help: "Total analysis requests by procedure and result code.",
		}, []string{"procedure", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drt_analysis_request_duration_seconds",
			Help:    "Duration of analysis requests.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"procedure"}),
		ZoneReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drt_analysis_zone_reloads_total",
			Help: "Number of zone layer reloads.",
		}),
		Zones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drt_analysis_zones",
			Help: "Number of zones in the loaded layer.",
		}),
		Trips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drt_analysis_trips",
			Help: "Number of trips in the loaded trip table.",
		}),
		ImputedPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drt_analysis_imputed_points_total",
			Help: "Points imputed to zones by assignment status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		c.Requests, c.RequestDuration,
		c.ZoneReloads, c.Zones, c.Trips, c.ImputedPoints,
		prometheus.NewGoCollector(),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Observe 记录一次请求
func (c *Collector) Observe(procedure, code string, start time.Time) {
	c.Requests.WithLabelValues(procedure, code).Inc()
	c.RequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
}

// Interceptor 记录每个过程的请求数与耗时
func (c *Collector) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)
			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			c.Observe(req.Spec().Procedure, code, start)
			return res, err
		}
	}
}
