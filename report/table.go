package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/eqasim-org/drt-analysis/analysis/algo"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "report")

// 一次分析运行，结果以ID归档
type Run struct {
	ID        string
	Mode      string
	Source    string
	CreatedAt time.Time
}

func NewRun(mode, source string) Run {
	return Run{
		ID:        uuid.New().String(),
		Mode:      mode,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// 结果表，所有单元格已格式化为字符串
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

func (t Table) Len() int {
	return len(t.Rows)
}

// FormatFloat 最短表示，NaN输出为"NaN"
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV 以delimiter分隔输出表
func WriteCSV(w io.Writer, t Table, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write table %s: %w", t.Name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write table %s: %w", t.Name, err)
	}
	return nil
}

func AssignmentsTable(as []analysis.Assignment) Table {
	return Table{
		Name:   "assignments",
		Header: []string{"point_id", "zone_id", "status"},
		Rows: lo.Map(as, func(a analysis.Assignment, _ int) []string {
			return []string{a.PointID, a.ZoneID, a.Status.String()}
		}),
	}
}

// SeriesTable 分箱结果，时间轴额外输出小时制中点
func SeriesTable(name string, axis analysis.Axis, values []algo.BinValue) Table {
	header := []string{"lo", "hi", "mid", "value", "count"}
	if axis == analysis.AxisTime {
		header = append(header, "mid_hour")
	}
	return Table{
		Name:   name,
		Header: header,
		Rows: lo.Map(values, func(v algo.BinValue, _ int) []string {
			row := []string{FormatFloat(v.Lo), FormatFloat(v.Hi), FormatFloat(v.Mid()), FormatFloat(v.Value), strconv.Itoa(v.Count)}
			if axis == analysis.AxisTime {
				row = append(row, FormatFloat(v.Mid()/algo.SECONDS_PER_HOUR))
			}
			return row
		}),
	}
}

func ZonalTable(name string, metrics []analysis.Metric, zones []analysis.ZoneMetrics) Table {
	header := append([]string{"zone_id", "trips"}, lo.Map(metrics, func(m analysis.Metric, _ int) string {
		return "mean_" + string(m)
	})...)
	return Table{
		Name:   name,
		Header: header,
		Rows: lo.Map(zones, func(z analysis.ZoneMetrics, _ int) []string {
			row := []string{z.ZoneID, strconv.Itoa(z.Trips)}
			for _, m := range metrics {
				row = append(row, FormatFloat(z.Means[m]))
			}
			return row
		}),
	}
}

func ODTable(cells []analysis.ODCell) Table {
	return Table{
		Name: "od_delay_factors",
		Header: []string{"origin", "destination", "trips",
			"mean_delay_factor", "mean_delay_factor_estimated",
			"ratio_delay_factor", "ratio_delay_factor_estimated"},
		Rows: lo.Map(cells, func(c analysis.ODCell, _ int) []string {
			return []string{c.Origin, c.Destination, strconv.Itoa(c.Trips),
				FormatFloat(c.MeanDelayFactor), FormatFloat(c.MeanDelayFactorEstimated),
				FormatFloat(c.RatioDelayFactor), FormatFloat(c.RatioDelayFactorEstimated)}
		}),
	}
}

func ZonesTable(layer *analysis.ZoneLayer) Table {
	return Table{
		Name:   "zones",
		Header: []string{"zone_id", "name", "centroid_x", "centroid_y"},
		Rows: lo.Map(layer.Zones(), func(z analysis.Zone, _ int) []string {
			c, _ := layer.Centroid(z.ID)
			return []string{z.ID, z.Name, FormatFloat(c.X()), FormatFloat(c.Y())}
		}),
	}
}

func RunsTable(runs []analysis.RunStats) Table {
	return Table{
		Name: "runs",
		Header: []string{"fleet_size", "iteration", "requests",
			"mean_wait_time", "q90_wait_time", "mean_travel_time", "q90_travel_time", "mean_delay_factor"},
		Rows: lo.Map(runs, func(r analysis.RunStats, _ int) []string {
			return []string{strconv.Itoa(r.FleetSize), strconv.Itoa(r.Iteration), strconv.Itoa(r.Requests),
				FormatFloat(r.MeanWaitTime), FormatFloat(r.Q90WaitTime),
				FormatFloat(r.MeanTravelTime), FormatFloat(r.Q90TravelTime), FormatFloat(r.MeanDelayFactor)}
		}),
	}
}

// SeriesColumnsTable 多条等长序列按列输出，例如收敛曲线
func SeriesColumnsTable(name string, index []int, columns map[string][]float64, order []string) Table {
	t := Table{Name: name, Header: append([]string{"index"}, order...)}
	for i, idx := range index {
		row := []string{strconv.Itoa(idx)}
		for _, c := range order {
			row = append(row, FormatFloat(columns[c][i]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// DescriptionsTable 每个描述性统计一行，分位数列取第一个描述的分位点
func DescriptionsTable(name string, labels []string, ds []analysis.Description) Table {
	header := []string{"name", "count", "mean", "std", "min"}
	if len(ds) > 0 {
		for _, p := range ds[0].Percentiles {
			header = append(header, FormatFloat(p.Q*100)+"%")
		}
	}
	header = append(header, "max")
	t := Table{Name: name, Header: header}
	for i, d := range ds {
		row := []string{labels[i], strconv.Itoa(d.Count), FormatFloat(d.Mean), FormatFloat(d.Std), FormatFloat(d.Min)}
		for _, p := range d.Percentiles {
			row = append(row, FormatFloat(p.Value))
		}
		row = append(row, FormatFloat(d.Max))
		t.Rows = append(t.Rows, row)
	}
	return t
}

func PredictionTable(r *analysis.PredictionReport) Table {
	t := DescriptionsTable("prediction_errors", []string{"wait_time_min", "travel_time_min"},
		[]analysis.Description{r.WaitErrors, r.TravelErrors})
	t.Header = append(t.Header, "mse", "rmse", "mae")
	for i, m := range []analysis.ErrorMetrics{r.WaitAccuracy, r.TravelAccuracy} {
		t.Rows[i] = append(t.Rows[i], FormatFloat(m.MSE), FormatFloat(m.RMSE), FormatFloat(m.MAE))
	}
	return t
}

func ModeShareTable(shares []analysis.ModeShare) Table {
	var modes []string
	if len(shares) > 0 {
		modes = lo.Keys(shares[0].Shares)
	}
	sort.Strings(modes)
	t := Table{Name: "mode_share", Header: append([]string{"lo", "hi", "total"}, modes...)}
	for _, s := range shares {
		row := []string{FormatFloat(s.Lo), FormatFloat(s.Hi), FormatFloat(s.Total)}
		for _, m := range modes {
			row = append(row, FormatFloat(s.Shares[m]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func DifferencesTable(name string, diffs []analysis.UnsharedTimeDifference) Table {
	return Table{
		Name: name,
		Header: []string{"trip_id", "start_time", "total_travel_time", "router_unshared_time",
			"estimated_unshared_time", "delay_factor", "delay_factor_estimated",
			"abs_difference", "abs_difference_min", "rel_difference"},
		Rows: lo.Map(diffs, func(d analysis.UnsharedTimeDifference, _ int) []string {
			t := d.Trip
			return []string{t.ID, FormatFloat(t.StartTime), FormatFloat(t.TotalTravelTime),
				FormatFloat(t.RouterUnsharedTime), FormatFloat(t.EstimatedUnsharedTime),
				FormatFloat(t.DelayFactor), FormatFloat(t.DelayFactorEstimated()),
				FormatFloat(d.AbsSeconds), FormatFloat(d.AbsMinutes), FormatFloat(d.Relative)}
		}),
	}
}

// ZoneSeriesTable 区域 × 分箱，每个区域每个分箱一行
func ZoneSeriesTable(name string, series []analysis.ZoneSeries) Table {
	t := Table{Name: name, Header: []string{"zone_id", "lo", "hi", "mid", "value", "count"}}
	for _, s := range series {
		for _, v := range s.Values {
			t.Rows = append(t.Rows, []string{s.ZoneID, FormatFloat(v.Lo), FormatFloat(v.Hi),
				FormatFloat(v.Mid()), FormatFloat(v.Value), strconv.Itoa(v.Count)})
		}
	}
	return t
}

func VehiclesTable(s analysis.VehicleStats) Table {
	return Table{
		Name:   "vehicles",
		Header: []string{"vehicles", "total_km", "empty_km", "empty_share_pct", "mean_km_per_vehicle", "max_km_per_vehicle"},
		Rows: [][]string{{strconv.Itoa(s.Vehicles), FormatFloat(s.TotalKm), FormatFloat(s.EmptyKm),
			FormatFloat(s.EmptySharePct), FormatFloat(s.MeanKmPerVehicle), FormatFloat(s.MaxKmPerVehicle)}},
	}
}

// FleetTable 每个车队规模一行
func FleetTable(fleets []analysis.FleetStats) Table {
	return Table{
		Name: "fleets",
		Header: []string{"fleet_size", "iteration", "requests", "cost_per_km",
			"mean_wait_time", "q90_wait_time", "mean_travel_time", "q90_travel_time"},
		Rows: lo.Map(fleets, func(f analysis.FleetStats, _ int) []string {
			return []string{strconv.Itoa(f.FleetSize), strconv.Itoa(f.Iteration), strconv.Itoa(f.Requests),
				FormatFloat(f.CostPerKm), FormatFloat(f.MeanWaitTime), FormatFloat(f.Q90WaitTime),
				FormatFloat(f.MeanTravelTime), FormatFloat(f.Q90TravelTime)}
		}),
	}
}

// OccupancyTable 每个时刻一行，每个状态一列
func OccupancyTable(p *analysis.OccupancyProfile) Table {
	t := Table{Name: "occupancy", Header: append([]string{"time", "hour"}, p.States...)}
	for _, s := range p.Samples {
		row := []string{FormatFloat(s.Time), FormatFloat(s.Time / algo.SECONDS_PER_HOUR)}
		for _, c := range s.Counts {
			row = append(row, FormatFloat(c))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// OccupancyMeansTable 每个状态在时段内的平均车辆数
func OccupancyMeansTable(p *analysis.OccupancyProfile) Table {
	means := p.MeanCounts()
	return Table{
		Name:   "occupancy_mean",
		Header: []string{"state", "mean_vehicles"},
		Rows: lo.Map(p.States, func(s string, i int) []string {
			return []string{s, FormatFloat(means[i])}
		}),
	}
}
