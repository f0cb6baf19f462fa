package loader

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/paulmach/orb"
)

type TableOptions struct {
	Delimiter rune
	Columns   TripColumns
}

// ReadTrips 读取出行统计表，坐标与出发时刻列必须存在
func ReadTrips(r io.Reader, source string, opts TableOptions) ([]analysis.Trip, error) {
	t, err := readTable(r, opts.Delimiter, source)
	if err != nil {
		return nil, err
	}
	c := opts.Columns.withDefaults()
	cr := &columnReader{t: t}
	ids := cr.strings(c.ID, false)
	persons := cr.strings(c.PersonID, false)
	modes := cr.strings(c.Mode, false)
	indexes := cr.ints(c.TripIndex, false)
	weight := cr.floats(c.Weight, false)
	start := cr.floats(c.StartTime, true)
	arrival := cr.floats(c.ArrivalTime, false)
	total := cr.floats(c.TotalTravelTime, false)
	router := cr.floats(c.RouterUnsharedTime, false)
	estimated := cr.floats(c.EstimatedUnsharedTime, false)
	delay := cr.floats(c.DelayFactor, false)
	wait := cr.floats(c.WaitTime, false)
	sx := cr.floats(c.StartX, true)
	sy := cr.floats(c.StartY, true)
	ex := cr.floats(c.EndX, true)
	ey := cr.floats(c.EndY, true)
	if cr.err != nil {
		return nil, cr.err
	}
	at := func(values []string, i int) string {
		if values == nil {
			return ""
		}
		return values[i]
	}
	trips := make([]analysis.Trip, t.rows())
	for i := range trips {
		trips[i] = analysis.Trip{
			ID:                    at(ids, i),
			PersonID:              at(persons, i),
			TripIndex:             indexes[i],
			Mode:                  at(modes, i),
			StartTime:             start[i],
			ArrivalTime:           arrival[i],
			Origin:                orb.Point{sx[i], sy[i]},
			Destination:           orb.Point{ex[i], ey[i]},
			WaitTime:              wait[i],
			TotalTravelTime:       total[i],
			RouterUnsharedTime:    router[i],
			EstimatedUnsharedTime: estimated[i],
			DelayFactor:           delay[i],
			Weight:                1,
		}
		// 权重列存在时0也是有效权重，只有空单元格按1计
		if !math.IsNaN(weight[i]) {
			trips[i].Weight = weight[i]
		}
	}
	return trips, nil
}

func ReadTripsFile(path string, opts TableOptions) ([]analysis.Trip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trips: %w", err)
	}
	defer f.Close()
	return ReadTrips(f, path, opts)
}

// ReadPredictions 读取模式选择阶段的DRT预测表
func ReadPredictions(r io.Reader, source string, delimiter rune) ([]analysis.Prediction, error) {
	t, err := readTable(r, delimiter, source)
	if err != nil {
		return nil, err
	}
	c := PREDICTION_COLUMNS
	cr := &columnReader{t: t}
	persons := cr.strings(c.PersonID, true)
	indexes := cr.ints(c.TripIndex, true)
	travel := cr.floats(c.TravelTime, true)
	accessEgress := cr.floats(c.AccessEgressTime, false)
	cost := cr.floats(c.Cost, false)
	waiting := cr.floats(c.WaitingTime, true)
	distance := cr.floats(c.TravelDistance, false)
	maxTravel := cr.floats(c.MaxTravelTime, false)
	direct := cr.floats(c.DirectRideTime, false)
	if cr.err != nil {
		return nil, cr.err
	}
	out := make([]analysis.Prediction, t.rows())
	for i := range out {
		out[i] = analysis.Prediction{
			PersonID:         persons[i],
			TripIndex:        indexes[i],
			TravelTimeMin:    travel[i],
			AccessEgressMin:  accessEgress[i],
			Cost:             cost[i],
			WaitingTimeMin:   waiting[i],
			TravelDistanceKm: distance[i],
			MaxTravelTimeMin: maxTravel[i],
			DirectRideMin:    direct[i],
		}
	}
	return out, nil
}

func ReadPredictionsFile(path string, delimiter rune) ([]analysis.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer f.Close()
	return ReadPredictions(f, path, delimiter)
}

// ReadVehicles 读取车辆里程表
func ReadVehicles(r io.Reader, source string, delimiter rune) ([]analysis.VehicleRecord, error) {
	t, err := readTable(r, delimiter, source)
	if err != nil {
		return nil, err
	}
	c := VEHICLE_COLUMNS
	cr := &columnReader{t: t}
	ids := cr.strings(c.ID, false)
	driven := cr.floats(c.Distance, true)
	empty := cr.floats(c.EmptyDistance, true)
	if cr.err != nil {
		return nil, cr.err
	}
	out := make([]analysis.VehicleRecord, t.rows())
	for i := range out {
		out[i] = analysis.VehicleRecord{Distance: driven[i], EmptyDistance: empty[i]}
		if ids != nil {
			out[i].ID = ids[i]
		}
	}
	return out, nil
}

func ReadVehiclesFile(path string, delimiter rune) ([]analysis.VehicleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vehicles: %w", err)
	}
	defer f.Close()
	return ReadVehicles(f, path, delimiter)
}
