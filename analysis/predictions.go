package analysis

import (
	"fmt"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
)

// 模式选择时对一次DRT出行的预测，时间单位为分钟
type Prediction struct {
	PersonID         string
	TripIndex        int
	TravelTimeMin    float64
	AccessEgressMin  float64
	Cost             float64
	WaitingTimeMin   float64
	TravelDistanceKm float64
	MaxTravelTimeMin float64
	DirectRideMin    float64
}

type tripKey struct {
	person string
	index  int
}

// 预测与实际的匹配对，误差 = 实际 - 预测（分钟）
type PredictionPair struct {
	Prediction  Prediction
	Trip        Trip
	WaitError   float64
	TravelError float64
}

// 预测精度评价
type PredictionReport struct {
	Matched        int
	UnmatchedTrips int
	UnmatchedPreds int
	WaitErrors     Description
	WaitAccuracy   ErrorMetrics
	TravelErrors   Description
	TravelAccuracy ErrorMetrics
	Pairs          []PredictionPair
}

// EvaluatePredictions 以(person_id, trip_index)一对一连接预测与出行统计
// 任一侧主键重复时返回ErrSchema
func EvaluatePredictions(predictions []Prediction, trips *TripTable) (*PredictionReport, error) {
	preds := make(map[tripKey]Prediction, len(predictions))
	for _, p := range predictions {
		k := tripKey{p.PersonID, p.TripIndex}
		if _, ok := preds[k]; ok {
			return nil, fmt.Errorf("%w: duplicate prediction for person %q trip %d", algo.ErrSchema, p.PersonID, p.TripIndex)
		}
		preds[k] = p
	}
	seen := make(map[tripKey]struct{}, trips.Len())
	r := &PredictionReport{}
	var waitErrs, travelErrs []float64
	for _, t := range trips.trips {
		k := tripKey{t.PersonID, t.TripIndex}
		if _, ok := seen[k]; ok {
			return nil, fmt.Errorf("%w: duplicate trip stats for person %q trip %d", algo.ErrSchema, t.PersonID, t.TripIndex)
		}
		seen[k] = struct{}{}
		p, ok := preds[k]
		if !ok {
			r.UnmatchedTrips++
			continue
		}
		pair := PredictionPair{
			Prediction:  p,
			Trip:        t,
			WaitError:   t.WaitTime/algo.SECONDS_PER_MINUTE - p.WaitingTimeMin,
			TravelError: t.TotalTravelTime/algo.SECONDS_PER_MINUTE - p.TravelTimeMin,
		}
		r.Pairs = append(r.Pairs, pair)
		waitErrs = append(waitErrs, pair.WaitError)
		travelErrs = append(travelErrs, pair.TravelError)
	}
	r.Matched = len(r.Pairs)
	r.UnmatchedPreds = len(preds) - r.Matched
	if r.UnmatchedTrips > 0 || r.UnmatchedPreds > 0 {
		log.Warnf("predictions join: %d matched, %d trips and %d predictions without a partner",
			r.Matched, r.UnmatchedTrips, r.UnmatchedPreds)
	}
	r.WaitErrors = Describe(waitErrs)
	r.WaitAccuracy = NewErrorMetrics(waitErrs)
	r.TravelErrors = Describe(travelErrs)
	r.TravelAccuracy = NewErrorMetrics(travelErrs)
	return r, nil
}
