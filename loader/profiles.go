package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/samber/lo"
)

// ReadCosts 读取每次迭代的距离票价
func ReadCosts(r io.Reader, source string, delimiter rune) ([]analysis.FareRecord, error) {
	t, err := readTable(r, delimiter, source)
	if err != nil {
		return nil, err
	}
	if err := t.compactNames(); err != nil {
		return nil, err
	}
	cr := &columnReader{t: t}
	iterations := cr.ints(COST_COLUMNS.Iteration, true)
	costs := cr.floats(COST_COLUMNS.CostPerKm, true)
	if cr.err != nil {
		return nil, cr.err
	}
	out := make([]analysis.FareRecord, t.rows())
	for i := range out {
		out[i] = analysis.FareRecord{Iteration: iterations[i], CostPerKm: costs[i]}
	}
	return out, nil
}

func ReadCostsFile(path string, delimiter rune) ([]analysis.FareRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open costs: %w", err)
	}
	defer f.Close()
	return ReadCosts(f, path, delimiter)
}

// ReadOccupancy 读取制表符分隔的占用剖面，时刻为HH:MM
func ReadOccupancy(r io.Reader, source string) (*analysis.OccupancyProfile, error) {
	t, err := readTable(r, '\t', source)
	if err != nil {
		return nil, err
	}
	cr := &columnReader{t: t}
	times := cr.strings(OCCUPANCY_TIME_COLUMN, true)
	states := lo.Without(t.df.Names(), OCCUPANCY_TIME_COLUMN)
	counts := lo.Map(states, func(s string, _ int) []float64 { return cr.floats(s, true) })
	if cr.err != nil {
		return nil, cr.err
	}
	samples := make([]analysis.OccupancySample, t.rows())
	for i := range samples {
		sec, err := analysis.ParseClock(times[i])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", source, i+1, err)
		}
		samples[i] = analysis.OccupancySample{
			Time:   sec,
			Counts: lo.Map(counts, func(c []float64, _ int) float64 { return c[i] }),
		}
	}
	log.Debugf("read occupancy profile with %d states and %d samples from %s", len(states), len(samples), source)
	return analysis.NewOccupancyProfile(states, samples)
}

func ReadOccupancyFile(path string) (*analysis.OccupancyProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open occupancy: %w", err)
	}
	defer f.Close()
	return ReadOccupancy(f, path)
}
