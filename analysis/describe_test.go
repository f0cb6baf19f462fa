package analysis_test

import (
	"math"
	"testing"

	"github.com/eqasim-org/drt-analysis/analysis"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	d := analysis.Describe([]float64{4, 1, math.NaN(), 3, 2})
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 2.5, d.Mean)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 4.0, d.Max)
	assert.InDelta(t, math.Sqrt(5.0/3.0), d.Std, 1e-12)
	assert.Equal(t, 1.75, d.Percentile(0.25))
	assert.Equal(t, 2.5, d.Percentile(0.5))
	assert.True(t, math.IsNaN(d.Percentile(0.9)))
	assert.Contains(t, d.String(), "count=4 mean=2.500")
	assert.Contains(t, d.String(), "50%=2.500")
}

func TestDescribeSmallInputs(t *testing.T) {
	d := analysis.Describe(nil, 0.9)
	assert.Equal(t, 0, d.Count)
	assert.True(t, math.IsNaN(d.Mean))
	assert.True(t, math.IsNaN(d.Percentile(0.9)))

	d = analysis.Describe([]float64{7})
	assert.Equal(t, 7.0, d.Mean)
	assert.True(t, math.IsNaN(d.Std))
	assert.Equal(t, 7.0, d.Percentile(0.75))
}

func TestErrorMetrics(t *testing.T) {
	m := analysis.NewErrorMetrics([]float64{3, -4})
	assert.Equal(t, 12.5, m.MSE)
	assert.Equal(t, math.Sqrt(12.5), m.RMSE)
	assert.Equal(t, 3.5, m.MAE)

	m = analysis.NewErrorMetrics(nil)
	assert.True(t, math.IsNaN(m.MSE))
	assert.True(t, math.IsNaN(m.MAE))
}
