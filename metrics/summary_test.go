package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even averages middle pair", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.xs))
		})
	}
	assert.True(t, math.IsNaN(Median(nil)))
	assert.True(t, math.IsNaN(Median([]float64{1, math.NaN(), 2})))

	xs := []float64{3, 1, 2}
	Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs, "input must not be reordered")
}

func TestPopVariance(t *testing.T) {
	assert.InDelta(t, 1.25, PopVariance([]float64{1, 2, 3, 4}), 1e-12)
	assert.True(t, math.IsNaN(PopVariance(nil)))
	assert.True(t, math.IsNaN(PopVariance([]float64{1, math.NaN()})))
}
