package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median of xs, averaging the middle pair for an even
// length. It is NaN when xs is empty or contains NaN.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	for _, v := range sorted {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// PopVariance returns the population variance of xs (divisor n). It is NaN
// when xs is empty or contains NaN.
func PopVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	_, v := stat.PopMeanVariance(xs, nil)
	return v
}
