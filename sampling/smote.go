package sampling

import (
	"math/rand/v2"
	"sort"

	"github.com/ahmedalbuni/biorad/core/parallel"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// neighbourThreshold is the class size above which the neighbour search is
// split across goroutines.
const neighbourThreshold = 256

// SMOTE oversamples minority classes by interpolating between a sample and
// one of its K nearest same-class neighbours (Chawla et al., 2002).
type SMOTE struct {
	K    int
	Seed int64
}

// NewSMOTE creates a SMOTE balancer.
func NewSMOTE(k int, seed int64) *SMOTE {
	return &SMOTE{K: k, Seed: seed}
}

// Resample implements Balancer. Synthetic rows follow the original rows,
// grouped by ascending label.
func (s *SMOTE) Resample(X mat.Matrix, y []float64) (*mat.Dense, []float64, error) {
	if err := checkInput("SMOTE.Resample", X, y); err != nil {
		return nil, nil, err
	}
	if s.K < 1 {
		return nil, nil, errors.NewValidationError("k_neighbors", "must be at least 1", s.K)
	}
	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(s.Seed)))
	labels, groups := classIndex(y)
	target := majority(groups)

	var extra [][]float64
	var extraY []float64
	for _, label := range labels {
		idx := groups[label]
		need := target - len(idx)
		if need == 0 {
			continue
		}
		if len(idx) < 2 {
			return nil, nil, errors.NewValueError("SMOTE.Resample",
				"a minority class needs at least 2 samples to interpolate")
		}
		rows := make([][]float64, len(idx))
		for n, i := range idx {
			rows[n] = mat.Row(nil, i, X)
		}
		nn := nearestNeighbours(rows, min(s.K, len(rows)-1))
		for n := 0; n < need; n++ {
			a := rng.IntN(len(rows))
			b := nn[a][rng.IntN(len(nn[a]))]
			gap := rng.Float64()
			synth := make([]float64, len(rows[a]))
			floats.SubTo(synth, rows[b], rows[a])
			floats.Scale(gap, synth)
			floats.Add(synth, rows[a])
			extra = append(extra, synth)
			extraY = append(extraY, label)
		}
	}
	out, outY := appendRows(X, y, extra, extraY)
	return out, outY, nil
}

// nearestNeighbours returns, for every row, the indices of its k nearest
// other rows by Euclidean distance. Ties keep the lower index first.
func nearestNeighbours(rows [][]float64, k int) [][]int {
	nn := make([][]int, len(rows))
	parallel.ParallelizeWithThreshold(len(rows), neighbourThreshold, 0, func(start, end int) {
		order := make([]int, 0, len(rows)-1)
		dist := make([]float64, len(rows))
		for i := start; i < end; i++ {
			order = order[:0]
			for j := range rows {
				if j == i {
					continue
				}
				dist[j] = floats.Distance(rows[i], rows[j], 2)
				order = append(order, j)
			}
			sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
			nn[i] = append([]int(nil), order[:k]...)
		}
	})
	return nn
}
