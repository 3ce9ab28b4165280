// Package sampling balances class counts of a labelled dataset before model
// selection. Every sampler is seeded and deterministic.
package sampling

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Balancer resamples (X, y) so that every class has as many rows as the
// majority class. The input is not modified.
type Balancer interface {
	Resample(X mat.Matrix, y []float64) (*mat.Dense, []float64, error)
}

// classIndex groups row indices by label, labels ascending.
func classIndex(y []float64) ([]float64, map[float64][]int) {
	groups := make(map[float64][]int)
	for i, label := range y {
		groups[label] = append(groups[label], i)
	}
	labels := make([]float64, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Float64s(labels)
	return labels, groups
}

func checkInput(op string, X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if len(y) != r {
		return errors.NewDimensionError(op, r, len(y), 0)
	}
	return nil
}

// appendRows returns X with extra rows appended.
func appendRows(X mat.Matrix, y []float64, extra [][]float64, extraY []float64) (*mat.Dense, []float64) {
	r, c := X.Dims()
	out := mat.NewDense(r+len(extra), c, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(X)
	for k, row := range extra {
		out.SetRow(r+k, row)
	}
	return out, append(append(make([]float64, 0, r+len(extra)), y...), extraY...)
}

// Counts returns the number of rows per label.
func Counts(y []float64) map[float64]int {
	counts := make(map[float64]int)
	for _, label := range y {
		counts[label]++
	}
	return counts
}

// RandomOverSampler duplicates randomly chosen minority rows.
type RandomOverSampler struct {
	Seed int64
}

// Resample implements Balancer.
func (o RandomOverSampler) Resample(X mat.Matrix, y []float64) (*mat.Dense, []float64, error) {
	if err := checkInput("RandomOverSampler.Resample", X, y); err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewPCG(uint64(o.Seed), uint64(o.Seed)))
	labels, groups := classIndex(y)
	target := majority(groups)

	var extra [][]float64
	var extraY []float64
	for _, label := range labels {
		idx := groups[label]
		for n := len(idx); n < target; n++ {
			extra = append(extra, mat.Row(nil, idx[rng.IntN(len(idx))], X))
			extraY = append(extraY, label)
		}
	}
	out, outY := appendRows(X, y, extra, extraY)
	return out, outY, nil
}

func majority(groups map[float64][]int) int {
	target := 0
	for _, idx := range groups {
		target = max(target, len(idx))
	}
	return target
}

// New returns the balancer registered under name: "smote", "oversample" or
// "none" (nil Balancer).
func New(name string, seed int64) (Balancer, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "smote":
		return NewSMOTE(5, seed), nil
	case "oversample":
		return RandomOverSampler{Seed: seed}, nil
	default:
		return nil, errors.NewValidationError("balancing", fmt.Sprintf("unknown balancer %q", name), name)
	}
}
