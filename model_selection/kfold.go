// Package model_selection implements cross-validated hyperparameter search:
// stratified folds, the per-configuration objective, the trial ledger and a
// Tree-structured Parzen Estimator driving the search.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// Fold represents a single fold in cross-validation
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// StratifiedKFold implements stratified k-fold cross-validation
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) *StratifiedKFold {
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold.
//
// Classes are visited in ascending label order. Each class is shuffled with
// PCG(seed) when Shuffle is set and dealt into folds in contiguous blocks
// whose sizes differ by at most one; the fold receiving a class's extra
// sample rotates so fold sizes stay balanced. Indices are sorted ascending
// within every fold.
func (skf *StratifiedKFold) Split(y []float64) ([]Fold, error) {
	nSamples := len(y)
	if skf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", skf.NSplits)
	}
	if nSamples < skf.NSplits {
		return nil, errors.NewValidationError("n_splits", "cannot exceed the number of samples", skf.NSplits)
	}

	classIndices := make(map[float64][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
	}

	testSets := make([][]int, skf.NSplits)
	offset := 0
	for _, label := range labels {
		indices := classIndices[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		current := 0
		for k := 0; k < skf.NSplits; k++ {
			fold := (offset + k) % skf.NSplits
			testSize := foldSize
			if k < remainder {
				testSize++
			}
			testSets[fold] = append(testSets[fold], indices[current:current+testSize]...)
			current += testSize
		}
		offset = (offset + remainder) % skf.NSplits
	}

	folds := make([]Fold, skf.NSplits)
	for k, test := range testSets {
		sort.Ints(test)
		train := make([]int, 0, nSamples-len(test))
		t := 0
		for i := 0; i < nSamples; i++ {
			if t < len(test) && test[t] == i {
				t++
				continue
			}
			train = append(train, i)
		}
		folds[k] = Fold{TrainIndices: train, TestIndices: test}
	}
	return folds, nil
}
