package experiment

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/pipeline"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

func init() {
	errors.SetWarningHandler(func(error) {})
}

// dataset returns n samples with f features and balanced binary labels;
// the first two features carry the signal.
func dataset(n, f int, seed uint64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, f, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = float64(i % 2)
		for j := 0; j < f; j++ {
			v := rng.NormFloat64()
			if j < 2 {
				v += 1.5 * y[i]
			}
			X.Set(i, j, v)
		}
	}
	return X, y
}

func entry(t *testing.T, selector, classifier string, nFeatures int) pipeline.Entry {
	t.Helper()
	e, err := pipeline.Build(selector, classifier, pipeline.CatalogueOptions{NumFeatures: nFeatures, Seed: 1})
	require.NoError(t, err)
	return e
}
