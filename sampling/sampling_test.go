package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

func imbalanced() (*mat.Dense, []float64) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		0.5, 0.5,
		10, 10,
		11, 10,
		10, 11,
	})
	return X, []float64{0, 0, 0, 0, 0, 1, 1, 1}
}

func TestSMOTE(t *testing.T) {
	X, y := imbalanced()
	out, outY, err := NewSMOTE(5, 1).Resample(X, y)
	require.NoError(t, err)

	assert.Equal(t, map[float64]int{0: 5, 1: 5}, Counts(outY))
	r, c := out.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 2, c)
	assert.True(t, mat.Equal(X, out.Slice(0, 8, 0, 2)), "original rows come first")

	// synthetic minority rows lie inside the minority bounding box
	for i := 8; i < r; i++ {
		assert.Equal(t, 1.0, outY[i])
		for j := 0; j < c; j++ {
			assert.GreaterOrEqual(t, out.At(i, j), 10.0)
			assert.LessOrEqual(t, out.At(i, j), 11.0)
		}
	}
}

func TestSMOTEDeterministic(t *testing.T) {
	X, y := imbalanced()
	a, _, err := NewSMOTE(2, 9).Resample(X, y)
	require.NoError(t, err)
	b, _, err := NewSMOTE(2, 9).Resample(X, y)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestSMOTEErrors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	_, _, err := NewSMOTE(5, 0).Resample(X, []float64{0, 0, 1})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, _, err = NewSMOTE(0, 0).Resample(X, []float64{0, 1, 1})
	assert.Error(t, err)

	_, _, err = NewSMOTE(1, 0).Resample(X, []float64{0, 1})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestNearestNeighbours(t *testing.T) {
	rows := [][]float64{{0}, {1}, {3}, {7}}
	nn := nearestNeighbours(rows, 2)
	assert.Equal(t, [][]int{{1, 2}, {0, 2}, {1, 0}, {2, 1}}, nn)
}

func TestRandomOverSampler(t *testing.T) {
	X, y := imbalanced()
	out, outY, err := RandomOverSampler{Seed: 3}.Resample(X, y)
	require.NoError(t, err)
	assert.Equal(t, map[float64]int{0: 5, 1: 5}, Counts(outY))

	r, _ := out.Dims()
	for i := 8; i < r; i++ {
		row := mat.Row(nil, i, out)
		found := false
		for j := 5; j < 8; j++ {
			if mat.Equal(mat.NewVecDense(2, row), X.RowView(j)) {
				found = true
			}
		}
		assert.True(t, found, "row %d must duplicate a minority row", i)
	}
}

func TestNew(t *testing.T) {
	b, err := New("none", 0)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = New("smote", 1)
	require.NoError(t, err)
	assert.IsType(t, &SMOTE{}, b)

	_, err = New("adasyn", 1)
	assert.Error(t, err)
}
