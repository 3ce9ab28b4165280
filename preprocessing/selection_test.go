package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

func TestVarianceThreshold(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		0, 1, 5,
		0, 2, 5,
		0, 3, 5,
		0, 4, 6,
	})

	tests := []struct {
		name      string
		threshold float64
		support   []int
		wantErr   bool
	}{
		{"drops constants", 0, []int{1, 2}, false},
		{"drops low variance", 0.5, []int{1}, false},
		{"drops everything", 10, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewVarianceThreshold(tt.threshold)
			out, err := model.FitTransform(sel, X, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.support, sel.Support())
			_, c := out.Dims()
			assert.Equal(t, len(tt.support), c)
		})
	}
}

func TestFisherScore(t *testing.T) {
	// feature 0 separates the classes, feature 1 is noise, feature 2 is constant
	X := mat.NewDense(6, 3, []float64{
		0.0, 1, 7,
		0.1, 3, 7,
		0.2, 2, 7,
		1.0, 2, 7,
		1.1, 1, 7,
		1.2, 3, 7,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	sel := NewFisherScore(1)
	out, err := model.FitTransform(sel, X, y)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, sel.Support())
	assert.Equal(t, 0.0, sel.Scores[1])
	assert.Equal(t, 0.0, sel.Scores[2])
	assert.False(t, math.IsNaN(sel.Scores[0]))
	assert.Equal(t, 1.1, out.At(4, 0))

	require.NoError(t, sel.SetParams(map[string]interface{}{"k": 10.0}))
	out, err = model.FitTransform(sel, X, y)
	require.NoError(t, err)
	_, c := out.Dims()
	assert.Equal(t, 3, c, "k larger than the feature count keeps everything")
}

func TestFisherScoreErrors(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, 2})

	err := NewFisherScore(1).Fit(X, nil)
	assert.Error(t, err)

	err = NewFisherScore(0).Fit(X, mat.NewDense(2, 1, []float64{0, 1}))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = NewFisherScore(1).SetParams(map[string]interface{}{"k": 1.5})
	assert.True(t, errors.As(err, &ve))

	err = NewFisherScore(1).SetParams(map[string]interface{}{"alpha": 1})
	assert.True(t, errors.As(err, &ve))
}
