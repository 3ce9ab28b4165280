package bbc

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
)

func init() {
	errors.SetWarningHandler(func(error) {})
}

// pooled builds n × len(accuracies) matrices where column j predicts the
// balanced binary ground truth correctly with probability accuracies[j].
func pooled(n int, accuracies []float64, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	yTrue := mat.NewDense(n, len(accuracies), nil)
	yPred := mat.NewDense(n, len(accuracies), nil)
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		for j, acc := range accuracies {
			yTrue.Set(i, j, label)
			pred := label
			if rng.Float64() > acc {
				pred = 1 - label
			}
			yPred.Set(i, j, pred)
		}
	}
	return yTrue, yPred
}

func newBBC(t *testing.T, opts ...Option) *BootstrapBiasCorrection {
	t.Helper()
	opts = append([]Option{WithLogger(log.Nop()), WithScoreFunc(metrics.Accuracy)}, opts...)
	b, err := New(opts...)
	require.NoError(t, err)
	return b
}

func TestOOBSampler(t *testing.T) {
	s := NewOOBSampler(10, 3)
	for r := 0; r < s.Rounds; r++ {
		split := s.Round(r, 50)
		require.Len(t, split.InBag, 50)

		inBag := make(map[int]bool)
		for _, i := range split.InBag {
			assert.True(t, i >= 0 && i < 50)
			inBag[i] = true
		}
		assert.Equal(t, 50, len(inBag)+len(split.OutOfBag))
		assert.IsIncreasing(t, split.OutOfBag)
		for _, i := range split.OutOfBag {
			assert.False(t, inBag[i])
		}
	}
	assert.Equal(t, s.Round(4, 50), NewOOBSampler(10, 3).Round(4, 50))
	assert.NotEqual(t, s.Round(4, 50), s.Round(5, 50))
}

func TestCriterion(t *testing.T) {
	nan := math.NaN()
	yTrue := mat.NewDense(4, 3, []float64{
		0, 0, 0,
		1, 1, 1,
		0, 0, 0,
		1, 1, 1,
	})
	tests := []struct {
		name    string
		yPred   []float64
		want    int
		wantErr bool
	}{
		{"best column", []float64{
			0, 1, 0,
			0, 1, 1,
			0, 1, 0,
			0, 1, 1,
		}, 2, false},
		{"earliest tie", []float64{
			0, 0, 0,
			1, 1, 1,
			0, 0, 0,
			1, 1, 1,
		}, 0, false},
		{"ignores NaN column", []float64{
			nan, 1, 0,
			nan, 1, 0,
			nan, 1, 0,
			nan, 1, 1,
		}, 2, false},
		{"all NaN", []float64{
			nan, nan, nan,
			nan, nan, nan,
			nan, nan, nan,
			nan, nan, nan,
		}, -1, true},
	}
	b := newBBC(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Criterion(yTrue, mat.NewDense(4, 3, tt.yPred), nil)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrNoValidConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCriterionRows(t *testing.T) {
	yTrue := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 0, 0, 1, 1})
	yPred := mat.NewDense(4, 2, []float64{
		0, 1,
		1, 1,
		1, 0,
		0, 1,
	})
	b := newBBC(t)
	got, err := b.Criterion(yTrue, yPred, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = b.Criterion(yTrue, yPred, []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestConfidenceInterval(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.5, 0.3, 0.7}
	tests := []struct {
		name         string
		alpha        float64
		lower, upper float64
	}{
		{"alpha 0.05", 0.05, 0.1, 0.9},
		{"alpha 0.5", 0.5, 0.3, 0.7},
		{"alpha 1 collapses to median", 1, 0.5, 0.5},
		{"alpha 0 clamps upper", 0, 0.1, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := ConfidenceInterval(scores, tt.alpha)
			assert.Equal(t, tt.lower, lo)
			assert.Equal(t, tt.upper, hi)
			assert.LessOrEqual(t, lo, hi)
		})
	}

	lo, hi := ConfidenceInterval([]float64{0.4, 0.1, 0.3, 0.2}, 1)
	assert.InDelta(t, 0.25, lo, 1e-12, "even length collapses to the averaged median")
	assert.Equal(t, lo, hi)

	lo, hi = ConfidenceInterval(nil, 0.05)
	assert.True(t, math.IsNaN(lo))
	assert.True(t, math.IsNaN(hi))
	assert.Equal(t, []float64{0.9, 0.1, 0.5, 0.3, 0.7}, scores, "input must not be reordered")
}

func TestEvaluate(t *testing.T) {
	yTrue, yPred := pooled(100, []float64{0.6, 0.8, 0.7, 0.55}, 1)
	b := newBBC(t, WithRounds(200), WithSeed(7), WithAlpha(0.05))

	res, err := b.Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 200, res.ValidRounds+res.SkippedRounds)
	assert.Equal(t, 200, res.ValidRounds)
	assert.Len(t, res.Scores, res.ValidRounds)
	assert.LessOrEqual(t, res.Lower, res.Median)
	assert.LessOrEqual(t, res.Median, res.Upper)
	assert.GreaterOrEqual(t, res.Mean, res.Lower)
	assert.LessOrEqual(t, res.Mean, res.Upper)
	assert.Greater(t, res.Std, 0.0)
	// the winner is mostly the 0.8 column scored on unseen rows
	assert.InDelta(t, 0.8, res.Mean, 0.1)

	again, err := b.Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, res.Scores, again.Scores)
}

func TestEvaluateAlphaOneCollapsesToMedian(t *testing.T) {
	yTrue, yPred := pooled(100, []float64{0.6, 0.8, 0.7, 0.55}, 1)
	b := newBBC(t, WithRounds(200), WithSeed(7), WithAlpha(1))

	res, err := b.Evaluate(yTrue, yPred)
	require.NoError(t, err)
	require.Equal(t, 200, res.ValidRounds)
	assert.LessOrEqual(t, res.Lower, res.Median)
	assert.LessOrEqual(t, res.Median, res.Upper)
	assert.Equal(t, res.Median, res.Lower)
	assert.Equal(t, res.Median, res.Upper)
}

func TestEvaluateAlwaysFailingScore(t *testing.T) {
	yTrue, yPred := pooled(30, []float64{0.7, 0.9}, 2)
	failing := func(_, _ []float64) (float64, error) { return 0, errors.New("boom") }
	logger, _ := log.NewTestLogger(log.LevelWarn)
	b := newBBC(t, WithScoreFunc(failing), WithRounds(20), WithLogger(logger))

	res, err := b.Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ValidRounds)
	assert.Equal(t, 20, res.SkippedRounds)
	for _, v := range []float64{res.Mean, res.Std, res.Median, res.Lower, res.Upper} {
		assert.True(t, math.IsNaN(v))
	}
	assert.True(t, logger.ContainsMessage("No valid bootstrap round"))
}

func TestEvaluatePanickingScore(t *testing.T) {
	yTrue, yPred := pooled(30, []float64{0.7}, 3)
	panicky := func(_, _ []float64) (float64, error) { panic("scorer bug") }
	b := newBBC(t, WithScoreFunc(panicky), WithRounds(5), WithErrorScore(0.5))

	res, err := b.Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 5, res.ValidRounds)
	assert.Equal(t, 0.5, res.Mean)
}

func TestEvaluateNaNPredictionsNeverWin(t *testing.T) {
	yTrue, yPred := pooled(40, []float64{1, 0.6}, 4)
	yPred.Set(0, 0, math.NaN())
	b := newBBC(t, WithRounds(50), WithSeed(1))

	res, err := b.Evaluate(yTrue, yPred)
	require.NoError(t, err)
	for _, s := range res.Scores {
		assert.Less(t, s, 1.0+1e-12)
	}
	assert.Less(t, res.Mean, 0.9)
}

func TestEvaluateShapeErrors(t *testing.T) {
	b := newBBC(t)
	_, err := b.Evaluate(mat.NewDense(3, 2, nil), mat.NewDense(4, 2, nil))
	assert.Error(t, err)
	_, err = b.Evaluate(mat.NewDense(3, 2, nil), mat.NewDense(3, 1, nil))
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(WithRounds(0))
	assert.Error(t, err)
	_, err = New(WithAlpha(0))
	assert.Error(t, err)
	_, err = New(WithAlpha(1.5))
	assert.Error(t, err)
	_, err = New(WithScoreFunc(nil))
	assert.Error(t, err)

	b, err := New()
	require.NoError(t, err)
	assert.Equal(t, 200, b.Rounds)
	assert.True(t, math.IsNaN(b.ErrorScore))
}
