package model_selection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"github.com/ahmedalbuni/biorad/sklearn/naive_bayes"
	"github.com/ahmedalbuni/biorad/space"
)

func newObjective(t *testing.T, est *thresholdModel, score metrics.ScoreFunc, opts ...ObjectiveOption) *CrossValidatedObjective {
	t.Helper()
	X, y := separable(40, 3)
	opts = append([]ObjectiveOption{WithSeed(1), WithLogger(log.Nop())}, opts...)
	obj, err := NewCrossValidatedObjective(est, X, y, score, opts...)
	require.NoError(t, err)
	return obj
}

func TestCrossValidatedObjectivePerfectThreshold(t *testing.T) {
	obj := newObjective(t, &thresholdModel{}, metrics.Accuracy)

	rec, err := obj.Evaluate(context.Background(), space.Configuration{"threshold": 0.5})
	require.NoError(t, err)

	assert.Equal(t, 0.0, rec.TestLoss)
	assert.Equal(t, 0.0, rec.TrainLoss)
	assert.Equal(t, 0.0, rec.TestLossVariance)
	assert.Len(t, rec.FoldTestLosses, 5)
	assert.Empty(t, rec.Failures)
	assert.Len(t, rec.YTrue, 40)
	assert.Equal(t, rec.YTrue, rec.YPred)
	assert.True(t, rec.Valid())
}

func TestCrossValidatedObjectivePooledOrder(t *testing.T) {
	obj := newObjective(t, &thresholdModel{}, metrics.Accuracy)
	rec, err := obj.Evaluate(context.Background(), space.Configuration{"threshold": 10.0})
	require.NoError(t, err)

	var want []float64
	for _, f := range obj.Folds() {
		want = append(want, pick(obj.y, f.TestIndices)...)
	}
	assert.Equal(t, want, rec.YTrue)
	for _, p := range rec.YPred {
		assert.Equal(t, 0.0, p)
	}
	assert.InDelta(t, 0.5, rec.TestLoss, 0.11)
}

func TestCrossValidatedObjectiveDoesNotTouchTemplate(t *testing.T) {
	fits := 0
	tmpl := &thresholdModel{threshold: 7, fits: &fits}
	obj := newObjective(t, tmpl, metrics.Accuracy, WithFolds(4))

	_, err := obj.Evaluate(context.Background(), space.Configuration{"threshold": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 4, fits)
	assert.Equal(t, 7.0, tmpl.threshold)
	assert.False(t, tmpl.fitted)
}

func TestCrossValidatedObjectiveContainsFailures(t *testing.T) {
	tests := []struct {
		name     string
		cfg      space.Configuration
		score    metrics.ScoreFunc
		stage    errors.Stage
		nanPreds bool
	}{
		{
			name:     "set_params",
			cfg:      space.Configuration{"unknown": 1.0},
			score:    metrics.Accuracy,
			stage:    errors.StageSetParams,
			nanPreds: true,
		},
		{
			name:     "fit",
			cfg:      space.Configuration{"fail_fit": true},
			score:    metrics.Accuracy,
			stage:    errors.StageFit,
			nanPreds: true,
		},
		{
			name:     "predict panic",
			cfg:      space.Configuration{"panic_predict": true},
			score:    metrics.Accuracy,
			stage:    errors.StagePredict,
			nanPreds: true,
		},
		{
			name:  "score error",
			cfg:   space.Configuration{"threshold": 0.5},
			score: func(_, _ []float64) (float64, error) { return 0, errors.New("boom") },
			stage: errors.StageScore,
		},
		{
			name:  "score NaN",
			cfg:   space.Configuration{"threshold": 0.5},
			score: func(_, _ []float64) (float64, error) { return math.NaN(), nil },
			stage: errors.StageScore,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := log.NewTestLogger(log.LevelWarn)
			obj := newObjective(t, &thresholdModel{}, tt.score, WithLogger(logger))

			rec, err := obj.Evaluate(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(rec.TestLoss))
			assert.True(t, math.IsNaN(rec.TestLossVariance))
			assert.False(t, rec.Valid())
			assert.Len(t, rec.YPred, 40)
			require.NotEmpty(t, rec.Failures)

			var evalErr *errors.EvaluationError
			require.True(t, errors.As(rec.Failures[0], &evalErr))
			assert.Equal(t, tt.stage, evalErr.Stage)
			assert.Equal(t, 0, evalErr.Fold)
			assert.Equal(t, tt.nanPreds, math.IsNaN(rec.YPred[0]))
			assert.True(t, logger.ContainsMessage("Fold evaluation failed"))
		})
	}
}

func TestCrossValidatedObjectiveErrorScore(t *testing.T) {
	failing := func(_, _ []float64) (float64, error) { return 0, errors.New("boom") }
	obj := newObjective(t, &thresholdModel{}, failing, WithErrorScore(0.25))

	rec, err := obj.Evaluate(context.Background(), space.Configuration{"threshold": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.75, rec.TestLoss)
	assert.Equal(t, 0.75, rec.TrainLoss)
	assert.Len(t, rec.Failures, 10)
}

func TestCrossValidatedObjectiveCancelled(t *testing.T) {
	obj := newObjective(t, &thresholdModel{}, metrics.Accuracy)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := obj.Evaluate(ctx, space.Configuration{"threshold": 0.5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCrossValidatedObjectiveValidation(t *testing.T) {
	X, y := separable(10, 1)

	_, err := NewCrossValidatedObjective(&thresholdModel{}, X, y[:9], metrics.Accuracy)
	assert.Error(t, err)

	_, err = NewCrossValidatedObjective(&thresholdModel{}, X, y, metrics.Accuracy, WithFolds(1))
	assert.Error(t, err)

	_, err = NewCrossValidatedObjective(&thresholdModel{}, X, y, nil)
	assert.Error(t, err)

	_, err = NewCrossValidatedObjective(nil, X, y, metrics.Accuracy)
	assert.Error(t, err)
}

func TestCrossValidatedObjectiveRealEstimator(t *testing.T) {
	X, y := separable(60, 9)
	obj, err := NewCrossValidatedObjective(naive_bayes.NewGaussianNBDefault(), X, y,
		metrics.BalancedAccuracy, WithSeed(3), WithLogger(log.Nop()))
	require.NoError(t, err)

	rec, err := obj.Evaluate(context.Background(), space.Configuration{"var_smoothing": 1e-9})
	require.NoError(t, err)
	assert.Empty(t, rec.Failures)
	assert.Less(t, rec.TestLoss, 0.1)
	assert.Len(t, rec.YPred, 60)
}
