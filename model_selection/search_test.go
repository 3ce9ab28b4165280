package model_selection

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"github.com/ahmedalbuni/biorad/space"
)

// lossFunc adapts a plain function of the configuration to Evaluator.
type lossFunc struct {
	f     func(space.Configuration) float64
	calls []space.Configuration
}

func (e *lossFunc) Evaluate(_ context.Context, cfg space.Configuration) (TrialRecord, error) {
	e.calls = append(e.calls, cfg.Clone())
	loss := e.f(cfg)
	return TrialRecord{
		Configuration: cfg,
		TestLoss:      loss,
		TrainLoss:     loss,
		YTrue:         []float64{0, 1, 0, 1},
		YPred:         []float64{0, 1, 1, 1},
	}, nil
}

func quadraticSpace() space.Space {
	return space.MustNew(
		space.Uniform("x", 0, 10),
		space.LogUniform("c", 1e-3, 1e3),
		space.IntUniform("k", 1, 8),
		space.Choice("penalty", "l1", "l2"),
	)
}

func quadratic(cfg space.Configuration) float64 {
	x := cfg["x"].(float64)
	loss := (x - 2) * (x - 2)
	if cfg["penalty"] == "l2" {
		loss += 1
	}
	return loss
}

func TestSearchBudgetAndBest(t *testing.T) {
	eval := &lossFunc{f: quadratic}
	best, ledger, err := Search(context.Background(), eval, quadraticSpace(), 40, 11,
		WithSearchLogger(log.Nop()))
	require.NoError(t, err)

	assert.Len(t, eval.calls, 40)
	assert.Equal(t, 40, ledger.Len())

	idx, err := ledger.Best()
	require.NoError(t, err)
	assert.Equal(t, ledger.At(idx).Configuration, best)
	for _, loss := range ledger.TestLosses() {
		assert.GreaterOrEqual(t, loss, ledger.At(idx).TestLoss)
	}
	assert.InDelta(t, 2.0, best["x"].(float64), 1.0)
	for _, cfg := range eval.calls {
		assert.NoError(t, quadraticSpace().Validate(cfg))
	}
}

func TestSearchDeterministic(t *testing.T) {
	run := func(seed int64) []space.Configuration {
		eval := &lossFunc{f: quadratic}
		_, _, err := Search(context.Background(), eval, quadraticSpace(), 25, seed,
			WithSearchLogger(log.Nop()))
		require.NoError(t, err)
		return eval.calls
	}
	a, b := run(5), run(5)
	require.Len(t, b, len(a))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "proposal %d: %v != %v", i, a[i], b[i])
	}

	c := run(6)
	assert.False(t, a[0].Equal(c[0]))
}

func TestSearchNoValidConfiguration(t *testing.T) {
	eval := &lossFunc{f: func(space.Configuration) float64 { return math.NaN() }}
	best, ledger, err := Search(context.Background(), eval, quadraticSpace(), 12, 1,
		WithSearchLogger(log.Nop()))
	assert.True(t, errors.Is(err, errors.ErrNoValidConfiguration))
	assert.Nil(t, best)
	require.NotNil(t, ledger)
	assert.Equal(t, 12, ledger.Len())
}

func TestSearchStartupUsesPrior(t *testing.T) {
	s := quadraticSpace()
	eval := &lossFunc{f: quadratic}
	_, _, err := Search(context.Background(), eval, s, 1, 9, WithSearchLogger(log.Nop()))
	require.NoError(t, err)

	want := s.Sample(rand.New(rand.NewPCG(9, 9)))
	assert.True(t, want.Equal(eval.calls[0]))
}

func TestSearchValidation(t *testing.T) {
	eval := &lossFunc{f: quadratic}
	_, _, err := Search(context.Background(), eval, quadraticSpace(), 0, 1)
	assert.Error(t, err)

	bad := DefaultTPEOptions()
	bad.Gamma = 0
	_, _, err = Search(context.Background(), eval, quadraticSpace(), 3, 1, WithTPEOptions(bad))
	assert.Error(t, err)
	assert.Empty(t, eval.calls)
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eval := &lossFunc{f: quadratic}
	_, ledger, err := Search(ctx, eval, quadraticSpace(), 5, 1, WithSearchLogger(log.Nop()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ledger.Len())
}

func TestSearchWithCrossValidatedObjective(t *testing.T) {
	X, y := separable(50, 4)
	obj, err := NewCrossValidatedObjective(&thresholdModel{}, X, y, metrics.Accuracy,
		WithSeed(2), WithLogger(log.Nop()))
	require.NoError(t, err)

	s := space.MustNew(space.Uniform("threshold", -1, 2))
	best, ledger, err := Search(context.Background(), obj, s, 20, 3, WithSearchLogger(log.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 20, ledger.Len())

	idx, err := ledger.Best()
	require.NoError(t, err)
	rec := ledger.At(idx)
	assert.GreaterOrEqual(t, rec.TestLoss, 0.0)
	assert.LessOrEqual(t, rec.TestLoss, 1.0)
	assert.Equal(t, best, rec.Configuration)

	yTrue, yPred, err := ledger.PooledMatrices()
	require.NoError(t, err)
	r, c := yPred.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 20, c)
	assert.Equal(t, rec.YTrue[0], yTrue.At(0, idx))
}

func TestParzenDensity(t *testing.T) {
	d := newParzenDensity([]float64{1, 1.5, 4}, 0, 5, 1)

	// the truncated mixture integrates to one over its support
	const steps = 5000
	h := 5.0 / steps
	sum := 0.0
	for i := 0; i < steps; i++ {
		sum += math.Exp(d.logProb((float64(i)+0.5)*h)) * h
	}
	assert.InDelta(t, 1.0, sum, 1e-3)

	rng := rand.New(rand.NewPCG(1, 1))
	for i := 0; i < 1000; i++ {
		x := d.sample(rng)
		assert.True(t, x >= 0 && x <= 5)
	}
	assert.Greater(t, d.logProb(1.2), d.logProb(3))
}

func TestCategoricalDensity(t *testing.T) {
	d := newCategoricalDensity([]float64{0, 0, 0, 2}, 3, 1)
	assert.InDeltaSlice(t, []float64{4.0 / 7, 1.0 / 7, 2.0 / 7}, d.weights, 1e-12)
	assert.InDelta(t, math.Log(4.0/7), d.logProb(0), 1e-12)
}

func TestTPEOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultTPEOptions().validate())
	tests := []struct {
		name string
		mut  func(*TPEOptions)
	}{
		{"negative startup", func(o *TPEOptions) { o.StartupTrials = -1 }},
		{"no candidates", func(o *TPEOptions) { o.Candidates = 0 }},
		{"gamma above one", func(o *TPEOptions) { o.Gamma = 1.5 }},
		{"zero prior weight", func(o *TPEOptions) { o.PriorWeight = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultTPEOptions()
			tt.mut(&o)
			assert.Error(t, o.validate())
		})
	}
}
