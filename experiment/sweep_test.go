package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedalbuni/biorad/pipeline"
)

func TestSeedsFrom(t *testing.T) {
	seeds, err := SeedsFrom(42, 50)
	require.NoError(t, err)
	require.Len(t, seeds, 50)

	seen := make(map[int64]bool)
	for _, s := range seeds {
		assert.True(t, s >= 0 && s < 1000)
		assert.False(t, seen[s], "duplicate seed %d", s)
		seen[s] = true
	}

	again, err := SeedsFrom(42, 50)
	require.NoError(t, err)
	assert.Equal(t, seeds, again)

	_, err = SeedsFrom(1, 0)
	assert.Error(t, err)
	_, err = SeedsFrom(1, 1001)
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	X, y := dataset(50, 6, 9)
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	r := newRunner(t, store, WithBudget(4), WithOOBRounds(10), WithScoring("balanced_accuracy"))

	entries := []pipeline.Entry{entry(t, "none", "gnb", 6), entry(t, "variance_threshold", "gnb", 6)}
	seeds := []int64{3, 1}

	outcomes, err := Sweep(context.Background(), r, entries, seeds, X, y, 3)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	assert.Equal(t, Key{Seed: 3, PipelineID: "none_gnb"}, outcomes[0].Key)
	assert.Equal(t, Key{Seed: 1, PipelineID: "variance_threshold_gnb"}, outcomes[3].Key)

	runID := outcomes[0].Record.RunID
	assert.NotEmpty(t, runID)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, o.Key, o.Record.Key)
		assert.Equal(t, runID, o.Record.RunID)
	}

	recs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, recs, 4)

	// the templates are never fitted by the sweep
	_, err = entries[0].Pipeline.Predict(X)
	assert.Error(t, err)

	// a second sweep reloads everything
	again, err := Sweep(context.Background(), r, entries, seeds, X, y, 2)
	require.NoError(t, err)
	for i := range again {
		assert.Equal(t, runID, again[i].Record.RunID)
		assert.Equal(t, outcomes[i].Record.TestLosses, again[i].Record.TestLosses)
	}
}

func TestSweepAbortsOnFatalError(t *testing.T) {
	X, y := dataset(20, 4, 9)
	r := newRunner(t, NewMemoryStore(), WithFolds(50))
	_, err := Sweep(context.Background(), r, []pipeline.Entry{entry(t, "none", "gnb", 4)}, []int64{1, 2}, X, y, 1)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	mk := func(id string, seed int64, mean float64, status Status) *Record {
		rec := sampleRecord(Key{Seed: seed, PipelineID: id})
		rec.Status = status
		rec.BBC.Mean = mean
		return rec
	}
	sums := Summarize([]*Record{
		mk("b", 2, 0.7, StatusCompleted),
		mk("a", 1, 0.6, StatusCompleted),
		mk("a", 2, 0.8, StatusCompleted),
		mk("b", 1, 0.5, StatusNoValidConfiguration),
	})
	require.Len(t, sums, 2)

	a := sums[0]
	assert.Equal(t, "a", a.PipelineID)
	assert.Equal(t, 2, a.Experiments)
	assert.Equal(t, 0, a.Failed)
	assert.InDelta(t, 0.7, a.MeanScore, 1e-12)
	assert.InDelta(t, 0.1, a.StdScore, 1e-12)
	assert.Equal(t, []float64{0.6, 0.8}, a.Scores)
	assert.InDelta(t, 0.7, a.MeanLower, 1e-12)
	assert.InDelta(t, 0.2, a.MeanTestLoss, 1e-12)

	b := sums[1]
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, []float64{0.7}, b.Scores)
}
