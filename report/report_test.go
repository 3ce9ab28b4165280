package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedalbuni/biorad/experiment"
)

func summaries() []experiment.PipelineSummary {
	return []experiment.PipelineSummary{
		{PipelineID: "fisher_score_gnb", Experiments: 3, MeanScore: 0.81, StdScore: 0.02,
			MeanLower: 0.7, MeanUpper: 0.9, MeanTestLoss: 0.15, Scores: []float64{0.8, 0.81, 0.83}},
		{PipelineID: "none_logreg", Experiments: 3, Failed: 3, MeanScore: math.NaN(), StdScore: math.NaN(),
			MeanLower: math.NaN(), MeanUpper: math.NaN(), MeanTestLoss: math.NaN()},
		{PipelineID: "variance_threshold_logreg", Experiments: 3, MeanScore: 0.75,
			Scores: []float64{0.7, 0.75, 0.8}},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, summaries()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "PIPELINE"))
	assert.Contains(t, lines[1], "fisher_score_gnb")
	assert.Contains(t, lines[1], "0.8100")
	assert.Contains(t, lines[2], "NaN")
}

func TestBoxPlot(t *testing.T) {
	p, err := BoxPlot(summaries(), "BBC-CV")
	require.NoError(t, err)
	assert.Equal(t, "BBC-CV", p.Title.Text)

	_, err = BoxPlot(summaries()[1:2], "empty")
	assert.Error(t, err)
}

func TestWriteBoxPlot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBoxPlot(&buf, summaries(), "BBC-CV", "png"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	path := filepath.Join(t.TempDir(), "scores.svg")
	require.NoError(t, SaveBoxPlot(path, summaries(), "BBC-CV"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
