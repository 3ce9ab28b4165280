package experiment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
dataset: data/radiomics.csv
output_dir: out
folds: 10
num_reps: 5
master_seed: 0
max_evals: 60
oob_rounds: 500
alpha: 0.05
balancing: smote
scoring: roc_auc
selectors:
  fisher_k_min: 5
  fisher_k_max: 20
search:
  startup_trials: 15
pipelines:
  - {selector: fisher_score, classifier: logreg}
  - {selector: none, classifier: gnb}
runtime:
  parallel: 4
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Folds)
	assert.Equal(t, 5, cfg.NumReps)
	assert.Equal(t, "smote", cfg.Balancing)
	assert.True(t, cfg.ShuffleEnabled())
	assert.Equal(t, "standard", cfg.Scaler)
	assert.Equal(t, 0.5, cfg.Selectors.VarianceMax, "default kept")
	assert.Equal(t, 4, cfg.Runtime.Parallel)
	assert.Equal(t, filepath.Join("out", "checkpoints"), filepath.Clean(cfg.Runtime.CheckpointDir))

	tpe := cfg.TPEOptions()
	assert.Equal(t, 15, tpe.StartupTrials)
	assert.Equal(t, 24, tpe.Candidates)

	entries, err := cfg.Entries(30, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "fisher_score_logreg", entries[0].ID)
	assert.Equal(t, "none_gnb", entries[1].ID)

	assert.Len(t, cfg.RunnerOptions(), 8)
}

func TestParseConfigEnvOverrides(t *testing.T) {
	t.Setenv("BIORAD_PARALLEL", "16")
	t.Setenv("BIORAD_LOG_LEVEL", "debug")
	t.Setenv("BIORAD_CHECKPOINT_DIR", "/tmp/ckpt")

	cfg, err := ParseConfig([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Runtime.Parallel)
	assert.Equal(t, "debug", cfg.Runtime.LogLevel)
	assert.Equal(t, "/tmp/ckpt", cfg.Runtime.CheckpointDir)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", validYAML + "bogus: 1\n"},
		{"one fold", strings.Replace(validYAML, "folds: 10", "folds: 1", 1)},
		{"alpha above one", strings.Replace(validYAML, "alpha: 0.05", "alpha: 1.5", 1)},
		{"unknown balancing", strings.Replace(validYAML, "balancing: smote", "balancing: undersample", 1)},
		{"unknown scoring", strings.Replace(validYAML, "scoring: roc_auc", "scoring: r2", 1)},
		{"too many reps", strings.Replace(validYAML, "num_reps: 5", "num_reps: 5000", 1)},
		{"unknown selector", "dataset: d.csv\npipelines:\n  - {selector: lasso, classifier: gnb}\n"},
		{"no pipelines", "dataset: d.csv\n"},
		{"missing dataset", "pipelines:\n  - {selector: none, classifier: gnb}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "data/radiomics.csv", cfg.Dataset)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExampleConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "biorad.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Pipelines, 4)

	entries, err := cfg.Entries(40, cfg.MasterSeed)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
