package experiment

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/model_selection"
	"github.com/ahmedalbuni/biorad/pipeline"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// EnvPrefix prefixes the environment overrides of RuntimeConfig.
const EnvPrefix = "BIORAD"

// Config is the experiment file read by the command line tool.
type Config struct {
	Dataset string `yaml:"dataset" validate:"required"`
	// LabelColumn names the target column of the CSV; empty means last.
	LabelColumn string `yaml:"label_column"`
	OutputDir   string `yaml:"output_dir" validate:"required"`

	Folds      int     `yaml:"folds" validate:"gte=2"`
	Shuffle    *bool   `yaml:"shuffle"`
	NumReps    int     `yaml:"num_reps" validate:"gte=1,lte=1000"`
	MasterSeed int64   `yaml:"master_seed"`
	MaxEvals   int     `yaml:"max_evals" validate:"gte=1"`
	OOBRounds  int     `yaml:"oob_rounds" validate:"gte=1"`
	Alpha      float64 `yaml:"alpha" validate:"gt=0,lte=1"`
	Balancing  string  `yaml:"balancing" validate:"oneof=none smote oversample"`
	Scoring    string  `yaml:"scoring" validate:"required"`
	Scaler     string  `yaml:"scaler" validate:"oneof=standard minmax"`

	Search    SearchConfig     `yaml:"search"`
	Selectors SelectorConfig   `yaml:"selectors"`
	Pipelines []PipelineConfig `yaml:"pipelines" validate:"required,min=1,dive"`
	Runtime   RuntimeConfig    `yaml:"runtime"`
}

// SearchConfig tunes the TPE search; zero values keep the defaults.
type SearchConfig struct {
	StartupTrials int     `yaml:"startup_trials" validate:"gte=0"`
	Candidates    int     `yaml:"candidates" validate:"gte=0"`
	Gamma         float64 `yaml:"gamma" validate:"gte=0,lte=1"`
	PriorWeight   float64 `yaml:"prior_weight" validate:"gte=0"`
}

// SelectorConfig bounds the selector hyperparameter spaces.
type SelectorConfig struct {
	VarianceMin float64 `yaml:"variance_min" validate:"gte=0"`
	VarianceMax float64 `yaml:"variance_max" validate:"gtefield=VarianceMin"`
	FisherKMin  int     `yaml:"fisher_k_min" validate:"gte=0"`
	FisherKMax  int     `yaml:"fisher_k_max" validate:"gte=0"`
}

// PipelineConfig names one selector × classifier combination.
type PipelineConfig struct {
	Selector   string `yaml:"selector" validate:"required"`
	Classifier string `yaml:"classifier" validate:"required"`
}

// RuntimeConfig holds the knobs that may be overridden from the
// environment (BIORAD_PARALLEL, BIORAD_LOG_LEVEL, BIORAD_CHECKPOINT_DIR,
// BIORAD_PRETTY).
type RuntimeConfig struct {
	Parallel      int    `yaml:"parallel" envconfig:"PARALLEL" validate:"gte=0"`
	LogLevel      string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	CheckpointDir string `yaml:"checkpoint_dir" envconfig:"CHECKPOINT_DIR"`
	Pretty        bool   `yaml:"pretty" envconfig:"PRETTY"`
}

// DefaultConfig returns a Config with the defaults of every optional field.
func DefaultConfig() Config {
	shuffle := true
	return Config{
		OutputDir: "results",
		Folds:     5,
		Shuffle:   &shuffle,
		NumReps:   1,
		MaxEvals:  100,
		OOBRounds: 200,
		Alpha:     0.05,
		Balancing: "none",
		Scoring:   "roc_auc",
		Scaler:    "standard",
		Selectors: SelectorConfig{VarianceMax: 0.5},
		Runtime:   RuntimeConfig{Parallel: 1, LogLevel: "info"},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes YAML data; unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing yaml")
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Runtime); err != nil {
		return nil, errors.Wrap(err, "reading environment overrides")
	}
	if cfg.Runtime.CheckpointDir == "" {
		cfg.Runtime.CheckpointDir = filepath.Join(cfg.OutputDir, "checkpoints")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the registered names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return errors.NewValidationError(f.Namespace(), "failed "+f.Tag()+" "+f.Param(), f.Value())
		}
		return errors.Wrap(err, "validating config")
	}
	if _, err := metrics.Scorer(c.Scoring); err != nil {
		return err
	}
	for _, p := range c.Pipelines {
		if _, err := pipeline.Build(p.Selector, p.Classifier, pipeline.CatalogueOptions{NumFeatures: 10}); err != nil {
			return err
		}
	}
	return nil
}

// ShuffleEnabled reports the shuffle flag, true when unset.
func (c *Config) ShuffleEnabled() bool {
	return c.Shuffle == nil || *c.Shuffle
}

// TPEOptions merges the search section over the defaults.
func (c *Config) TPEOptions() model_selection.TPEOptions {
	o := model_selection.DefaultTPEOptions()
	if c.Search.StartupTrials > 0 {
		o.StartupTrials = c.Search.StartupTrials
	}
	if c.Search.Candidates > 0 {
		o.Candidates = c.Search.Candidates
	}
	if c.Search.Gamma > 0 {
		o.Gamma = c.Search.Gamma
	}
	if c.Search.PriorWeight > 0 {
		o.PriorWeight = c.Search.PriorWeight
	}
	return o
}

// CatalogueOptions returns the pipeline catalogue settings for a dataset
// with nFeatures columns.
func (c *Config) CatalogueOptions(nFeatures int, seed int64) pipeline.CatalogueOptions {
	return pipeline.CatalogueOptions{
		NumFeatures: nFeatures,
		Scaler:      c.Scaler,
		VarianceMin: c.Selectors.VarianceMin,
		VarianceMax: c.Selectors.VarianceMax,
		FisherKMin:  c.Selectors.FisherKMin,
		FisherKMax:  c.Selectors.FisherKMax,
		Seed:        seed,
	}
}

// Entries builds the configured pipelines, ordered by id.
func (c *Config) Entries(nFeatures int, seed int64) ([]pipeline.Entry, error) {
	opts := c.CatalogueOptions(nFeatures, seed)
	entries := make([]pipeline.Entry, 0, len(c.Pipelines))
	seen := make(map[string]bool)
	for _, p := range c.Pipelines {
		e, err := pipeline.Build(p.Selector, p.Classifier, opts)
		if err != nil {
			return nil, err
		}
		if seen[e.ID] {
			return nil, errors.NewValidationError("pipelines", "duplicate pipeline", e.ID)
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}
	SortEntries(entries)
	return entries, nil
}

// RunnerOptions translates the config into Runner options.
func (c *Config) RunnerOptions() []RunnerOption {
	return []RunnerOption{
		WithFolds(c.Folds),
		WithShuffle(c.ShuffleEnabled()),
		WithBudget(c.MaxEvals),
		WithOOBRounds(c.OOBRounds),
		WithAlpha(c.Alpha),
		WithScoring(c.Scoring),
		WithBalancing(c.Balancing),
		WithTPEOptions(c.TPEOptions()),
	}
}
