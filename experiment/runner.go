package experiment

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/bbc"
	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/model_selection"
	"github.com/ahmedalbuni/biorad/pipeline"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"github.com/ahmedalbuni/biorad/sampling"
)

// Experiment is one unit of work: a catalogue pipeline evaluated under one
// seed. The seed drives balancing, fold shuffling, the search and the
// bootstrap.
type Experiment struct {
	Seed     int64
	Pipeline pipeline.Entry
}

// Key returns the checkpoint key of the experiment.
func (e Experiment) Key() Key {
	return Key{Seed: e.Seed, PipelineID: e.Pipeline.ID}
}

// Runner executes experiments against a checkpoint store.
type Runner struct {
	store      Store
	folds      int
	shuffle    bool
	budget     int
	oobRounds  int
	alpha      float64
	scoring    string
	score      metrics.ScoreFunc
	errorScore float64
	balancing  string
	tpe        model_selection.TPEOptions
	runID      string
	logger     log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFolds sets the number of cross-validation folds (default 5).
func WithFolds(k int) RunnerOption { return func(r *Runner) { r.folds = k } }

// WithShuffle controls fold shuffling (default true).
func WithShuffle(shuffle bool) RunnerOption { return func(r *Runner) { r.shuffle = shuffle } }

// WithBudget sets the number of search evaluations (default 100).
func WithBudget(n int) RunnerOption { return func(r *Runner) { r.budget = n } }

// WithOOBRounds sets the number of bootstrap rounds (default 200).
func WithOOBRounds(n int) RunnerOption { return func(r *Runner) { r.oobRounds = n } }

// WithAlpha sets the bootstrap confidence level to 1 - alpha (default 0.05).
func WithAlpha(alpha float64) RunnerOption { return func(r *Runner) { r.alpha = alpha } }

// WithScoring selects a registered score by name (default "roc_auc").
func WithScoring(name string) RunnerOption { return func(r *Runner) { r.scoring = name } }

// WithScoreFunc sets a custom score; name is recorded on the results.
func WithScoreFunc(name string, f metrics.ScoreFunc) RunnerOption {
	return func(r *Runner) { r.scoring, r.score = name, f }
}

// WithErrorScore sets the score substituted for failed evaluations.
func WithErrorScore(s float64) RunnerOption { return func(r *Runner) { r.errorScore = s } }

// WithBalancing selects the class balancer: none, smote or oversample.
func WithBalancing(name string) RunnerOption { return func(r *Runner) { r.balancing = name } }

// WithTPEOptions overrides the search settings.
func WithTPEOptions(o model_selection.TPEOptions) RunnerOption {
	return func(r *Runner) { r.tpe = o }
}

// WithRunID tags records and log lines with a sweep identifier.
func WithRunID(id string) RunnerOption { return func(r *Runner) { r.runID = id } }

// WithLogger sets the logger.
func WithLogger(l log.Logger) RunnerOption { return func(r *Runner) { r.logger = l } }

// NewRunner creates a Runner writing to store.
func NewRunner(store Store, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		store:      store,
		folds:      5,
		shuffle:    true,
		budget:     100,
		oobRounds:  200,
		alpha:      0.05,
		scoring:    "roc_auc",
		errorScore: math.NaN(),
		balancing:  "none",
		tpe:        model_selection.DefaultTPEOptions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if store == nil {
		return nil, errors.NewValidationError("store", "must not be nil", nil)
	}
	if r.score == nil {
		f, err := metrics.Scorer(r.scoring)
		if err != nil {
			return nil, err
		}
		r.score = f
	}
	if _, err := sampling.New(r.balancing, 0); err != nil {
		return nil, err
	}
	if r.logger == nil {
		r.logger = log.GetLogger()
	}
	return r, nil
}

// Run executes exp on (X, y) unless its checkpoint already exists, in which
// case the stored record is returned without any evaluation. A record
// whose search found no valid configuration is returned together with
// ErrNoValidConfiguration. Checkpoint failures and cancellation are fatal
// and leave no checkpoint behind.
func (r *Runner) Run(ctx context.Context, exp Experiment, X mat.Matrix, y []float64) (*Record, error) {
	key := exp.Key()
	logger := r.logger.With(
		log.OperationKey, log.OperationExperiment,
		log.PipelineIDKey, key.PipelineID,
		log.RandomSeedKey, key.Seed,
	)
	if r.runID != "" {
		logger = logger.With(log.RunIDKey, r.runID)
	}

	exists, err := r.store.Exists(key)
	if err != nil {
		return nil, err
	}
	if exists {
		rec, err := r.store.Read(key)
		if err != nil {
			return nil, err
		}
		logger.Info("Reloaded experiment from checkpoint", log.StatusKey, string(rec.Status))
		return rec, statusErr(rec)
	}

	start := time.Now()
	rec, err := r.compute(ctx, exp, X, y, logger)
	if err != nil {
		logger.Error("Experiment failed", err)
		return nil, err
	}
	rec.Duration = time.Since(start)
	rec.CreatedAt = time.Now().UTC()

	if err := r.store.Write(key, rec); err != nil {
		if errors.Is(err, errors.ErrCheckpointExists) {
			// another process finished the same key first; its record wins
			stored, rerr := r.store.Read(key)
			if rerr != nil {
				return nil, rerr
			}
			logger.Info("Checkpoint written concurrently, using stored record")
			return stored, statusErr(stored)
		}
		logger.Error("Checkpoint write failed", err, log.CheckpointKeyKey, key.String())
		return nil, err
	}
	logger.Info("Experiment finished",
		log.StatusKey, string(rec.Status),
		log.LossKey, rec.BestTestLoss,
		log.ScoreKey, rec.BBC.Mean,
		log.DurationMsKey, rec.Duration.Milliseconds(),
	)
	return rec, statusErr(rec)
}

func statusErr(rec *Record) error {
	if rec.Status == StatusNoValidConfiguration {
		return errors.WithStack(errors.ErrNoValidConfiguration)
	}
	return nil
}

func (r *Runner) compute(ctx context.Context, exp Experiment, X mat.Matrix, y []float64, logger log.Logger) (*Record, error) {
	if exp.Pipeline.Pipeline == nil {
		return nil, errors.NewValidationError("pipeline", "experiment has no pipeline", exp.Pipeline.ID)
	}
	Xb, yb, err := r.balance(exp.Seed, X, y, logger)
	if err != nil {
		return nil, err
	}
	nSamples, nFeatures := Xb.Dims()

	objective, err := model_selection.NewCrossValidatedObjective(exp.Pipeline.Pipeline, Xb, yb, r.score,
		model_selection.WithFolds(r.folds),
		model_selection.WithShuffle(r.shuffle),
		model_selection.WithSeed(exp.Seed),
		model_selection.WithErrorScore(r.errorScore),
		model_selection.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Search started",
		log.BudgetKey, r.budget,
		log.FoldsKey, r.folds,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
	)
	best, ledger, err := model_selection.Search(ctx, objective, exp.Pipeline.Space, r.budget, exp.Seed,
		model_selection.WithTPEOptions(r.tpe),
		model_selection.WithSearchLogger(logger),
	)
	status := StatusCompleted
	switch {
	case errors.Is(err, errors.ErrNoValidConfiguration):
		status = StatusNoValidConfiguration
	case err != nil:
		return nil, err
	}

	yTrue, yPred, err := ledger.PooledMatrices()
	if err != nil {
		return nil, err
	}
	corrector, err := bbc.New(
		bbc.WithRounds(r.oobRounds),
		bbc.WithSeed(exp.Seed),
		bbc.WithAlpha(r.alpha),
		bbc.WithScoreFunc(r.score),
		bbc.WithErrorScore(r.errorScore),
		bbc.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	res, err := corrector.Evaluate(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Key:                exp.Key(),
		Status:             status,
		RunID:              r.runID,
		BestIndex:          -1,
		BestTestLoss:       math.NaN(),
		Configurations:     ledger.Configurations(),
		TestLosses:         ledger.TestLosses(),
		TrainLosses:        ledger.TrainLosses(),
		TestLossVariances:  ledger.TestLossVariances(),
		TrainLossVariances: ledger.TrainLossVariances(),
		FailedFolds:        failedFolds(ledger),
		BBC:                res,
		NumSamples:         nSamples,
		NumFeatures:        nFeatures,
		Balancing:          r.balancing,
		Folds:              r.folds,
		Budget:             r.budget,
		OOBRounds:          r.oobRounds,
		Alpha:              r.alpha,
		Scoring:            r.scoring,
	}
	if status == StatusCompleted {
		idx, err := ledger.Best()
		if err != nil {
			return nil, err
		}
		rec.BestIndex = idx
		rec.BestTestLoss = ledger.At(idx).TestLoss
		rec.BestConfiguration = best
	}
	return rec, nil
}

func (r *Runner) balance(seed int64, X mat.Matrix, y []float64, logger log.Logger) (mat.Matrix, []float64, error) {
	balancer, err := sampling.New(r.balancing, seed)
	if err != nil {
		return nil, nil, err
	}
	if balancer == nil {
		return X, y, nil
	}
	Xb, yb, err := balancer.Resample(X, y)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "balancing with %s", r.balancing)
	}
	logger.Debug("Balanced dataset",
		log.OperationKey, log.OperationBalance,
		log.SamplesKey, len(yb),
	)
	return Xb, yb, nil
}

// failedFolds counts the contained fold failures of every trial.
func failedFolds(ledger *model_selection.TrialLedger) []int {
	out := make([]int, ledger.Len())
	for i, rec := range ledger.Records() {
		out[i] = len(rec.Failures)
	}
	return out
}
