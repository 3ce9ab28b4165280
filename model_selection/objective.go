package model_selection

import (
	"context"
	"math"
	"time"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"github.com/ahmedalbuni/biorad/space"
	"gonum.org/v1/gonum/mat"
)

// Evaluator scores one configuration. Search calls it once per proposal.
type Evaluator interface {
	Evaluate(ctx context.Context, cfg space.Configuration) (TrialRecord, error)
}

// FoldResult is the outcome of one cross-validation fold.
type FoldResult struct {
	TestLoss  float64
	TrainLoss float64
	YTrue     []float64
	YPred     []float64
}

type objectiveConfig struct {
	folds      int
	shuffle    bool
	seed       int64
	errorScore float64
	logger     log.Logger
}

// ObjectiveOption configures a CrossValidatedObjective.
type ObjectiveOption func(*objectiveConfig)

// WithFolds sets the number of stratified folds (default 5).
func WithFolds(k int) ObjectiveOption {
	return func(c *objectiveConfig) { c.folds = k }
}

// WithShuffle controls per-class shuffling before folding (default true).
func WithShuffle(shuffle bool) ObjectiveOption {
	return func(c *objectiveConfig) { c.shuffle = shuffle }
}

// WithSeed sets the fold shuffling seed.
func WithSeed(seed int64) ObjectiveOption {
	return func(c *objectiveConfig) { c.seed = seed }
}

// WithErrorScore sets the score substituted when a fold fails or scores a
// non-finite value. The loss recorded is 1 - score, so the NaN default
// yields a NaN loss.
func WithErrorScore(score float64) ObjectiveOption {
	return func(c *objectiveConfig) { c.errorScore = score }
}

// WithLogger sets the logger; the process default is used otherwise.
func WithLogger(l log.Logger) ObjectiveOption {
	return func(c *objectiveConfig) { c.logger = l }
}

// CrossValidatedObjective evaluates configurations of one estimator template
// under stratified k-fold cross-validation. The folds are computed once, so
// every configuration sees the same partition and the pooled vectors of all
// trials line up sample by sample.
type CrossValidatedObjective struct {
	template   model.Estimator
	X          mat.Matrix
	y          []float64
	score      metrics.ScoreFunc
	folds      []Fold
	errorScore float64
	logger     log.Logger
}

// NewCrossValidatedObjective validates the dataset and prepares the folds.
// The template is never fitted; every fold works on its own clone.
func NewCrossValidatedObjective(template model.Estimator, X mat.Matrix, y []float64, score metrics.ScoreFunc, opts ...ObjectiveOption) (*CrossValidatedObjective, error) {
	cfg := objectiveConfig{
		folds:      5,
		shuffle:    true,
		errorScore: math.NaN(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if template == nil {
		return nil, errors.NewValueError("NewCrossValidatedObjective", "nil estimator")
	}
	if score == nil {
		return nil, errors.NewValueError("NewCrossValidatedObjective", "nil score function")
	}
	if X == nil {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	rows, _ := X.Dims()
	if rows == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if rows != len(y) {
		return nil, errors.NewDimensionError("NewCrossValidatedObjective", rows, len(y), 0)
	}
	folds, err := NewStratifiedKFold(cfg.folds, cfg.shuffle, cfg.seed).Split(y)
	if err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLogger()
	}
	return &CrossValidatedObjective{
		template:   template,
		X:          X,
		y:          append([]float64(nil), y...),
		score:      score,
		folds:      folds,
		errorScore: cfg.errorScore,
		logger:     cfg.logger.With(log.ComponentKey, "model_selection"),
	}, nil
}

// Folds returns the fold partition shared by every evaluation.
func (o *CrossValidatedObjective) Folds() []Fold {
	return o.folds
}

// NumSamples returns the length of the pooled vectors of each trial.
func (o *CrossValidatedObjective) NumSamples() int {
	return len(o.y)
}

// Evaluate cross-validates cfg. Fold failures never surface as an error:
// they are kept on the record and the affected losses become 1 - error
// score. Only a cancelled context stops the evaluation.
func (o *CrossValidatedObjective) Evaluate(ctx context.Context, cfg space.Configuration) (TrialRecord, error) {
	start := time.Now()
	rec := TrialRecord{
		Configuration:   cfg.Clone(),
		FoldTestLosses:  make([]float64, 0, len(o.folds)),
		FoldTrainLosses: make([]float64, 0, len(o.folds)),
		YTrue:           make([]float64, 0, len(o.y)),
		YPred:           make([]float64, 0, len(o.y)),
	}
	for k, fold := range o.folds {
		if err := ctx.Err(); err != nil {
			return TrialRecord{}, errors.Wrap(err, "cross-validation cancelled")
		}
		fr, failures := o.runFold(k, fold, cfg)
		for _, f := range failures {
			o.logger.Warn("Fold evaluation failed",
				log.OperationKey, log.OperationEvaluate,
				log.FoldKey, k,
				log.HyperParamsKey, cfg.String(),
				"error", f,
			)
		}
		rec.Failures = append(rec.Failures, failures...)
		rec.FoldTestLosses = append(rec.FoldTestLosses, fr.TestLoss)
		rec.FoldTrainLosses = append(rec.FoldTrainLosses, fr.TrainLoss)
		rec.YTrue = append(rec.YTrue, fr.YTrue...)
		rec.YPred = append(rec.YPred, fr.YPred...)
		o.logger.Debug("Fold evaluated",
			log.FoldKey, k,
			log.LossKey, fr.TestLoss,
			log.TrainLossKey, fr.TrainLoss,
		)
	}
	rec.TestLoss = metrics.Median(rec.FoldTestLosses)
	rec.TrainLoss = metrics.Median(rec.FoldTrainLosses)
	rec.TestLossVariance = metrics.PopVariance(rec.FoldTestLosses)
	rec.TrainLossVariance = metrics.PopVariance(rec.FoldTrainLosses)
	rec.Duration = time.Since(start)
	return rec, nil
}

// runFold fits a fresh clone on the training part of fold k. Failures are
// returned as EvaluationErrors next to a result that carries the error
// loss and, when no prediction could be made, NaN predictions.
func (o *CrossValidatedObjective) runFold(k int, fold Fold, cfg space.Configuration) (FoldResult, []error) {
	errLoss := 1 - o.errorScore
	fr := FoldResult{
		TestLoss:  errLoss,
		TrainLoss: errLoss,
		YTrue:     pick(o.y, fold.TestIndices),
		YPred:     nanSlice(len(fold.TestIndices)),
	}

	est := o.template.Clone()
	if err := errors.SafeExecute("set_params", func() error {
		return est.SetParams(map[string]interface{}(cfg))
	}); err != nil {
		return fr, []error{errors.NewEvaluationError(errors.StageSetParams, k, err)}
	}

	XTrain := rowsOf(o.X, fold.TrainIndices)
	yTrain := pick(o.y, fold.TrainIndices)
	if err := errors.SafeExecute("fit", func() error {
		return est.Fit(XTrain, mat.NewDense(len(yTrain), 1, yTrain))
	}); err != nil {
		return fr, []error{errors.NewEvaluationError(errors.StageFit, k, err)}
	}

	testPred, err := predictLabels(est, rowsOf(o.X, fold.TestIndices))
	if err != nil {
		return fr, []error{errors.NewEvaluationError(errors.StagePredict, k, err)}
	}
	fr.YPred = testPred

	var failures []error
	if loss, err := o.loss(fr.YTrue, fr.YPred); err != nil {
		failures = append(failures, errors.NewEvaluationError(errors.StageScore, k, err))
	} else {
		fr.TestLoss = loss
	}

	trainPred, err := predictLabels(est, XTrain)
	if err != nil {
		return fr, append(failures, errors.NewEvaluationError(errors.StagePredict, k, err))
	}
	if loss, err := o.loss(yTrain, trainPred); err != nil {
		failures = append(failures, errors.NewEvaluationError(errors.StageScore, k, err))
	} else {
		fr.TrainLoss = loss
	}
	return fr, failures
}

func (o *CrossValidatedObjective) loss(yTrue, yPred []float64) (float64, error) {
	s, err := errors.SafeValue("score", func() (float64, error) {
		return o.score(yTrue, yPred)
	})
	if err != nil {
		return 0, err
	}
	if !errors.IsFinite(s) {
		return 0, errors.NewValueError("score", "non-finite score")
	}
	return 1 - s, nil
}

func predictLabels(est model.Estimator, X *mat.Dense) ([]float64, error) {
	return errors.SafeValue("predict", func() ([]float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return nil, err
		}
		want, _ := X.Dims()
		r, c := pred.Dims()
		if r != want || c < 1 {
			return nil, errors.NewDimensionError("predict", want, r, 0)
		}
		out := make([]float64, r)
		for i := range out {
			out[i] = pred.At(i, 0)
		}
		return out, nil
	})
}

func rowsOf(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	row := make([]float64, c)
	for i, r := range idx {
		for j := range row {
			row[j] = X.At(r, j)
		}
		out.SetRow(i, row)
	}
	return out
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
