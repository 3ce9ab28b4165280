// Package bbc implements Bootstrap Bias-Corrected Cross-Validation.
//
// The cross-validated loss of the configuration that won a search is
// optimistic, because the same predictions chose it. BBC-CV repeats the
// choice on a bootstrap resample of the pooled out-of-sample predictions
// and scores the winner on the samples that resample left out.
package bbc

import (
	"math"
	"sort"

	"github.com/ahmedalbuni/biorad/metrics"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Result summarises the out-of-bag scores of the valid rounds. Every
// statistic is NaN when no round was valid.
type Result struct {
	Mean          float64
	Std           float64
	Median        float64
	Lower         float64
	Upper         float64
	ValidRounds   int
	SkippedRounds int
	Scores        []float64
}

// BootstrapBiasCorrection holds the procedure's settings.
type BootstrapBiasCorrection struct {
	Rounds     int
	Seed       int64
	Alpha      float64
	ScoreFunc  metrics.ScoreFunc
	ErrorScore float64

	logger log.Logger
}

// Option configures a BootstrapBiasCorrection.
type Option func(*BootstrapBiasCorrection)

// WithRounds sets the number of bootstrap rounds (default 200).
func WithRounds(n int) Option {
	return func(b *BootstrapBiasCorrection) { b.Rounds = n }
}

// WithSeed sets the seed from which every round is derived.
func WithSeed(seed int64) Option {
	return func(b *BootstrapBiasCorrection) { b.Seed = seed }
}

// WithAlpha sets the confidence level to 1 - alpha (default 0.05).
func WithAlpha(alpha float64) Option {
	return func(b *BootstrapBiasCorrection) { b.Alpha = alpha }
}

// WithScoreFunc sets the higher-is-better score (default ROC AUC).
func WithScoreFunc(f metrics.ScoreFunc) Option {
	return func(b *BootstrapBiasCorrection) { b.ScoreFunc = f }
}

// WithErrorScore sets the score substituted when scoring fails (default NaN).
func WithErrorScore(s float64) Option {
	return func(b *BootstrapBiasCorrection) { b.ErrorScore = s }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(b *BootstrapBiasCorrection) { b.logger = l }
}

// New returns a validated BootstrapBiasCorrection.
func New(opts ...Option) (*BootstrapBiasCorrection, error) {
	b := &BootstrapBiasCorrection{
		Rounds:     200,
		Alpha:      0.05,
		ScoreFunc:  metrics.ROCAUC,
		ErrorScore: math.NaN(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.Rounds < 1 {
		return nil, errors.NewValidationError("oob_rounds", "must be at least 1", b.Rounds)
	}
	if !(b.Alpha > 0 && b.Alpha <= 1) {
		return nil, errors.NewValidationError("alpha", "must be in (0, 1]", b.Alpha)
	}
	if b.ScoreFunc == nil {
		return nil, errors.NewValidationError("score_func", "must not be nil", nil)
	}
	if b.logger == nil {
		b.logger = log.GetLogger()
	}
	return b, nil
}

// score applies ScoreFunc to column j restricted to rows. Panics, errors,
// NaN predictions (a fold that could not predict) and non-finite scores all
// yield ErrorScore.
func (b *BootstrapBiasCorrection) score(yTrue, yPred mat.Matrix, j int, rows []int) float64 {
	for _, i := range rows {
		if math.IsNaN(yPred.At(i, j)) {
			return b.ErrorScore
		}
	}
	s, err := errors.SafeValue("score", func() (float64, error) {
		return metrics.ColumnScore(b.ScoreFunc, yTrue, yPred, j, rows)
	})
	if err != nil || !errors.IsFinite(s) {
		return b.ErrorScore
	}
	return s
}

// Criterion returns the column whose loss 1 - score over rows is smallest,
// ignoring non-finite losses and preferring the lowest index on ties. It
// returns ErrNoValidConfiguration when every loss is non-finite.
func (b *BootstrapBiasCorrection) Criterion(yTrue, yPred mat.Matrix, rows []int) (int, error) {
	_, c := yPred.Dims()
	best, bestLoss := -1, math.Inf(1)
	for j := 0; j < c; j++ {
		loss := 1 - b.score(yTrue, yPred, j, rows)
		if !errors.IsFinite(loss) {
			continue
		}
		if best < 0 || loss < bestLoss {
			best, bestLoss = j, loss
		}
	}
	if best < 0 {
		return -1, errors.WithStack(errors.ErrNoValidConfiguration)
	}
	return best, nil
}

// Evaluate runs the bootstrap over samples × configurations matrices of
// pooled ground truth and predictions. A round is skipped when it has no
// out-of-bag samples, when no configuration can be selected, or when the
// out-of-bag score is non-finite after error substitution. An error is
// returned only for empty or mismatched inputs.
func (b *BootstrapBiasCorrection) Evaluate(yTrue, yPred mat.Matrix) (Result, error) {
	n, c := yPred.Dims()
	tn, tc := yTrue.Dims()
	if n == 0 || c == 0 {
		return Result{}, errors.WithStack(errors.ErrEmptyData)
	}
	if tn != n {
		return Result{}, errors.NewDimensionError("bbc.Evaluate", n, tn, 0)
	}
	if tc != c {
		return Result{}, errors.NewDimensionError("bbc.Evaluate", c, tc, 1)
	}

	sampler := NewOOBSampler(b.Rounds, b.Seed)
	res := Result{Scores: make([]float64, 0, b.Rounds)}
	for r := 0; r < b.Rounds; r++ {
		split := sampler.Round(r, n)
		if len(split.OutOfBag) == 0 {
			res.SkippedRounds++
			continue
		}
		j, err := b.Criterion(yTrue, yPred, split.InBag)
		if err != nil {
			res.SkippedRounds++
			continue
		}
		s := b.score(yTrue, yPred, j, split.OutOfBag)
		if !errors.IsFinite(s) {
			res.SkippedRounds++
			continue
		}
		res.Scores = append(res.Scores, s)
	}
	res.ValidRounds = len(res.Scores)
	res.summarise(b.Alpha)

	logger := b.logger.With(log.OperationKey, log.OperationBootstrap)
	if res.ValidRounds == 0 {
		logger.Warn("No valid bootstrap round", log.RoundsKey, b.Rounds)
	} else {
		logger.Info("Bootstrap bias correction done",
			log.RoundsKey, b.Rounds,
			log.SkippedRoundsKey, res.SkippedRounds,
			log.ScoreKey, res.Mean,
		)
	}
	return res, nil
}

func (r *Result) summarise(alpha float64) {
	if len(r.Scores) == 0 {
		nan := math.NaN()
		r.Mean, r.Std, r.Median, r.Lower, r.Upper = nan, nan, nan, nan, nan
		return
	}
	r.Mean = stat.Mean(r.Scores, nil)
	r.Std = stat.PopStdDev(r.Scores, nil)
	r.Median = metrics.Median(r.Scores)
	r.Lower, r.Upper = ConfidenceInterval(r.Scores, alpha)
}

// ConfidenceInterval returns the alpha/2 and 1-alpha/2 order statistics of
// scores, at indices floor(alpha/2·n) and floor((1-alpha/2)·n) clamped to
// the valid range. When both indices meet, as for alpha = 1, the interval
// collapses to the median of scores. Empty input gives NaN bounds.
func ConfidenceInterval(scores []float64, alpha float64) (lower, upper float64) {
	n := len(scores)
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	lo := int(math.Floor(alpha / 2 * float64(n)))
	hi := int(math.Floor((1 - alpha/2) * float64(n)))
	lo = max(0, min(lo, n-1))
	hi = max(0, min(hi, n-1))
	if lo == hi {
		m := metrics.Median(sorted)
		return m, m
	}
	return sorted[lo], sorted[hi]
}
