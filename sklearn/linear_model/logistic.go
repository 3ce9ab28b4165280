// Package linear_model provides linear classifiers usable as the final
// step of a pipeline.
package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression implements logistic regression for classification.
// Binary problems fit one weight vector; more classes are fit one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "l1", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	classWeight  string  // Class weight: "balanced", "none"
	randomState  int64   // Seed for weight initialisation
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []float64   // Unique class labels, sorted
	nIter_     []int       // Actual iterations per weight vector
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		classWeight:  "none",
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRClassWeight sets the class weighting ("balanced" or "none").
func WithLRClassWeight(mode string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.classWeight = mode
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the seed used to initialise the weights
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "l1" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be one of l1, l2, none", lr.penalty)
	case lr.classWeight != "balanced" && lr.classWeight != "none":
		return errors.NewValidationError("class_weight", "must be balanced or none", lr.classWeight)
	case !(lr.C > 0):
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", lr.maxIter)
	case !(lr.tol > 0):
		return errors.NewValidationError("tol", "must be positive", lr.tol)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X, nSamples, nFeatures); err != nil {
		return err
	}

	labels := mat.Col(nil, 0, y)
	lr.extractClasses(labels)
	if len(lr.classes_) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(lr.classes_)))
	}

	weights := lr.sampleWeights(labels)
	lr.initializeWeights(nFeatures)

	Xd := mat.DenseCopyOf(X)
	target := make([]float64, nSamples)
	positives := lr.classes_[1:]
	if len(lr.classes_) > 2 {
		positives = lr.classes_
	}
	for k, pos := range positives {
		for i, label := range labels {
			target[i] = 0
			if label == pos {
				target[i] = 1
			}
		}
		lr.nIter_[k] = lr.fitBinary(Xd, target, weights, lr.coef_[k], &lr.intercept_[k])
		if lr.nIter_[k] == lr.maxIter {
			errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
				"gradient did not fall below tol; increase max_iter"))
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(labels []float64) {
	seen := make(map[float64]struct{})
	lr.classes_ = lr.classes_[:0]
	for _, label := range labels {
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			lr.classes_ = append(lr.classes_, label)
		}
	}
	sort.Float64s(lr.classes_)
}

// sampleWeights returns per-sample weights normalised to mean 1.
func (lr *LogisticRegression) sampleWeights(labels []float64) []float64 {
	w := make([]float64, len(labels))
	if lr.classWeight != "balanced" {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	counts := make(map[float64]int)
	for _, label := range labels {
		counts[label]++
	}
	k := float64(len(counts))
	for i, label := range labels {
		w[i] = float64(len(labels)) / (k * float64(counts[label]))
	}
	return w
}

// initializeWeights initializes model weights with small seeded noise
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	n := 1
	if len(lr.classes_) > 2 {
		n = len(lr.classes_)
	}
	rng := rand.New(rand.NewPCG(uint64(lr.randomState), uint64(lr.randomState)))
	lr.coef_ = make([][]float64, n)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = rng.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, n)
	lr.nIter_ = make([]int, n)
}

// fitBinary runs gradient descent on the weighted log-loss for 0/1 targets
// and returns the number of iterations used. L1 is applied as a proximal
// soft-threshold step after each gradient update.
func (lr *LogisticRegression) fitBinary(X *mat.Dense, target, sw []float64, coef []float64, intercept *float64) int {
	nSamples, nFeatures := X.Dims()
	w := mat.NewVecDense(nFeatures, coef)
	z := mat.NewVecDense(nSamples, nil)
	residual := mat.NewVecDense(nSamples, nil)
	grad := mat.NewVecDense(nFeatures, nil)
	lambda := 1.0 / (lr.C * float64(nSamples))

	baseLearningRate := 1.0
	iter := 0
	for iter < lr.maxIter {
		z.MulVec(X, w)
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			e := sw[i] * (sigmoid(z.AtVec(i)+*intercept) - target[i])
			residual.SetVec(i, e)
			gradIntercept += e
		}
		grad.MulVec(X.T(), residual)
		grad.ScaleVec(1/float64(nSamples), grad)
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			grad.AddScaledVec(grad, lambda, w)
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		w.AddScaledVec(w, -learningRate, grad)
		if lr.penalty == "l1" {
			shrink := learningRate * lambda
			for j := 0; j < nFeatures; j++ {
				v := w.AtVec(j)
				w.SetVec(j, math.Copysign(math.Max(math.Abs(v)-shrink, 0), v))
			}
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}
		iter++

		maxGrad := math.Max(math.Abs(gradIntercept), mat.Norm(grad, math.Inf(1)))
		if maxGrad < lr.tol {
			break
		}
	}
	return iter
}

// decision returns the n × len(coef_) matrix of linear scores.
func (lr *LogisticRegression) decision(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "Predict"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression.Predict", nFeatures); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("LogisticRegression.Predict", X, nSamples, nFeatures); err != nil {
		return nil, err
	}

	W := mat.NewDense(len(lr.coef_), nFeatures, nil)
	for k, row := range lr.coef_ {
		W.SetRow(k, row)
	}
	scores := mat.NewDense(nSamples, len(lr.coef_), nil)
	scores.Mul(X, W.T())
	scores.Apply(func(_, k int, v float64) float64 { return v + lr.intercept_[k] }, scores)
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.decision(X)
	if err != nil {
		return nil, err
	}
	nSamples, nCols := scores.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if nCols == 1 {
			label := lr.classes_[0]
			if sigmoid(scores.At(i, 0)) >= 0.5 {
				label = lr.classes_[1]
			}
			predictions.Set(i, 0, label)
			continue
		}
		best := 0
		for k := 1; k < nCols; k++ {
			if scores.At(i, k) > scores.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, lr.classes_[best])
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.decision(X)
	if err != nil {
		return nil, err
	}
	nSamples, nCols := scores.Dims()
	probas := mat.NewDense(nSamples, len(lr.classes_), nil)
	for i := 0; i < nSamples; i++ {
		if nCols == 1 {
			p := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		// one-vs-rest scores are normalised across classes
		row := probas.RawRowView(i)
		sum := 0.0
		for k := range row {
			row[k] = sigmoid(scores.At(i, k))
			sum += row[k]
		}
		for k := range row {
			row[k] /= sum
		}
	}
	return probas, nil
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []float64 {
	return append([]float64(nil), lr.classes_...)
}

// NIter returns the iterations used per fitted weight vector.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"class_weight":  lr.classWeight,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters. Values are coerced, so a
// sampled float for max_iter is accepted when it is integral.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.ParamString(key, value)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.ParamBool(key, value)
		case "class_weight":
			lr.classWeight, err = model.ParamString(key, value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			lr.randomState = int64(seed)
		case "max_iter":
			lr.maxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.tol, err = model.ParamFloat(key, value)
		default:
			err = model.UnknownParam("LogisticRegression", key, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Estimator {
	return &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      lr.penalty,
		C:            lr.C,
		fitIntercept: lr.fitIntercept,
		classWeight:  lr.classWeight,
		randomState:  lr.randomState,
		maxIter:      lr.maxIter,
		tol:          lr.tol,
	}
}

// String returns a compact description of the hyperparameters.
func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, class_weight=%s)", lr.penalty, lr.C, lr.classWeight)
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}
