// Package naive_bayes provides naive Bayes classifiers.
package naive_bayes

import (
	"fmt"
	"math"
	"sort"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GaussianNB はガウス分布を仮定したナイーブベイズ分類器
//
// 各クラス・各特徴量の平均と分散を推定し、対数尤度の和と事前確率から
// 事後確率を求める。分散には全特徴量の最大分散 × VarSmoothing を加えて
// 数値的に安定させる。
type GaussianNB struct {
	state *model.StateManager

	// VarSmoothing は分散に加える平滑化係数（デフォルト 1e-9）
	VarSmoothing float64

	classes []float64
	prior   []float64   // log P(c)
	theta   [][]float64 // 平均 [class][feature]
	sigma   [][]float64 // 分散 [class][feature]
}

// NewGaussianNB creates a classifier with the given variance smoothing.
func NewGaussianNB(varSmoothing float64) *GaussianNB {
	return &GaussianNB{
		state:        model.NewStateManager(),
		VarSmoothing: varSmoothing,
	}
}

// NewGaussianNBDefault uses var_smoothing = 1e-9.
func NewGaussianNBDefault() *GaussianNB {
	return NewGaussianNB(1e-9)
}

// Fit はクラスごとの平均・分散・事前確率を推定する
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	if !(nb.VarSmoothing >= 0) {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.VarSmoothing)
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("GaussianNB.Fit", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != nSamples {
		return errors.NewDimensionError("GaussianNB.Fit", nSamples, yr, 0)
	}
	if err := errors.CheckMatrix("GaussianNB.Fit", X, nSamples, nFeatures); err != nil {
		return err
	}

	groups := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		groups[label] = append(groups[label], i)
	}
	nb.classes = nb.classes[:0]
	for label := range groups {
		nb.classes = append(nb.classes, label)
	}
	sort.Float64s(nb.classes)

	col := make([]float64, nSamples)
	maxVar := 0.0
	for j := 0; j < nFeatures; j++ {
		for i := range col {
			col[i] = X.At(i, j)
		}
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	epsilon := nb.VarSmoothing * maxVar
	if epsilon == 0 {
		epsilon = 1e-12
	}

	k := len(nb.classes)
	nb.prior = make([]float64, k)
	nb.theta = make([][]float64, k)
	nb.sigma = make([][]float64, k)
	for c, label := range nb.classes {
		idx := groups[label]
		nb.prior[c] = math.Log(float64(len(idx)) / float64(nSamples))
		nb.theta[c] = make([]float64, nFeatures)
		nb.sigma[c] = make([]float64, nFeatures)
		vals := make([]float64, len(idx))
		for j := 0; j < nFeatures; j++ {
			for n, i := range idx {
				vals[n] = X.At(i, j)
			}
			m, v := stat.PopMeanVariance(vals, nil)
			nb.theta[c][j] = m
			nb.sigma[c][j] = v + epsilon
		}
	}

	nb.state.SetDimensions(nFeatures, nSamples)
	nb.state.SetFitted()
	return nil
}

// jointLogLikelihood returns log P(c) + Σ_j log N(x_j | θ_cj, σ_cj) per class.
func (nb *GaussianNB) jointLogLikelihood(X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("GaussianNB", "Predict"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := nb.state.RequireFeatures("GaussianNB.Predict", nFeatures); err != nil {
		return nil, err
	}

	jll := mat.NewDense(nSamples, len(nb.classes), nil)
	for i := 0; i < nSamples; i++ {
		for c := range nb.classes {
			ll := nb.prior[c]
			for j := 0; j < nFeatures; j++ {
				d := X.At(i, j) - nb.theta[c][j]
				ll -= 0.5*math.Log(2*math.Pi*nb.sigma[c][j]) + d*d/(2*nb.sigma[c][j])
			}
			jll.Set(i, c, ll)
		}
	}
	return jll, nil
}

// Predict は事後確率が最大のクラスを返す
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := jll.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		pred.Set(i, 0, nb.classes[floats.MaxIdx(jll.RawRowView(i))])
	}
	return pred, nil
}

// PredictProba は各クラスの事後確率を返す
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := jll.Dims()
	for i := 0; i < nSamples; i++ {
		row := jll.RawRowView(i)
		norm := errors.LogSumExp(row)
		for c := range row {
			row[c] = math.Exp(row[c] - norm)
		}
	}
	return jll, nil
}

// Classes returns the sorted class labels seen during Fit.
func (nb *GaussianNB) Classes() []float64 {
	return append([]float64(nil), nb.classes...)
}

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{"var_smoothing": nb.VarSmoothing}
}

// SetParams sets var_smoothing.
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for name, value := range params {
		if name != "var_smoothing" {
			return model.UnknownParam("GaussianNB", name, value)
		}
		v, err := model.ParamFloat(name, value)
		if err != nil {
			return err
		}
		nb.VarSmoothing = v
	}
	return nil
}

// Clone returns an unfitted copy.
func (nb *GaussianNB) Clone() model.Estimator {
	return NewGaussianNB(nb.VarSmoothing)
}

func (nb *GaussianNB) String() string {
	return fmt.Sprintf("GaussianNB(var_smoothing=%g)", nb.VarSmoothing)
}
