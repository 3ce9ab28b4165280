package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// selectColumns returns the columns of X listed in support, in order.
func selectColumns(X mat.Matrix, support []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(support), nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for k, j := range support {
			row[k] = X.At(i, j)
		}
	}
	return out
}

// VarianceThreshold は分散が閾値以下の特徴量を除去する
type VarianceThreshold struct {
	state *model.StateManager

	// Threshold 以下の分散を持つ特徴量は除去される
	Threshold float64

	// Variances は学習データの各特徴量の分散
	Variances []float64

	support []int
}

// NewVarianceThreshold creates a selector dropping features whose variance
// does not exceed threshold.
func NewVarianceThreshold(threshold float64) *VarianceThreshold {
	return &VarianceThreshold{
		state:     model.NewStateManager(),
		Threshold: threshold,
	}
}

// Fit は各特徴量の分散を計算し、残す特徴量を決める。y は使わない。
func (v *VarianceThreshold) Fit(X, _ mat.Matrix) error {
	if v.Threshold < 0 {
		return errors.NewValidationError("threshold", "must be non-negative", v.Threshold)
	}
	r, c, err := checkFitInput("VarianceThreshold.Fit", X)
	if err != nil {
		return err
	}

	v.Variances = make([]float64, c)
	v.support = v.support[:0]
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		_, v.Variances[j] = stat.PopMeanVariance(column(X, j, col), nil)
		if v.Variances[j] > v.Threshold {
			v.support = append(v.support, j)
		}
	}
	if len(v.support) == 0 {
		return errors.NewValueError("VarianceThreshold.Fit",
			fmt.Sprintf("no feature meets the variance threshold %.5g", v.Threshold))
	}

	v.state.SetDimensions(c, r)
	v.state.SetFitted()
	return nil
}

// Transform は選択された特徴量のみを返す
func (v *VarianceThreshold) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := v.state.RequireFitted("VarianceThreshold", "Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := v.state.RequireFeatures("VarianceThreshold.Transform", c); err != nil {
		return nil, err
	}
	return selectColumns(X, v.support), nil
}

// Support returns the indices of the retained features.
func (v *VarianceThreshold) Support() []int {
	return append([]int(nil), v.support...)
}

// GetParams returns the selector's hyperparameters.
func (v *VarianceThreshold) GetParams() map[string]interface{} {
	return map[string]interface{}{"threshold": v.Threshold}
}

// SetParams sets threshold.
func (v *VarianceThreshold) SetParams(params map[string]interface{}) error {
	for name, value := range params {
		if name != "threshold" {
			return model.UnknownParam("VarianceThreshold", name, value)
		}
		f, err := model.ParamFloat(name, value)
		if err != nil {
			return err
		}
		v.Threshold = f
	}
	return nil
}

// Clone returns an unfitted selector with the same threshold.
func (v *VarianceThreshold) Clone() model.Transformer {
	return NewVarianceThreshold(v.Threshold)
}

// FisherScore は Fisher スコア上位 K 個の特徴量を選択する
//
// 特徴量 j のスコアはクラス間分散とクラス内分散の比:
//
//	F_j = Σ_c n_c (μ_cj - μ_j)² / Σ_c n_c σ²_cj
//
// 選択された特徴量は元の列順で返す。
type FisherScore struct {
	state *model.StateManager

	// K は残す特徴量の数。特徴量数を超える場合は全て残す
	K int

	// Scores は学習データで計算した各特徴量のスコア
	Scores []float64

	support []int
}

// NewFisherScore creates a selector keeping the k highest-scoring features.
func NewFisherScore(k int) *FisherScore {
	return &FisherScore{
		state: model.NewStateManager(),
		K:     k,
	}
}

// Fit computes per-feature Fisher scores from (X, y).
func (f *FisherScore) Fit(X, y mat.Matrix) error {
	if f.K < 1 {
		return errors.NewValidationError("k", "must be at least 1", f.K)
	}
	r, c, err := checkFitInput("FisherScore.Fit", X)
	if err != nil {
		return err
	}
	if y == nil {
		return errors.NewValueError("FisherScore.Fit", "requires target labels")
	}
	if yr, _ := y.Dims(); yr != r {
		return errors.NewDimensionError("FisherScore.Fit", r, yr, 0)
	}

	groups := make(map[float64][]int)
	for i := 0; i < r; i++ {
		label := y.At(i, 0)
		groups[label] = append(groups[label], i)
	}

	f.Scores = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		column(X, j, col)
		mu := stat.Mean(col, nil)
		var between, within float64
		for _, idx := range groups {
			vals := make([]float64, len(idx))
			for k, i := range idx {
				vals[k] = col[i]
			}
			m, s2 := stat.PopMeanVariance(vals, nil)
			n := float64(len(idx))
			between += n * (m - mu) * (m - mu)
			within += n * s2
		}
		switch {
		case within > 0:
			f.Scores[j] = between / within
		case between > 0:
			f.Scores[j] = math.Inf(1)
		}
	}

	order := make([]int, c)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return f.Scores[order[a]] > f.Scores[order[b]] })
	k := min(f.K, c)
	f.support = append(f.support[:0], order[:k]...)
	sort.Ints(f.support)

	f.state.SetDimensions(c, r)
	f.state.SetFitted()
	return nil
}

// Transform returns the selected columns of X.
func (f *FisherScore) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("FisherScore", "Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := f.state.RequireFeatures("FisherScore.Transform", c); err != nil {
		return nil, err
	}
	return selectColumns(X, f.support), nil
}

// Support returns the indices of the retained features.
func (f *FisherScore) Support() []int {
	return append([]int(nil), f.support...)
}

// GetParams returns the selector's hyperparameters.
func (f *FisherScore) GetParams() map[string]interface{} {
	return map[string]interface{}{"k": f.K}
}

// SetParams sets k.
func (f *FisherScore) SetParams(params map[string]interface{}) error {
	for name, value := range params {
		if name != "k" {
			return model.UnknownParam("FisherScore", name, value)
		}
		k, err := model.ParamInt(name, value)
		if err != nil {
			return err
		}
		f.K = k
	}
	return nil
}

// Clone returns an unfitted selector with the same k.
func (f *FisherScore) Clone() model.Transformer {
	return NewFisherScore(f.K)
}
