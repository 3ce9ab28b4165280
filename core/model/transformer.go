package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース。特徴量選択器は教師ラベルを
// 必要とするため、Fit は y を受け取る（不要な変換器は無視してよい）。
type Transformer interface {
	Parameterized

	// Fit は変換に必要なパラメータを学習する
	Fit(X, y mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// Clone returns an unfitted copy with the same hyperparameters.
	Clone() Transformer
}

// FitTransform fits t on (X, y) and transforms X.
func FitTransform(t Transformer, X, y mat.Matrix) (mat.Matrix, error) {
	if err := t.Fit(X, y); err != nil {
		return nil, err
	}
	return t.Transform(X)
}
