package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測（n×1 のラベル列）を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Parameterized is implemented by everything whose hyperparameters can be
// read and written by name.
type Parameterized interface {
	// GetParams はハイパーパラメータを取得する
	GetParams() map[string]interface{}

	// SetParams はハイパーパラメータを設定する。未知の名前や型の不一致は
	// ValidationError を返す。
	SetParams(params map[string]interface{}) error
}

// Estimator is the pipeline collaborator contract consumed by model
// selection: clone with independent state, set parameters, fit and predict.
// The core never looks past this interface.
type Estimator interface {
	Fitter
	Predictor
	Parameterized

	// Clone returns an unfitted copy with the same hyperparameters that
	// shares no mutable state with the receiver.
	Clone() Estimator
}

// Classifier is an Estimator that can also report class probabilities.
type Classifier interface {
	Estimator

	// PredictProba returns an n×k matrix of class probabilities, columns
	// ordered as Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []float64
}
