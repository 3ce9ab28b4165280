package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// thresholdModel predicts 1 when the first feature exceeds threshold. It
// never learns anything, which keeps objective tests exact.
type thresholdModel struct {
	threshold    float64
	failFit      bool
	panicPredict bool
	fitted       bool
	fits         *int
}

func (m *thresholdModel) Fit(X, y mat.Matrix) error {
	if m.fits != nil {
		*m.fits++
	}
	if m.failFit {
		return errors.New("fit refused")
	}
	m.fitted = true
	return nil
}

func (m *thresholdModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.fitted {
		return nil, errors.NewNotFittedError("thresholdModel", "Predict")
	}
	if m.panicPredict {
		panic("predict exploded")
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if X.At(i, 0) > m.threshold {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

func (m *thresholdModel) GetParams() map[string]interface{} {
	return map[string]interface{}{"threshold": m.threshold, "fail_fit": m.failFit}
}

func (m *thresholdModel) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		switch name {
		case "threshold":
			f, err := model.ParamFloat(name, v)
			if err != nil {
				return err
			}
			m.threshold = f
		case "fail_fit":
			b, err := model.ParamBool(name, v)
			if err != nil {
				return err
			}
			m.failFit = b
		case "panic_predict":
			b, err := model.ParamBool(name, v)
			if err != nil {
				return err
			}
			m.panicPredict = b
		default:
			return model.UnknownParam("thresholdModel", name, v)
		}
	}
	return nil
}

func (m *thresholdModel) Clone() model.Estimator {
	c := *m
	c.fitted = false
	return &c
}

// separable returns n samples whose first feature is label + noise in
// [-0.4, 0.4]; threshold 0.5 classifies every sample correctly.
func separable(n int, seed uint64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := range y {
		y[i] = float64(i % 2)
		X.Set(i, 0, y[i]+0.8*(rng.Float64()-0.5))
		X.Set(i, 1, rng.NormFloat64())
	}
	return X, y
}
