package space

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind identifies the sampling distribution of a Param.
type Kind int

const (
	// KindChoice samples uniformly from a fixed list of values.
	KindChoice Kind = iota
	// KindUniform samples a float64 uniformly from [Low, High].
	KindUniform
	// KindLogUniform samples a float64 whose logarithm is uniform on
	// [log Low, log High].
	KindLogUniform
	// KindIntUniform samples an int uniformly from Low..High inclusive.
	KindIntUniform
)

// String returns the distribution name.
func (k Kind) String() string {
	switch k {
	case KindChoice:
		return "choice"
	case KindUniform:
		return "uniform"
	case KindLogUniform:
		return "loguniform"
	case KindIntUniform:
		return "randint"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Param is one named hyperparameter and its prior distribution.
type Param struct {
	Name    string
	Kind    Kind
	Low     float64
	High    float64
	Choices []interface{}
}

// Choice declares a categorical parameter.
func Choice(name string, values ...interface{}) Param {
	return Param{Name: name, Kind: KindChoice, Choices: values}
}

// Uniform declares a float parameter on [low, high].
func Uniform(name string, low, high float64) Param {
	return Param{Name: name, Kind: KindUniform, Low: low, High: high}
}

// LogUniform declares a positive float parameter sampled on a log scale.
func LogUniform(name string, low, high float64) Param {
	return Param{Name: name, Kind: KindLogUniform, Low: low, High: high}
}

// IntUniform declares an integer parameter on low..high inclusive.
func IntUniform(name string, low, high int) Param {
	return Param{Name: name, Kind: KindIntUniform, Low: float64(low), High: float64(high)}
}

func (p Param) validate() error {
	if p.Name == "" {
		return errors.NewValidationError("name", "parameter name must not be empty", p.Name)
	}
	switch p.Kind {
	case KindChoice:
		if len(p.Choices) == 0 {
			return errors.NewValidationError(p.Name, "choice needs at least one value", p.Choices)
		}
	case KindUniform, KindIntUniform:
		if !(p.Low <= p.High) {
			return errors.NewValidationError(p.Name, "low must not exceed high", [2]float64{p.Low, p.High})
		}
	case KindLogUniform:
		if !(p.Low > 0 && p.Low <= p.High) {
			return errors.NewValidationError(p.Name, "loguniform bounds must satisfy 0 < low <= high", [2]float64{p.Low, p.High})
		}
	default:
		return errors.NewValidationError(p.Name, "unknown distribution", p.Kind)
	}
	return nil
}

// Bounds returns the support of the parameter in its internal (search)
// representation: raw value for uniform and int, log value for
// loguniform, and choice index for categorical.
func (p Param) Bounds() (lo, hi float64) {
	switch p.Kind {
	case KindChoice:
		return 0, float64(len(p.Choices) - 1)
	case KindLogUniform:
		return math.Log(p.Low), math.Log(p.High)
	case KindIntUniform:
		// widen by half a step so rounding gives each integer equal mass
		return p.Low - 0.5, p.High + 0.5
	default:
		return p.Low, p.High
	}
}

// Sample draws a value from the prior.
func (p Param) Sample(rng *rand.Rand) interface{} {
	if p.Kind == KindChoice {
		w := make([]float64, len(p.Choices))
		for i := range w {
			w[i] = 1
		}
		return p.Choices[int(distuv.NewCategorical(w, rng).Rand())]
	}
	lo, hi := p.Bounds()
	if lo == hi {
		return p.Decode(lo)
	}
	return p.Decode(distuv.Uniform{Min: lo, Max: hi, Src: rng}.Rand())
}

// Decode maps an internal value back to a parameter value, clamping it to
// the support.
func (p Param) Decode(x float64) interface{} {
	switch p.Kind {
	case KindChoice:
		i := int(math.Round(x))
		i = max(0, min(i, len(p.Choices)-1))
		return p.Choices[i]
	case KindLogUniform:
		return clamp(math.Exp(x), p.Low, p.High)
	case KindIntUniform:
		return int(clamp(math.Round(x), p.Low, p.High))
	default:
		return clamp(x, p.Low, p.High)
	}
}

// Encode maps a parameter value to its internal representation. It fails
// when the value has the wrong type or lies outside the support.
func (p Param) Encode(v interface{}) (float64, error) {
	switch p.Kind {
	case KindChoice:
		for i, c := range p.Choices {
			if c == v {
				return float64(i), nil
			}
		}
		return 0, errors.NewValidationError(p.Name, "value is not one of the choices", v)
	case KindIntUniform:
		n, ok := v.(int)
		if !ok {
			return 0, errors.NewValidationError(p.Name, "expected an int", v)
		}
		if float64(n) < p.Low || float64(n) > p.High {
			return 0, errors.NewValidationError(p.Name, "value outside range", v)
		}
		return float64(n), nil
	default:
		f, ok := v.(float64)
		if !ok {
			return 0, errors.NewValidationError(p.Name, "expected a float64", v)
		}
		if f < p.Low || f > p.High || math.IsNaN(f) {
			return 0, errors.NewValidationError(p.Name, "value outside range", v)
		}
		if p.Kind == KindLogUniform {
			return math.Log(f), nil
		}
		return f, nil
	}
}

// String renders the parameter the way hyperopt prints its spaces.
func (p Param) String() string {
	if p.Kind == KindChoice {
		return fmt.Sprintf("%s ~ choice%v", p.Name, p.Choices)
	}
	return fmt.Sprintf("%s ~ %s(%g, %g)", p.Name, p.Kind, p.Low, p.High)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
