package model

import (
	"math"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// ParamFloat coerces a sampled hyperparameter value into float64.
// Integer kinds are widened; anything else is a ValidationError.
func ParamFloat(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	default:
		return 0, errors.NewValidationError(name, "expected a number", value)
	}
}

// ParamInt coerces a sampled hyperparameter value into int. Floats are
// accepted only when they hold an integral value.
func ParamInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, errors.NewValidationError(name, "expected an integer", value)
		}
		return int(v), nil
	default:
		return 0, errors.NewValidationError(name, "expected an integer", value)
	}
}

// ParamString coerces a sampled hyperparameter value into string.
func ParamString(name string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errors.NewValidationError(name, "expected a string", value)
	}
	return s, nil
}

// ParamBool coerces a sampled hyperparameter value into bool.
func ParamBool(name string, value interface{}) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "expected a bool", value)
	}
	return b, nil
}

// UnknownParam returns the error reported for a parameter name an estimator
// does not recognise.
func UnknownParam(model, name string, value interface{}) error {
	return errors.NewValidationError(name, "unknown parameter for "+model, value)
}
