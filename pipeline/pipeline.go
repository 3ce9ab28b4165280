// Package pipeline chains transformers and a final estimator into a single
// model.Estimator, routing "step__param" hyperparameters to the right step.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/space"
	"gonum.org/v1/gonum/mat"
)

// Separator joins a step name and a parameter name.
const Separator = "__"

// ParamName returns the pipeline-level name of param on the step called
// prefix.
func ParamName(prefix, param string) string {
	return prefix + Separator + param
}

// Namer returns a space.NameFunc bound to prefix.
func Namer(prefix string) space.NameFunc {
	return func(param string) string { return ParamName(prefix, param) }
}

// Step is one named transformer.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline applies its transformer steps in order and fits the final
// estimator on the result.
type Pipeline struct {
	steps     []Step
	finalName string
	final     model.Estimator
}

// New builds a pipeline. Step names must be unique and must not contain the
// separator.
func New(steps []Step, finalName string, final model.Estimator) (*Pipeline, error) {
	if final == nil {
		return nil, errors.NewValidationError("final", "pipeline needs a final estimator", nil)
	}
	seen := map[string]bool{}
	for _, name := range append(stepNames(steps), finalName) {
		if name == "" || strings.Contains(name, Separator) {
			return nil, errors.NewValidationError("step", "invalid step name", name)
		}
		if seen[name] {
			return nil, errors.NewValidationError("step", "duplicate step name", name)
		}
		seen[name] = true
	}
	for _, s := range steps {
		if s.Transformer == nil {
			return nil, errors.NewValidationError(s.Name, "step has no transformer", nil)
		}
	}
	return &Pipeline{steps: append([]Step(nil), steps...), finalName: finalName, final: final}, nil
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

// Fit fits every transformer on the output of the previous one, then the
// final estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	Xt := X
	for _, s := range p.steps {
		out, err := model.FitTransform(s.Transformer, Xt, y)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %s", s.Name)
		}
		Xt = out
	}
	if err := p.final.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "pipeline step %s", p.finalName)
	}
	return nil
}

func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	for _, s := range p.steps {
		out, err := s.Transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %s", s.Name)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X through the fitted steps and predicts with the final
// estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return p.final.Predict(Xt)
}

// GetParams returns every step's parameters under "step__param" names.
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	for _, s := range p.steps {
		for k, v := range s.Transformer.GetParams() {
			out[ParamName(s.Name, k)] = v
		}
	}
	for k, v := range p.final.GetParams() {
		out[ParamName(p.finalName, k)] = v
	}
	return out
}

// SetParams routes each "step__param" entry to its step. An unknown step or
// a name without the separator is a ValidationError.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	routed := make(map[string]map[string]interface{})
	for key, value := range params {
		step, param, ok := strings.Cut(key, Separator)
		if !ok {
			return errors.NewValidationError(key, "expected step"+Separator+"param", value)
		}
		if routed[step] == nil {
			routed[step] = make(map[string]interface{})
		}
		routed[step][param] = value
	}
	for step, sub := range routed {
		target, err := p.lookup(step)
		if err != nil {
			return err
		}
		if err := target.SetParams(sub); err != nil {
			return errors.Wrapf(err, "pipeline step %s", step)
		}
	}
	return nil
}

func (p *Pipeline) lookup(name string) (model.Parameterized, error) {
	if name == p.finalName {
		return p.final, nil
	}
	for _, s := range p.steps {
		if s.Name == name {
			return s.Transformer, nil
		}
	}
	return nil, errors.NewValidationError(name, "unknown pipeline step", name)
}

// Clone returns an unfitted pipeline whose steps are clones of p's.
func (p *Pipeline) Clone() model.Estimator {
	steps := make([]Step, len(p.steps))
	for i, s := range p.steps {
		steps[i] = Step{Name: s.Name, Transformer: s.Transformer.Clone()}
	}
	return &Pipeline{steps: steps, finalName: p.finalName, final: p.final.Clone()}
}

// String lists the steps in order.
func (p *Pipeline) String() string {
	names := append(stepNames(p.steps), p.finalName)
	return fmt.Sprintf("Pipeline(%s)", strings.Join(names, " -> "))
}
