// Package space describes hyperparameter search spaces: named prior
// distributions, the configurations sampled from them, and builders for the
// spaces of the selectors and classifiers in the pipeline catalogue.
package space

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// Space is an immutable set of parameters ordered by name.
type Space struct {
	params []Param
}

// New validates params and builds a Space. Names must be unique.
func New(params ...Param) (Space, error) {
	seen := make(map[string]struct{}, len(params))
	out := make([]Param, 0, len(params))
	for _, p := range params {
		if err := p.validate(); err != nil {
			return Space{}, err
		}
		if _, dup := seen[p.Name]; dup {
			return Space{}, errors.NewValidationError(p.Name, "duplicate parameter", p.Name)
		}
		seen[p.Name] = struct{}{}
		p.Choices = append([]interface{}(nil), p.Choices...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return Space{params: out}, nil
}

// MustNew is New for spaces declared in code; it panics on an invalid space.
func MustNew(params ...Param) Space {
	s, err := New(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Merge combines spaces. Parameter names must stay unique.
func Merge(spaces ...Space) (Space, error) {
	var all []Param
	for _, s := range spaces {
		all = append(all, s.params...)
	}
	return New(all...)
}

// Len returns the number of parameters.
func (s Space) Len() int { return len(s.params) }

// Params returns a copy of the parameters in name order.
func (s Space) Params() []Param {
	return append([]Param(nil), s.params...)
}

// Lookup returns the parameter called name.
func (s Space) Lookup(name string) (Param, bool) {
	i := sort.Search(len(s.params), func(i int) bool { return s.params[i].Name >= name })
	if i < len(s.params) && s.params[i].Name == name {
		return s.params[i], true
	}
	return Param{}, false
}

// Sample draws a configuration from the prior. Parameters are drawn in
// name order so the result depends only on rng's state.
func (s Space) Sample(rng *rand.Rand) Configuration {
	cfg := make(Configuration, len(s.params))
	for _, p := range s.params {
		cfg[p.Name] = p.Sample(rng)
	}
	return cfg
}

// Validate checks that cfg assigns a value of the right type inside the
// support to every parameter and nothing else.
func (s Space) Validate(cfg Configuration) error {
	if len(cfg) != len(s.params) {
		return errors.NewValidationError("configuration",
			fmt.Sprintf("expected %d parameters, got %d", len(s.params), len(cfg)), cfg.Keys())
	}
	for _, p := range s.params {
		v, ok := cfg[p.Name]
		if !ok {
			return errors.NewValidationError(p.Name, "missing from configuration", nil)
		}
		if _, err := p.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func (s Space) String() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Configuration is a concrete assignment of values to parameter names.
type Configuration map[string]interface{}

// Keys returns the parameter names in sorted order.
func (c Configuration) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy; values are scalars.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Equal reports whether both configurations assign the same values.
func (c Configuration) Equal(o Configuration) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		if w, ok := o[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// String renders the configuration with sorted keys.
func (c Configuration) String() string {
	parts := make([]string, 0, len(c))
	for _, k := range c.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
