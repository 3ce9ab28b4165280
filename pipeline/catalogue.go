package pipeline

import (
	"sort"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/preprocessing"
	"github.com/ahmedalbuni/biorad/sklearn/linear_model"
	"github.com/ahmedalbuni/biorad/sklearn/naive_bayes"
	"github.com/ahmedalbuni/biorad/sklearn/tree"
	"github.com/ahmedalbuni/biorad/space"
)

// Step names used by catalogue pipelines.
const (
	ScalerStep     = "scaler"
	SelectorStep   = "selector"
	ClassifierStep = "clf"
)

// Entry is one catalogue pipeline and its search space.
type Entry struct {
	ID       string
	Pipeline *Pipeline
	Space    space.Space
}

// CatalogueOptions bounds the selector spaces and picks the scaler.
type CatalogueOptions struct {
	// NumFeatures is the column count of the dataset.
	NumFeatures int
	// Scaler is "standard" (default) or "minmax".
	Scaler string
	// VarianceThreshold bounds the sampled variance cut-off.
	VarianceMin, VarianceMax float64
	// FisherKMin and FisherKMax bound the number of kept features; zero
	// values default to 5 and NumFeatures-2, clamped to the feature count.
	FisherKMin, FisherKMax int
	// Seed initialises seeded estimators.
	Seed int64
}

type selectorFactory func(opts CatalogueOptions, name space.NameFunc) (model.Transformer, space.Space)

type classifierFactory func(opts CatalogueOptions, name space.NameFunc) (model.Estimator, space.Space)

var selectors = map[string]selectorFactory{
	"none": nil,
	"variance_threshold": func(opts CatalogueOptions, name space.NameFunc) (model.Transformer, space.Space) {
		return preprocessing.NewVarianceThreshold(opts.VarianceMin),
			space.VarianceThresholdSpace(name, opts.VarianceMin, opts.VarianceMax)
	},
	"fisher_score": func(opts CatalogueOptions, name space.NameFunc) (model.Transformer, space.Space) {
		lo, hi := opts.fisherBounds()
		return preprocessing.NewFisherScore(hi), space.FisherScoreSpace(name, lo, hi)
	},
}

var classifiers = map[string]classifierFactory{
	"logreg": func(opts CatalogueOptions, name space.NameFunc) (model.Estimator, space.Space) {
		return linear_model.NewLogisticRegression(
				linear_model.WithLRMaxIter(1000),
				linear_model.WithLRRandomState(opts.Seed),
			),
			space.LogisticRegressionSpace(name)
	},
	"gnb": func(_ CatalogueOptions, name space.NameFunc) (model.Estimator, space.Space) {
		return naive_bayes.NewGaussianNBDefault(), space.GaussianNBSpace(name)
	},
	"tree": func(_ CatalogueOptions, name space.NameFunc) (model.Estimator, space.Space) {
		return tree.NewDecisionTreeClassifier(), space.DecisionTreeSpace(name)
	},
}

func (o CatalogueOptions) fisherBounds() (int, int) {
	n := max(o.NumFeatures, 1)
	lo, hi := o.FisherKMin, o.FisherKMax
	if lo <= 0 {
		lo = 5
	}
	if hi <= 0 {
		hi = n - 2
	}
	hi = max(1, min(hi, n))
	lo = max(1, min(lo, hi))
	return lo, hi
}

func (o CatalogueOptions) scaler() (model.Transformer, error) {
	switch o.Scaler {
	case "", "standard":
		return preprocessing.NewStandardScalerDefault(), nil
	case "minmax":
		return preprocessing.NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaler", "must be standard or minmax", o.Scaler)
	}
}

// PipelineID names the selector/classifier combination.
func PipelineID(selector, classifier string) string {
	return selector + "_" + classifier
}

// Build assembles scaler → selector → classifier and merges the selector
// and classifier spaces. The "none" selector omits the selection step.
func Build(selector, classifier string, opts CatalogueOptions) (Entry, error) {
	selFactory, ok := selectors[selector]
	if !ok {
		return Entry{}, errors.NewValidationError("selector", "unknown selector", selector)
	}
	clfFactory, ok := classifiers[classifier]
	if !ok {
		return Entry{}, errors.NewValidationError("classifier", "unknown classifier", classifier)
	}
	if opts.VarianceMax == 0 {
		opts.VarianceMax = 0.5
	}

	scaler, err := opts.scaler()
	if err != nil {
		return Entry{}, err
	}
	steps := []Step{{Name: ScalerStep, Transformer: scaler}}
	var spaces []space.Space
	if selFactory != nil {
		sel, selSpace := selFactory(opts, Namer(SelectorStep))
		steps = append(steps, Step{Name: SelectorStep, Transformer: sel})
		spaces = append(spaces, selSpace)
	}
	clf, clfSpace := clfFactory(opts, Namer(ClassifierStep))
	spaces = append(spaces, clfSpace)

	p, err := New(steps, ClassifierStep, clf)
	if err != nil {
		return Entry{}, err
	}
	merged, err := space.Merge(spaces...)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: PipelineID(selector, classifier), Pipeline: p, Space: merged}, nil
}

// Catalogue builds every selector × classifier combination, ordered by ID.
func Catalogue(selectorNames, classifierNames []string, opts CatalogueOptions) ([]Entry, error) {
	var entries []Entry
	for _, s := range selectorNames {
		for _, c := range classifierNames {
			e, err := Build(s, c, opts)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// SelectorNames lists the known selectors.
func SelectorNames() []string { return sortedKeys(selectors) }

// ClassifierNames lists the known classifiers.
func ClassifierNames() []string { return sortedKeys(classifiers) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
