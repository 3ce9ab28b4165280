package metrics

import (
	"sort"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

var scorers = map[string]ScoreFunc{
	"accuracy":                 Accuracy,
	"balanced_accuracy":        BalancedAccuracy,
	"f1":                       F1,
	"matthews_corrcoef_scaled": MatthewsCorrCoef,
	"roc_auc":                  ROCAUC,
}

// Scorer returns the scoring function registered under name.
func Scorer(name string) (ScoreFunc, error) {
	fn, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer", name)
	}
	return fn, nil
}

// ScorerNames lists the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
