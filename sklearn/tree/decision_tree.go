// Package tree provides CART decision tree classifiers.
package tree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/core/model"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree; 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the smallest node that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the smallest allowed leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// node は木の1ノード。feature < 0 なら葉
type node struct {
	feature     int
	threshold   float64
	left, right int

	// proba はノード内のクラス比率
	proba []float64
}

// DecisionTreeClassifier は CART 分類木
//
// 各ノードで全特徴量・全分割点を走査し、不純度の減少が最大となる分割を選ぶ。
// 同点の場合は特徴量番号、分割点の小さい方を優先するので学習は決定的。
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int

	classes     []float64
	nClasses    int
	nodes       []node
	depth       int
	nLeaves     int
	importances []float64
}

// NewDecisionTreeClassifier creates a tree with sklearn's defaults: gini,
// unlimited depth, min_samples_split 2 and min_samples_leaf 1.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	case dt.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", dt.maxDepth)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit grows the tree on X and the label column y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yr, 0)
	}
	if err := errors.CheckMatrix("DecisionTreeClassifier.Fit", X, nSamples, nFeatures); err != nil {
		return err
	}

	seen := make(map[float64]bool)
	dt.classes = dt.classes[:0]
	for i := 0; i < nSamples; i++ {
		if label := y.At(i, 0); !seen[label] {
			seen[label] = true
			dt.classes = append(dt.classes, label)
		}
	}
	sort.Float64s(dt.classes)
	dt.nClasses = len(dt.classes)
	index := make(map[float64]int, dt.nClasses)
	for c, label := range dt.classes {
		index[label] = c
	}

	g := &grower{
		dt:      dt,
		X:       mat.DenseCopyOf(X),
		labels:  make([]int, nSamples),
		nTotal:  float64(nSamples),
		gains:   make([]float64, nFeatures),
		scratch: make([]int, nSamples),
	}
	for i := 0; i < nSamples; i++ {
		g.labels[i] = index[y.At(i, 0)]
	}
	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	dt.nodes = dt.nodes[:0]
	dt.depth, dt.nLeaves = 0, 0
	g.grow(indices, 0)

	dt.importances = g.gains
	if total := floats.Sum(dt.importances); total > 0 {
		floats.Scale(1/total, dt.importances)
	}

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// grower holds the per-Fit state of the recursive split search.
type grower struct {
	dt      *DecisionTreeClassifier
	X       *mat.Dense
	labels  []int
	nTotal  float64
	gains   []float64
	scratch []int
}

func (g *grower) counts(indices []int) []float64 {
	counts := make([]float64, g.dt.nClasses)
	for _, i := range indices {
		counts[g.labels[i]]++
	}
	return counts
}

func (g *grower) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	imp := 0.0
	if g.dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, c := range counts {
		p := c / n
		imp -= p * p
	}
	return imp
}

type split struct {
	feature   int
	threshold float64
	decrease  float64

	// at is the number of samples sent left once indices are sorted by feature.
	at int
}

// grow adds the subtree over indices and returns its node index.
func (g *grower) grow(indices []int, depth int) int {
	dt := g.dt
	n := float64(len(indices))
	counts := g.counts(indices)
	imp := g.impurity(counts, n)

	proba := make([]float64, len(counts))
	for c, v := range counts {
		proba[c] = v / n
	}
	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{feature: -1, proba: proba})
	dt.depth = max(dt.depth, depth)

	if (dt.maxDepth > 0 && depth >= dt.maxDepth) || len(indices) < dt.minSamplesSplit || imp == 0 {
		dt.nLeaves++
		return id
	}
	best, ok := g.bestSplit(indices, counts, imp)
	if !ok {
		dt.nLeaves++
		return id
	}

	sorted := g.sortBy(indices, best.feature)
	left := append([]int(nil), sorted[:best.at]...)
	right := append([]int(nil), sorted[best.at:]...)
	g.gains[best.feature] += n / g.nTotal * best.decrease

	dt.nodes[id].feature = best.feature
	dt.nodes[id].threshold = best.threshold
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	dt.nodes[id].left, dt.nodes[id].right = l, r
	return id
}

// sortBy orders indices by feature into the scratch buffer.
func (g *grower) sortBy(indices []int, feature int) []int {
	sorted := g.scratch[:len(indices)]
	copy(sorted, indices)
	sort.SliceStable(sorted, func(a, b int) bool {
		return g.X.At(sorted[a], feature) < g.X.At(sorted[b], feature)
	})
	return sorted
}

// bestSplit scans every threshold between distinct consecutive values. A
// split with zero impurity decrease is still accepted so XOR-like patterns
// can be separated deeper down.
func (g *grower) bestSplit(indices []int, counts []float64, parent float64) (split, bool) {
	n := len(indices)
	minLeaf := g.dt.minSamplesLeaf
	best := split{decrease: math.Inf(-1)}
	found := false

	left := make([]float64, len(counts))
	right := make([]float64, len(counts))
	_, nFeatures := g.X.Dims()
	for j := 0; j < nFeatures; j++ {
		sorted := g.sortBy(indices, j)
		for c := range left {
			left[c] = 0
		}
		copy(right, counts)

		for i := 0; i < n-1; i++ {
			label := g.labels[sorted[i]]
			left[label]++
			right[label]--

			v, next := g.X.At(sorted[i], j), g.X.At(sorted[i+1], j)
			if v == next {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			weighted := (float64(nl)*g.impurity(left, float64(nl)) + float64(nr)*g.impurity(right, float64(nr))) / float64(n)
			if decrease := parent - weighted; decrease > best.decrease+1e-12 {
				best = split{feature: j, threshold: v + (next-v)/2, decrease: decrease, at: nl}
				found = true
			}
		}
	}
	best.decrease = math.Max(best.decrease, 0)
	return best, found
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) []float64 {
	id := 0
	for dt.nodes[id].feature >= 0 {
		nd := dt.nodes[id]
		if X.At(i, nd.feature) <= nd.threshold {
			id = nd.left
		} else {
			id = nd.right
		}
	}
	return dt.nodes[id].proba
}

func (dt *DecisionTreeClassifier) check(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, nFeatures := X.Dims()
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, nFeatures)
}

// Predict は葉で最も多いクラスを返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check(X, "Predict"); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		pred.Set(i, 0, dt.classes[floats.MaxIdx(dt.leaf(X, i))])
	}
	return pred, nil
}

// PredictProba は葉のクラス比率を返す
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check(X, "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	proba := mat.NewDense(nSamples, dt.nClasses, nil)
	for i := 0; i < nSamples; i++ {
		proba.SetRow(i, dt.leaf(X, i))
	}
	return proba, nil
}

// Score returns the accuracy on X, or NaN when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return math.NaN()
	}
	n, _ := pred.Dims()
	if n == 0 {
		return math.NaN()
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes...)
}

// GetDepth returns the depth of the fitted tree; a single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth }

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves }

// GetFeatureImportances returns the normalised total impurity decrease per
// feature. All zeros when the tree is a single leaf.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.importances...)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
	}
}

// SetParams updates hyperparameters by name. Values are checked at Fit.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for name, value := range params {
		var err error
		switch name {
		case "criterion":
			dt.criterion, err = model.ParamString(name, value)
		case "max_depth":
			dt.maxDepth, err = model.ParamInt(name, value)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.ParamInt(name, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.ParamInt(name, value)
		default:
			err = model.UnknownParam("DecisionTreeClassifier", name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Estimator {
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
	)
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}
