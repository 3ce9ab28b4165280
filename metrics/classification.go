// Package metrics provides scoring functions for classification.
//
// Every scorer follows the ScoreFunc contract: higher is better, 1 is a
// perfect score, and degenerate inputs return an error instead of a
// fabricated value. Callers convert scores to losses as 1 - score.
package metrics

import (
	"math"
	"sort"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ScoreFunc computes a higher-is-better score from ground truth and
// predictions of equal length.
type ScoreFunc func(yTrue, yPred []float64) (float64, error)

func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// uniqueLabels returns the sorted distinct values of y.
func uniqueLabels(y []float64) []float64 {
	seen := make(map[float64]struct{}, 4)
	for _, v := range y {
		seen[v] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Float64s(labels)
	return labels
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// BalancedAccuracy is the mean per-class recall over the classes present in
// yTrue.
func BalancedAccuracy(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("BalancedAccuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	support := make(map[float64]int)
	hits := make(map[float64]int)
	for i, t := range yTrue {
		support[t]++
		if yPred[i] == t {
			hits[t]++
		}
	}
	var sum float64
	for label, n := range support {
		sum += float64(hits[label]) / float64(n)
	}
	return sum / float64(len(support)), nil
}

// binaryCounts returns the confusion counts treating the larger of the
// labels in yTrue as positive. yTrue must hold at most two distinct labels.
func binaryCounts(op string, yTrue, yPred []float64) (tp, fp, tn, fn float64, err error) {
	labels := uniqueLabels(yTrue)
	if len(labels) > 2 {
		return 0, 0, 0, 0, errors.NewValueError(op, "multiclass targets are not supported")
	}
	pos := labels[len(labels)-1]
	if len(labels) == 1 && pos == 0 {
		pos = 1
	}
	for i, t := range yTrue {
		switch {
		case t == pos && yPred[i] == pos:
			tp++
		case t == pos:
			fn++
		case yPred[i] == pos:
			fp++
		default:
			tn++
		}
	}
	return tp, fp, tn, fn, nil
}

// F1 は適合率と再現率の調和平均を計算する（二値分類）
//
// 陽性ラベルは yTrue に含まれる大きい方の値。適合率と再現率が共に 0 の場合は
// UndefinedMetricWarning を発行して 0 を返す。
func F1(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("F1", yTrue, yPred); err != nil {
		return 0, err
	}
	tp, fp, _, fn, err := binaryCounts("F1", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := 2*tp + fp + fn
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("F1", "no positive samples in y_true or y_pred", 0))
		return 0, nil
	}
	return 2 * tp / denom, nil
}

// MatthewsCorrCoef computes the Matthews correlation coefficient rescaled to
// [0, 1] as (mcc + 1) / 2, so that it obeys the 1-is-perfect convention the
// loss transform relies on.
func MatthewsCorrCoef(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MatthewsCorrCoef", yTrue, yPred); err != nil {
		return 0, err
	}
	tp, fp, tn, fn, err := binaryCounts("MatthewsCorrCoef", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("MatthewsCorrCoef", "a confusion-matrix marginal is zero", 0.5))
		return 0.5, nil
	}
	mcc := (tp*tn - fp*fn) / denom
	return (mcc + 1) / 2, nil
}

// ROCAUC はROC曲線下面積を計算する
//
// yPred はハードラベルでも陽性クラスのスコアでもよい。同順位は平均順位で扱う
// （Mann-Whitney U 統計量）。yTrue が単一クラスの場合 AUC は定義されないため
// エラーを返す。
func ROCAUC(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("ROCAUC", yTrue, yPred); err != nil {
		return 0, err
	}
	labels := uniqueLabels(yTrue)
	switch {
	case len(labels) == 1:
		return 0, errors.NewValueError("ROCAUC", "only one class present in y_true")
	case len(labels) > 2:
		return 0, errors.NewValueError("ROCAUC", "multiclass targets are not supported")
	}
	pos := labels[1]

	n := len(yPred)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return yPred[order[a]] < yPred[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred[order[j+1]] == yPred[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var nPos, rankSum float64
	for i, t := range yTrue {
		if t == pos {
			nPos++
			rankSum += ranks[i]
		}
	}
	nNeg := float64(n) - nPos
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// ColumnScore applies score to column j of two equally shaped matrices,
// restricted to rows. A nil rows slice means every row.
func ColumnScore(score ScoreFunc, yTrue, yPred mat.Matrix, j int, rows []int) (float64, error) {
	r, _ := yTrue.Dims()
	if rows == nil {
		t := make([]float64, r)
		p := make([]float64, r)
		for i := 0; i < r; i++ {
			t[i] = yTrue.At(i, j)
			p[i] = yPred.At(i, j)
		}
		return score(t, p)
	}
	t := make([]float64, len(rows))
	p := make([]float64, len(rows))
	for k, i := range rows {
		t[k] = yTrue.At(i, j)
		p[k] = yPred.At(i, j)
	}
	return score(t, p)
}
