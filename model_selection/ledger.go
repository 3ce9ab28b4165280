package model_selection

import (
	"fmt"
	"time"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/space"
	"gonum.org/v1/gonum/mat"
)

// TrialRecord is one evaluated configuration. Losses are 1 - score; the
// test and train losses are medians across folds and the variances are
// population variances across folds. YTrue and YPred hold the held-out
// ground truth and predictions of every fold concatenated in fold order.
type TrialRecord struct {
	Index             int
	Configuration     space.Configuration
	TestLoss          float64
	TrainLoss         float64
	TestLossVariance  float64
	TrainLossVariance float64
	FoldTestLosses    []float64
	FoldTrainLosses   []float64
	YTrue             []float64
	YPred             []float64
	Failures          []error
	Duration          time.Duration
}

// Valid reports whether the trial produced a finite test loss.
func (r TrialRecord) Valid() bool {
	return errors.IsFinite(r.TestLoss)
}

func (r TrialRecord) clone() TrialRecord {
	r.Configuration = r.Configuration.Clone()
	r.FoldTestLosses = append([]float64(nil), r.FoldTestLosses...)
	r.FoldTrainLosses = append([]float64(nil), r.FoldTrainLosses...)
	r.YTrue = append([]float64(nil), r.YTrue...)
	r.YPred = append([]float64(nil), r.YPred...)
	r.Failures = append([]error(nil), r.Failures...)
	return r
}

// TrialLedger is the append-only history of one search run. Records are
// indexed in evaluation order and copied on the way in and out, so nothing
// held by a caller can change the ledger.
type TrialLedger struct {
	records  []TrialRecord
	capacity int
	samples  int
}

// NewTrialLedger creates a ledger holding at most capacity records.
func NewTrialLedger(capacity int) *TrialLedger {
	return &TrialLedger{
		records:  make([]TrialRecord, 0, max(capacity, 0)),
		capacity: capacity,
		samples:  -1,
	}
}

// Append stores r as the next record and sets its Index. It fails when the
// ledger is full or when the pooled vectors disagree in length with the
// records already stored.
func (l *TrialLedger) Append(r TrialRecord) (int, error) {
	if len(l.records) >= l.capacity {
		return 0, errors.NewValueError("TrialLedger.Append",
			fmt.Sprintf("ledger is full (capacity %d)", l.capacity))
	}
	if len(r.YTrue) != len(r.YPred) {
		return 0, errors.NewDimensionError("TrialLedger.Append", len(r.YTrue), len(r.YPred), 0)
	}
	if l.samples >= 0 && len(r.YTrue) != l.samples {
		return 0, errors.NewDimensionError("TrialLedger.Append", l.samples, len(r.YTrue), 0)
	}
	l.samples = len(r.YTrue)
	r = r.clone()
	r.Index = len(l.records)
	l.records = append(l.records, r)
	return r.Index, nil
}

// Len returns the number of records.
func (l *TrialLedger) Len() int { return len(l.records) }

// Capacity returns the maximum number of records.
func (l *TrialLedger) Capacity() int { return l.capacity }

// At returns a copy of record i.
func (l *TrialLedger) At(i int) TrialRecord {
	return l.records[i].clone()
}

// Records returns copies of every record in evaluation order.
func (l *TrialLedger) Records() []TrialRecord {
	out := make([]TrialRecord, len(l.records))
	for i, r := range l.records {
		out[i] = r.clone()
	}
	return out
}

func (l *TrialLedger) column(f func(TrialRecord) float64) []float64 {
	out := make([]float64, len(l.records))
	for i, r := range l.records {
		out[i] = f(r)
	}
	return out
}

// TestLosses returns the median test loss of every record.
func (l *TrialLedger) TestLosses() []float64 {
	return l.column(func(r TrialRecord) float64 { return r.TestLoss })
}

// TrainLosses returns the median train loss of every record.
func (l *TrialLedger) TrainLosses() []float64 {
	return l.column(func(r TrialRecord) float64 { return r.TrainLoss })
}

// TestLossVariances returns the across-fold test loss variance of every record.
func (l *TrialLedger) TestLossVariances() []float64 {
	return l.column(func(r TrialRecord) float64 { return r.TestLossVariance })
}

// TrainLossVariances returns the across-fold train loss variance of every record.
func (l *TrialLedger) TrainLossVariances() []float64 {
	return l.column(func(r TrialRecord) float64 { return r.TrainLossVariance })
}

// Configurations returns the evaluated configurations in order.
func (l *TrialLedger) Configurations() []space.Configuration {
	out := make([]space.Configuration, len(l.records))
	for i, r := range l.records {
		out[i] = r.Configuration.Clone()
	}
	return out
}

// Best returns the index of the record with the smallest finite test loss,
// the earliest one on ties. ErrNoValidConfiguration is returned when no
// record has a finite loss.
func (l *TrialLedger) Best() (int, error) {
	best := -1
	for i, r := range l.records {
		if !r.Valid() {
			continue
		}
		if best < 0 || r.TestLoss < l.records[best].TestLoss {
			best = i
		}
	}
	if best < 0 {
		return -1, errors.WithStack(errors.ErrNoValidConfiguration)
	}
	return best, nil
}

// PooledMatrices returns the samples × records matrices of pooled ground
// truth and predictions; column j belongs to record j.
func (l *TrialLedger) PooledMatrices() (yTrue, yPred *mat.Dense, err error) {
	if len(l.records) == 0 || l.samples <= 0 {
		return nil, nil, errors.NewModelError("TrialLedger.PooledMatrices", "empty ledger", errors.ErrEmptyData)
	}
	yTrue = mat.NewDense(l.samples, len(l.records), nil)
	yPred = mat.NewDense(l.samples, len(l.records), nil)
	for j, r := range l.records {
		yTrue.SetCol(j, r.YTrue)
		yPred.SetCol(j, r.YPred)
	}
	return yTrue, yPred, nil
}
