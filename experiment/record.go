// Package experiment runs and checkpoints BBC-CV experiments. One
// experiment is one (seed, pipeline) pair: class balancing, a TPE search
// under stratified cross-validation and bootstrap bias correction of the
// search's pooled predictions. Finished experiments are persisted so that
// a re-run of the same key returns the stored record without recomputing.
package experiment

import (
	"fmt"
	"time"

	"github.com/ahmedalbuni/biorad/bbc"
	"github.com/ahmedalbuni/biorad/space"
)

// Key identifies an experiment.
type Key struct {
	Seed       int64
	PipelineID string
}

// String formats the key as experiment_<seed>_<pipeline>.
func (k Key) String() string {
	return fmt.Sprintf("experiment_%d_%s", k.Seed, k.PipelineID)
}

// Status is the outcome of an experiment.
type Status string

const (
	// StatusCompleted means the search found a configuration with a finite
	// loss and the bootstrap ran over the full ledger.
	StatusCompleted Status = "completed"
	// StatusNoValidConfiguration means every trial produced a non-finite
	// loss. BBC statistics are NaN in that case.
	StatusNoValidConfiguration Status = "no_valid_configuration"
)

// Record is the persisted result of one experiment.
type Record struct {
	Key    Key
	Status Status
	RunID  string

	BestConfiguration space.Configuration
	BestIndex         int
	BestTestLoss      float64

	// per-trial history in evaluation order
	Configurations     []space.Configuration
	TestLosses         []float64
	TrainLosses        []float64
	TestLossVariances  []float64
	TrainLossVariances []float64
	FailedFolds        []int

	BBC bbc.Result

	NumSamples  int
	NumFeatures int
	Balancing   string
	Folds       int
	Budget      int
	OOBRounds   int
	Alpha       float64
	Scoring     string

	Duration  time.Duration
	CreatedAt time.Time
}

// Valid reports whether the experiment selected a configuration.
func (r *Record) Valid() bool {
	return r.Status == StatusCompleted
}

// NumTrials returns the number of evaluated configurations.
func (r *Record) NumTrials() int {
	return len(r.TestLosses)
}
