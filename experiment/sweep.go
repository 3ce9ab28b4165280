package experiment

import (
	"context"
	"math/rand/v2"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedalbuni/biorad/pipeline"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
)

// maxSeed bounds the experiment seeds drawn by SeedsFrom.
const maxSeed = 1000

// SeedsFrom draws n distinct experiment seeds in [0, 1000) from master.
func SeedsFrom(master int64, n int) ([]int64, error) {
	if n < 1 || n > maxSeed {
		return nil, errors.NewValidationError("num_reps", "must be in [1, 1000]", n)
	}
	rng := rand.New(rand.NewPCG(uint64(master), uint64(master)))
	perm := rng.Perm(maxSeed)
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = int64(perm[i])
	}
	return seeds, nil
}

// Outcome is the result of one experiment of a sweep. Err is nil or
// ErrNoValidConfiguration; any other error aborts the sweep.
type Outcome struct {
	Key    Key
	Record *Record
	Err    error
}

// Sweep runs every seed × pipeline experiment with at most parallel
// experiments in flight (parallel <= 0 means one). Experiments share only
// the read-only dataset and the store. Each pipeline is cloned per
// experiment.
//
// Outcomes are ordered seed-major in the order of seeds and entries. The
// first fatal error cancels the remaining experiments and is returned.
func Sweep(ctx context.Context, r *Runner, entries []pipeline.Entry, seeds []int64, X mat.Matrix, y []float64, parallel int) ([]Outcome, error) {
	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With(log.OperationKey, log.OperationSweep, log.RunIDKey, runID)
	logger.Info("Sweep started", "experiments", len(entries)*len(seeds), "parallel", max(parallel, 1))

	runner := *r
	runner.runID = runID

	outcomes := make([]Outcome, len(entries)*len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for si, seed := range seeds {
		for ei, entry := range entries {
			slot := si*len(entries) + ei
			exp := Experiment{
				Seed: seed,
				Pipeline: pipeline.Entry{
					ID:       entry.ID,
					Pipeline: entry.Pipeline.Clone().(*pipeline.Pipeline),
					Space:    entry.Space,
				},
			}
			g.Go(func() error {
				rec, err := runner.Run(gctx, exp, X, y)
				if err != nil && !errors.Is(err, errors.ErrNoValidConfiguration) {
					return errors.Wrapf(err, "experiment %s", exp.Key())
				}
				outcomes[slot] = Outcome{Key: exp.Key(), Record: rec, Err: err}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		logger.Error("Sweep aborted", err)
		return outcomes, err
	}
	logger.Info("Sweep finished")
	return outcomes, nil
}
