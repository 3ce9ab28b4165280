package model_selection

import (
	"context"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"github.com/ahmedalbuni/biorad/space"
)

type searchConfig struct {
	tpe    TPEOptions
	logger log.Logger
}

// SearchOption configures Search.
type SearchOption func(*searchConfig)

// WithTPEOptions replaces the default TPE settings.
func WithTPEOptions(opts TPEOptions) SearchOption {
	return func(c *searchConfig) { c.tpe = opts }
}

// WithSearchLogger sets the logger used for per-trial progress.
func WithSearchLogger(l log.Logger) SearchOption {
	return func(c *searchConfig) { c.logger = l }
}

// Search runs exactly budget sequential evaluations of objective over s.
// Proposals depend only on seed and the outcomes of earlier trials, so a
// deterministic objective makes the whole run reproducible.
//
// The best configuration is the one with the smallest finite test loss,
// the earliest on ties. When no trial has a finite loss the full ledger is
// returned together with ErrNoValidConfiguration.
func Search(ctx context.Context, objective Evaluator, s space.Space, budget int, seed int64, opts ...SearchOption) (space.Configuration, *TrialLedger, error) {
	cfg := searchConfig{tpe: DefaultTPEOptions()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLogger()
	}
	if budget < 1 {
		return nil, nil, errors.NewValidationError("budget", "must be at least 1", budget)
	}
	if objective == nil {
		return nil, nil, errors.NewValueError("Search", "nil objective")
	}
	if err := cfg.tpe.validate(); err != nil {
		return nil, nil, err
	}
	logger := cfg.logger.With(log.OperationKey, log.OperationSearch)

	sampler := newTPE(s, cfg.tpe, seed)
	ledger := NewTrialLedger(budget)
	history := make([]observation, 0, budget)

	for it := 0; it < budget; it++ {
		if err := ctx.Err(); err != nil {
			return nil, ledger, errors.Wrap(err, "search cancelled")
		}
		proposal := sampler.propose(history)
		rec, err := objective.Evaluate(ctx, proposal)
		if err != nil {
			return nil, ledger, errors.Wrapf(err, "search iteration %d", it)
		}
		if _, err := ledger.Append(rec); err != nil {
			return nil, ledger, err
		}
		history = append(history, observation{cfg: proposal, loss: rec.TestLoss})
		logger.Info("Trial evaluated",
			log.IterationKey, it,
			log.BudgetKey, budget,
			log.LossKey, rec.TestLoss,
			log.TrainLossKey, rec.TrainLoss,
			log.HyperParamsKey, proposal.String(),
			log.DurationMsKey, rec.Duration.Milliseconds(),
		)
	}

	best, err := ledger.Best()
	if err != nil {
		logger.Warn("No configuration produced a finite loss", log.BudgetKey, budget)
		return nil, ledger, err
	}
	return ledger.At(best).Configuration, ledger, nil
}
