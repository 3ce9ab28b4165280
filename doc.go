// Package biorad compares feature selection and classification pipelines on
// small tabular datasets, such as radiomics feature tables, with
// bootstrap bias corrected cross-validation (BBC-CV).
//
// Each experiment pairs one pipeline with one random seed. It tunes the
// pipeline hyperparameters with a Tree-structured Parzen Estimator over a
// stratified k-fold objective, pools the out-of-fold predictions of every
// trial and estimates the performance of the selected configuration with
// out-of-bag bootstrap rounds. Results are checkpointed so interrupted
// sweeps resume where they stopped.
//
// # Quick Start
//
//	entries, _ := pipeline.Catalogue(
//	    []string{"fisher_score"}, []string{"logreg", "gnb"},
//	    pipeline.CatalogueOptions{NumFeatures: nFeatures, Seed: 0},
//	)
//	store, _ := experiment.NewFileStore("checkpoints")
//	runner, _ := experiment.NewRunner(store,
//	    experiment.WithBudget(60),
//	    experiment.WithOOBRounds(500),
//	)
//	seeds, _ := experiment.SeedsFrom(0, 10)
//	outcomes, err := experiment.Sweep(ctx, runner, entries, seeds, X, y, 4)
//
// # Packages
//
//   - model_selection: stratified folds, the cross-validated objective,
//     the trial ledger and the TPE search
//   - bbc: bootstrap bias correction and confidence intervals
//   - experiment: runner, checkpoint stores, sweeps and config files
//   - pipeline: scaler → selector → classifier pipelines and the catalogue
//   - space: hyperparameter spaces and configurations
//   - sampling: SMOTE and random over-sampling
//   - metrics: scoring functions and robust summaries
//   - preprocessing: scalers and feature selectors
//   - sklearn/linear_model, sklearn/naive_bayes, sklearn/tree: classifiers
//   - report: summary tables and box plots
//   - core/model, core/parallel: estimator interfaces and worker helpers
//   - pkg/errors, pkg/log: error types and structured logging
//
// The biorad command in cmd/biorad drives a whole sweep from a YAML file.
package biorad
