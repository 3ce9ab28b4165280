package log

// Standard attribute keys. Hierarchical names ("experiment.seed",
// "search.iteration") keep log analysis and filtering uniform across packages.

// Operation context
const (
	// OperationKey specifies the operation being performed.
	// Standard values: see the Operation* constants below.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// ModelNameKey identifies the estimator or pipeline type.
	ModelNameKey = "model.name"
)

// Experiment identity
const (
	// PipelineIDKey identifies the pipeline under evaluation.
	PipelineIDKey = "experiment.pipeline_id"

	// RandomSeedKey records the experiment seed.
	RandomSeedKey = "config.random_seed"

	// CheckpointKeyKey records the formatted checkpoint key.
	CheckpointKeyKey = "checkpoint.key"

	// RunIDKey correlates every experiment of one sweep.
	RunIDKey = "sweep.run_id"

	// StatusKey records an experiment outcome.
	StatusKey = "experiment.status"
)

// Data shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
)

// Search and resampling
const (
	IterationKey     = "search.iteration"
	BudgetKey        = "search.budget"
	FoldKey          = "cv.fold"
	FoldsKey         = "cv.folds"
	RoundsKey        = "bbc.rounds"
	SkippedRoundsKey = "bbc.skipped_rounds"
	HyperParamsKey   = "model.hyperparams"
)

// Metrics and timing
const (
	LossKey       = "metrics.loss"
	TrainLossKey  = "metrics.train_loss"
	ScoreKey      = "metrics.score"
	DurationMsKey = "perf.duration_ms"
)

// Error context
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
	StageKey      = "error.stage"
)

// Standard operation values.
const (
	OperationEvaluate   = "evaluate"
	OperationSearch     = "search"
	OperationBootstrap  = "bootstrap"
	OperationBalance    = "balance"
	OperationCheckpoint = "checkpoint"
	OperationExperiment = "experiment"
	OperationSweep      = "sweep"
)
