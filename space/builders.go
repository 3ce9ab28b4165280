package space

// NameFunc maps a bare parameter name to the name under which a pipeline
// step receives it, e.g. "C" to "clf__C". The caller owns the prefix.
type NameFunc func(param string) string

// Identity is the NameFunc for a bare estimator outside any pipeline.
func Identity(param string) string { return param }

// LogisticRegressionSpace covers the regularisation of a logistic
// regression classifier.
func LogisticRegressionSpace(name NameFunc) Space {
	return MustNew(
		LogUniform(name("C"), 1e-3, 1e3),
		Choice(name("penalty"), "l1", "l2"),
		Choice(name("class_weight"), "balanced", "none"),
	)
}

// GaussianNBSpace covers the variance smoothing of Gaussian naive Bayes.
func GaussianNBSpace(name NameFunc) Space {
	return MustNew(
		LogUniform(name("var_smoothing"), 1e-12, 1e-2),
	)
}

// DecisionTreeSpace covers the depth and leaf size of a CART classifier.
func DecisionTreeSpace(name NameFunc) Space {
	return MustNew(
		Choice(name("criterion"), "gini", "entropy"),
		IntUniform(name("max_depth"), 1, 10),
		IntUniform(name("min_samples_leaf"), 1, 10),
	)
}

// VarianceThresholdSpace samples the variance cut-off on [low, high].
func VarianceThresholdSpace(name NameFunc, low, high float64) Space {
	return MustNew(
		Uniform(name("threshold"), low, high),
	)
}

// FisherScoreSpace samples the number of retained features on low..high.
func FisherScoreSpace(name NameFunc, low, high int) Space {
	return MustNew(
		IntUniform(name("k"), low, high),
	)
}
