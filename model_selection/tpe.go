package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/space"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// TPEOptions tunes the Tree-structured Parzen Estimator.
type TPEOptions struct {
	// StartupTrials is the number of finite-loss trials drawn from the prior
	// before the density model is used.
	StartupTrials int
	// Candidates is the number of draws from l(x) ranked by l(x)/g(x).
	Candidates int
	// Gamma sets the size of the "good" group: ceil(Gamma * sqrt(n)).
	Gamma float64
	// PriorWeight is the mixture weight of the prior component.
	PriorWeight float64
}

// DefaultTPEOptions returns the hyperopt defaults.
func DefaultTPEOptions() TPEOptions {
	return TPEOptions{
		StartupTrials: 10,
		Candidates:    24,
		Gamma:         0.25,
		PriorWeight:   1.0,
	}
}

func (o TPEOptions) validate() error {
	if o.StartupTrials < 0 {
		return errors.NewValidationError("startup_trials", "must not be negative", o.StartupTrials)
	}
	if o.Candidates < 1 {
		return errors.NewValidationError("candidates", "must be at least 1", o.Candidates)
	}
	if !(o.Gamma > 0 && o.Gamma <= 1) {
		return errors.NewValidationError("gamma", "must be in (0, 1]", o.Gamma)
	}
	if !(o.PriorWeight > 0) {
		return errors.NewValidationError("prior_weight", "must be positive", o.PriorWeight)
	}
	return nil
}

type observation struct {
	cfg  space.Configuration
	loss float64
}

// tpe proposes configurations. Each parameter is modelled independently
// by two densities: l(x) fitted to the best trials and g(x) to the rest.
type tpe struct {
	space space.Space
	opts  TPEOptions
	rng   *rand.Rand
}

func newTPE(s space.Space, opts TPEOptions, seed int64) *tpe {
	return &tpe{
		space: s,
		opts:  opts,
		rng:   rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}
}

// propose draws the next configuration given every prior trial. Trials with
// a non-finite loss carry no information and are ignored.
func (t *tpe) propose(history []observation) space.Configuration {
	var obs []observation
	for _, o := range history {
		if errors.IsFinite(o.loss) {
			obs = append(obs, o)
		}
	}
	if len(obs) < max(t.opts.StartupTrials, 1) {
		return t.space.Sample(t.rng)
	}

	// stable: equal losses keep evaluation order
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].loss < obs[j].loss })
	nBelow := int(math.Ceil(t.opts.Gamma * math.Sqrt(float64(len(obs)))))
	nBelow = max(1, min(nBelow, len(obs)-1))
	below, above := obs[:nBelow], obs[nBelow:]

	cfg := make(space.Configuration, t.space.Len())
	for _, p := range t.space.Params() {
		cfg[p.Name] = t.proposeParam(p, values(p, below), values(p, above))
	}
	return cfg
}

func values(p space.Param, obs []observation) []float64 {
	out := make([]float64, 0, len(obs))
	for _, o := range obs {
		v, ok := o.cfg[p.Name]
		if !ok {
			continue
		}
		x, err := p.Encode(v)
		if err != nil {
			continue
		}
		out = append(out, x)
	}
	return out
}

func (t *tpe) proposeParam(p space.Param, below, above []float64) interface{} {
	var l, g density
	if p.Kind == space.KindChoice {
		l = newCategoricalDensity(below, len(p.Choices), t.opts.PriorWeight)
		g = newCategoricalDensity(above, len(p.Choices), t.opts.PriorWeight)
	} else {
		lo, hi := p.Bounds()
		if lo == hi {
			return p.Decode(lo)
		}
		l = newParzenDensity(below, lo, hi, t.opts.PriorWeight)
		g = newParzenDensity(above, lo, hi, t.opts.PriorWeight)
	}

	best, bestScore := 0.0, math.Inf(-1)
	for i := 0; i < t.opts.Candidates; i++ {
		x := l.sample(t.rng)
		score := l.logProb(x) - g.logProb(x)
		if i == 0 || score > bestScore {
			best, bestScore = x, score
		}
	}
	return p.Decode(best)
}

type density interface {
	sample(rng *rand.Rand) float64
	logProb(x float64) float64
}

// categoricalDensity is a smoothed histogram over choice indices.
type categoricalDensity struct {
	weights []float64
}

func newCategoricalDensity(obs []float64, n int, priorWeight float64) *categoricalDensity {
	w := make([]float64, n)
	for i := range w {
		w[i] = priorWeight
	}
	for _, x := range obs {
		w[int(x)]++
	}
	floats.Scale(1/floats.Sum(w), w)
	return &categoricalDensity{weights: w}
}

func (d *categoricalDensity) sample(rng *rand.Rand) float64 {
	return distuv.NewCategorical(d.weights, rng).Rand()
}

func (d *categoricalDensity) logProb(x float64) float64 {
	return math.Log(d.weights[int(x)])
}

// parzenDensity is the adaptive Parzen estimator of Bergstra et al.: a
// mixture of normals truncated to [lo, hi], one per observation plus a
// broad prior component centred on the interval.
type parzenDensity struct {
	lo, hi     float64
	mus        []float64
	sigmas     []float64
	weights    []float64
	logNormZ   []float64
	logWeights []float64
}

func newParzenDensity(obs []float64, lo, hi, priorWeight float64) *parzenDensity {
	prior := (lo + hi) / 2
	width := hi - lo

	mus := append([]float64{prior}, obs...)
	weights := make([]float64, len(mus))
	weights[0] = priorWeight
	for i := 1; i < len(weights); i++ {
		weights[i] = 1
	}
	order := make([]int, len(mus))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return mus[order[a]] < mus[order[b]] })

	sigmas := make([]float64, len(mus))
	minSigma := width / math.Min(100, 1+float64(len(mus)))
	for rank, i := range order {
		left, right := mus[i]-lo, hi-mus[i]
		if rank > 0 {
			left = mus[i] - mus[order[rank-1]]
		}
		if rank < len(order)-1 {
			right = mus[order[rank+1]] - mus[i]
		}
		sigmas[i] = errors.ClipValue(math.Max(left, right), minSigma, width)
	}
	sigmas[0] = width

	d := &parzenDensity{lo: lo, hi: hi, mus: mus, sigmas: sigmas, weights: weights}
	total := floats.Sum(weights)
	d.logNormZ = make([]float64, len(mus))
	d.logWeights = make([]float64, len(mus))
	for i := range mus {
		n := distuv.Normal{Mu: mus[i], Sigma: sigmas[i]}
		d.logNormZ[i] = math.Log(math.Max(n.CDF(hi)-n.CDF(lo), 1e-300))
		d.logWeights[i] = math.Log(weights[i] / total)
	}
	return d
}

func (d *parzenDensity) sample(rng *rand.Rand) float64 {
	k := int(distuv.NewCategorical(d.weights, rng).Rand())
	n := distuv.Normal{Mu: d.mus[k], Sigma: d.sigmas[k], Src: rng}
	for attempt := 0; attempt < 100; attempt++ {
		if x := n.Rand(); x >= d.lo && x <= d.hi {
			return x
		}
	}
	return errors.ClipValue(n.Rand(), d.lo, d.hi)
}

func (d *parzenDensity) logProb(x float64) float64 {
	terms := make([]float64, len(d.mus))
	for i := range d.mus {
		n := distuv.Normal{Mu: d.mus[i], Sigma: d.sigmas[i]}
		terms[i] = d.logWeights[i] + n.LogProb(x) - d.logNormZ[i]
	}
	return errors.LogSumExp(terms)
}
