package bbc

import (
	"math/rand/v2"
)

// OOBSplit is one bootstrap round: InBag holds n draws with replacement
// from 0..n-1 and OutOfBag every index that was never drawn, ascending.
type OOBSplit struct {
	InBag    []int
	OutOfBag []int
}

// OOBSampler derives bootstrap rounds from a seed. Round r uses its own
// PCG stream, so any round can be regenerated without replaying the
// rounds before it.
type OOBSampler struct {
	Rounds int
	Seed   int64
}

// NewOOBSampler creates a sampler for the given number of rounds.
func NewOOBSampler(rounds int, seed int64) *OOBSampler {
	return &OOBSampler{Rounds: rounds, Seed: seed}
}

// Round draws round r over n samples.
func (s *OOBSampler) Round(r, n int) OOBSplit {
	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(r)))
	drawn := make([]bool, n)
	split := OOBSplit{InBag: make([]int, n)}
	for i := range split.InBag {
		j := rng.IntN(n)
		split.InBag[i] = j
		drawn[j] = true
	}
	for i, d := range drawn {
		if !d {
			split.OutOfBag = append(split.OutOfBag, i)
		}
	}
	return split
}
