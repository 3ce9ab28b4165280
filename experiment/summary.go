package experiment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ahmedalbuni/biorad/pipeline"
)

// PipelineSummary aggregates the experiments of one pipeline across seeds.
// Means are taken over completed experiments with a finite BBC mean.
type PipelineSummary struct {
	PipelineID   string
	Experiments  int
	Failed       int
	MeanScore    float64
	StdScore     float64
	MeanLower    float64
	MeanUpper    float64
	MeanTestLoss float64
	Scores       []float64
}

// Summarize groups records by pipeline, ordered by pipeline id.
func Summarize(records []*Record) []PipelineSummary {
	groups := make(map[string][]*Record)
	for _, r := range records {
		groups[r.Key.PipelineID] = append(groups[r.Key.PipelineID], r)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]PipelineSummary, 0, len(ids))
	for _, id := range ids {
		recs := groups[id]
		sort.Slice(recs, func(i, j int) bool { return recs[i].Key.Seed < recs[j].Key.Seed })

		s := PipelineSummary{PipelineID: id, Experiments: len(recs)}
		var lower, upper, loss []float64
		for _, r := range recs {
			if !r.Valid() || math.IsNaN(r.BBC.Mean) {
				s.Failed++
				continue
			}
			s.Scores = append(s.Scores, r.BBC.Mean)
			lower = append(lower, r.BBC.Lower)
			upper = append(upper, r.BBC.Upper)
			loss = append(loss, r.BestTestLoss)
		}
		s.MeanScore, s.StdScore = math.NaN(), math.NaN()
		s.MeanLower, s.MeanUpper, s.MeanTestLoss = math.NaN(), math.NaN(), math.NaN()
		if len(s.Scores) > 0 {
			s.MeanScore = stat.Mean(s.Scores, nil)
			s.StdScore = stat.PopStdDev(s.Scores, nil)
			s.MeanLower = stat.Mean(lower, nil)
			s.MeanUpper = stat.Mean(upper, nil)
			s.MeanTestLoss = stat.Mean(loss, nil)
		}
		out = append(out, s)
	}
	return out
}

// SortEntries orders catalogue entries by id.
func SortEntries(entries []pipeline.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}
