// Package aggregator rolls analyzed recordings and objection counters up into
// a per-project summary.
package aggregator

import (
	"sort"

	"sales-call-insights-go/internal/types"
)

// ObjectionCount is one counted objection label.
type ObjectionCount struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// Summary describes how calls for a project have gone.
type Summary struct {
	Project         string               `json:"project"`
	ObjectionCounts map[string]int       `json:"objectionCounts"`
	TopObjections   []ObjectionCount     `json:"topObjections"`
	Recordings      int                  `json:"recordings"`
	StatusCounts    map[types.Status]int `json:"statusCounts"`
	AverageScore    float64              `json:"averageScore"`
	ClearRate       float64              `json:"clearRate"`
	MissedPros      int                  `json:"missedPros"`
}

// Aggregate combines a project's objection counters with its recordings.
// Only recordings with a successful analysis contribute to the score and
// clear-rate figures.
func Aggregate(project string, counts map[string]int, recs []types.Recording) Summary {
	s := Summary{
		Project:         project,
		ObjectionCounts: map[string]int{},
		StatusCounts:    map[types.Status]int{},
		Recordings:      len(recs),
	}
	for k, v := range counts {
		s.ObjectionCounts[k] = v
	}
	s.TopObjections = Rank(counts)

	var scored, scoreSum, faced, cleared int
	for _, r := range recs {
		s.StatusCounts[r.Status]++
		if r.Status != types.StatusCompleted && r.Status != types.StatusReanalyzed {
			continue
		}
		scored++
		scoreSum += r.Score
		faced += r.ObjectionsFaced
		cleared += r.ObjectionsCleared
		s.MissedPros += r.MissedPros
	}
	if scored > 0 {
		s.AverageScore = float64(scoreSum) / float64(scored)
	}
	if faced > 0 {
		s.ClearRate = float64(cleared) / float64(faced)
	}
	return s
}

// Rank orders objection counters by count, highest first, ties by label.
func Rank(counts map[string]int) []ObjectionCount {
	total := 0
	for _, v := range counts {
		total += v
	}
	out := make([]ObjectionCount, 0, len(counts))
	for k, v := range counts {
		oc := ObjectionCount{Label: k, Count: v}
		if total > 0 {
			oc.Share = float64(v) / float64(total)
		}
		out = append(out, oc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
