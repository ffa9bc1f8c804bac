package actionable

import (
	"fmt"

	"sales-call-insights-go/internal/aggregator"
)

// ActionCard is a single coaching recommendation for a project team.
type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	dominantShare = 0.35
	lowClearRate  = 0.5
	lowScore      = 6.0
	minCounted    = 3
)

// Generate picks the most pressing recommendation from a summary.
func Generate(s aggregator.Summary) ActionCard {
	counted := 0
	for _, oc := range s.TopObjections {
		counted += oc.Count
	}

	if counted >= minCounted && len(s.TopObjections) > 0 && s.TopObjections[0].Share >= dominantShare {
		top := s.TopObjections[0]
		return ActionCard{
			Insight: fmt.Sprintf("%q is the top objection in %.0f%% of counted calls", top.Label, top.Share*100),
			Action:  fmt.Sprintf("Add a prepared rebuttal for %q to the pitch script and brief the team", top.Label),
			Impact:  "Fewer stalled conversations on the most common objection",
		}
	}
	if s.ClearRate > 0 && s.ClearRate < lowClearRate {
		return ActionCard{
			Insight: fmt.Sprintf("Only %.0f%% of raised objections were addressed", s.ClearRate*100),
			Action:  "Run objection-handling role plays using recent call transcripts",
			Impact:  "Higher share of objections cleared before the close",
		}
	}
	if s.AverageScore > 0 && s.AverageScore < lowScore {
		return ActionCard{
			Insight: fmt.Sprintf("Average pitch score is %.1f/10", s.AverageScore),
			Action:  "Review missed selling points with reps and refresh the project pros list",
			Impact:  "Stronger pitches and more selling points covered per call",
		}
	}
	return ActionCard{
		Insight: "No strong objection pattern detected",
		Action:  "Monitor and collect more calls",
		Impact:  "Low immediate intervention",
	}
}
