package stats

import (
	"sort"

	"snnfault/internal/model"
)

// Summary aggregates the impact of every trial of a campaign. Impact is the
// trial's degradation percentage.
type Summary struct {
	Total           int     `json:"total"`
	Affected        int     `json:"affected"`
	AffectedPct     float64 `json:"affected_pct"`
	MaxImpact       float64 `json:"max_impact"`
	AverageImpact   float64 `json:"average_impact"`
	MaxImpactTrials []int   `json:"max_impact_trials,omitempty"`
}

func Summarize(trials []model.TrialRecord) Summary {
	s := Summary{Total: len(trials)}
	if len(trials) == 0 {
		return s
	}
	sorted := sortedTrials(trials)

	var sum float64
	for i, trial := range sorted {
		impact := trial.Degradation
		if i == 0 || impact > s.MaxImpact {
			s.MaxImpact = impact
		}
		if impact > 0 {
			s.Affected++
			sum += impact
		}
	}
	s.AffectedPct = 100 * float64(s.Affected) / float64(s.Total)
	if s.Affected > 0 {
		s.AverageImpact = sum / float64(s.Affected)
	}
	if s.MaxImpact != 0 {
		for _, trial := range sorted {
			if trial.Degradation == s.MaxImpact {
				s.MaxImpactTrials = append(s.MaxImpactTrials, trial.Index)
			}
		}
	}
	return s
}

func sortedTrials(trials []model.TrialRecord) []model.TrialRecord {
	out := append([]model.TrialRecord(nil), trials...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
