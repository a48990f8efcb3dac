package services

import (
	"sort"

	"eneatest/internal/models"
)

// ComputeTotals sums the answered values of each questionnaire's active items
// into a per-eneatype total. A questionnaire with no active items contributes
// no key. Pure: same input always yields the same totals.
func ComputeTotals(questionnaires []models.Questionnaire, answers map[int64]int) map[int]int {
	totals := map[int]int{}
	for _, q := range questionnaires {
		active := 0
		sum := 0
		for _, it := range q.Items {
			if !it.IsActive {
				continue
			}
			active++
			sum += answers[it.ID]
		}
		if active == 0 {
			continue
		}
		totals[q.Eneatype] += sum
	}
	return totals
}

// ComputeRanking orders totals by score descending with ties broken by
// ascending eneatype. Eneatype uniqueness makes the ordering total: no two
// entries compare equal after the tie-break.
func ComputeRanking(totals map[int]int) []models.RankEntry {
	out := make([]models.RankEntry, 0, len(totals))
	for eneatype, score := range totals {
		out = append(out, models.RankEntry{Eneatype: eneatype, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Eneatype < out[j].Eneatype
	})
	return out
}
