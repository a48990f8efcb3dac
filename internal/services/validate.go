package services

import (
	"fmt"

	"eneatest/internal/models"
)

// ValidateAnswers checks a proposed answer set against the active items of the
// session's bound definition. It is pure and side-effect free; every rejection
// is an invalid-input error with a specific reason. Partial acceptance is
// never allowed: the answered item ids must equal the active item id set
// exactly and every value must lie within the scale bounds.
func ValidateAnswers(def *models.TestDefinition, answers map[int64]int) error {
	for id, v := range answers {
		if v < def.Scale.Min || v > def.Scale.Max {
			return NewInvalidError(fmt.Sprintf("value for item %d outside scale [%d,%d]", id, def.Scale.Min, def.Scale.Max))
		}
	}
	activeIDs := map[int64]struct{}{}
	for _, q := range def.Questionnaires {
		for _, it := range q.Items {
			if it.IsActive {
				activeIDs[it.ID] = struct{}{}
			}
		}
	}
	// Size mismatch is sufficient to reject before the exact set comparison.
	if len(answers) != len(activeIDs) {
		return NewInvalidError("all active items must be answered")
	}
	for id := range activeIDs {
		if _, ok := answers[id]; !ok {
			return NewInvalidError("all active items must be answered")
		}
	}
	if len(activeIDs) == 0 {
		return NewInvalidError("no active items found")
	}
	return nil
}
