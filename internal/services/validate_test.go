package services

import (
	"testing"

	"eneatest/internal/models"
)

func validateTestDefinition() *models.TestDefinition {
	return &models.TestDefinition{
		ID:      "t",
		Version: 1,
		Scale:   models.Scale{Min: 0, Max: 5},
		Questionnaires: []models.Questionnaire{
			{Eneatype: 1, Items: []models.Item{
				{ID: 10, IsActive: true},
				{ID: 11, IsActive: true},
			}},
			{Eneatype: 2, Items: []models.Item{
				{ID: 20, IsActive: true},
				{ID: 21, IsActive: false},
			}},
		},
	}
}

func expectCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	svcErr, ok := AsServiceError(err)
	if !ok {
		t.Fatalf("expected ServiceError with code %q, got %v", code, err)
	}
	if svcErr.Code != code {
		t.Fatalf("error code = %q, want %q (message: %s)", svcErr.Code, code, svcErr.Message)
	}
}

func TestValidateAnswersComplete(t *testing.T) {
	def := validateTestDefinition()
	err := ValidateAnswers(def, map[int64]int{10: 0, 11: 5, 20: 3})
	if err != nil {
		t.Fatalf("complete answer set rejected: %v", err)
	}
}

func TestValidateAnswersIncomplete(t *testing.T) {
	def := validateTestDefinition()
	expectCode(t, ValidateAnswers(def, map[int64]int{10: 2, 11: 2}), ErrorInvalid)
}

func TestValidateAnswersOutOfRange(t *testing.T) {
	def := validateTestDefinition()
	expectCode(t, ValidateAnswers(def, map[int64]int{10: 2, 11: 6, 20: 3}), ErrorInvalid)
	expectCode(t, ValidateAnswers(def, map[int64]int{10: -1, 11: 2, 20: 3}), ErrorInvalid)
}

func TestValidateAnswersUnknownItem(t *testing.T) {
	def := validateTestDefinition()
	// 21 exists but is inactive, 99 does not exist; both make the set unequal.
	expectCode(t, ValidateAnswers(def, map[int64]int{10: 1, 11: 1, 20: 1, 21: 1}), ErrorInvalid)
	expectCode(t, ValidateAnswers(def, map[int64]int{10: 1, 11: 1, 99: 1}), ErrorInvalid)
}

func TestValidateAnswersNoActiveItems(t *testing.T) {
	def := validateTestDefinition()
	for qi := range def.Questionnaires {
		for ii := range def.Questionnaires[qi].Items {
			def.Questionnaires[qi].Items[ii].IsActive = false
		}
	}
	expectCode(t, ValidateAnswers(def, map[int64]int{}), ErrorInvalid)
}
