package services

import (
	"time"

	"eneatest/internal/models"
)

// DefinitionStore abstracts persistence operations required by DefinitionService.
type DefinitionStore interface {
	GetDefinition(id string, version int) (*models.TestDefinition, error)
	GetActiveDefinition() (*models.TestDefinition, error)
	UpdateItem(id int64, text *string, isActive *bool, updatedAt time.Time) (*models.Item, error)
}

// DefinitionService resolves test definitions and applies content corrections
// to items without bumping the definition version.
type DefinitionService struct {
	store DefinitionStore
	now   func() time.Time
}

func NewDefinitionService(store DefinitionStore) *DefinitionService {
	return &DefinitionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns a specific definition version, or the currently active one
// when id is empty.
func (s *DefinitionService) Resolve(id string, version int) (*models.TestDefinition, error) {
	var (
		def *models.TestDefinition
		err error
	)
	if id == "" {
		def, err = s.store.GetActiveDefinition()
	} else {
		def, err = s.store.GetDefinition(id, version)
	}
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, NewNotFoundError("test definition not found")
	}
	return def, nil
}

// UpdateItem applies a partial update; nil fields keep their current value.
func (s *DefinitionService) UpdateItem(id int64, text *string, isActive *bool) (*models.Item, error) {
	it, err := s.store.UpdateItem(id, text, isActive, s.now())
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, NewNotFoundError("item not found")
	}
	return it, nil
}

// ActiveOnly returns a copy of def whose questionnaires keep only active
// items, the shape presented to respondents.
func ActiveOnly(def *models.TestDefinition) *models.TestDefinition {
	out := *def
	out.Questionnaires = make([]models.Questionnaire, 0, len(def.Questionnaires))
	for _, q := range def.Questionnaires {
		qc := q
		qc.Items = make([]models.Item, 0, len(q.Items))
		for _, it := range q.Items {
			if it.IsActive {
				qc.Items = append(qc.Items, it)
			}
		}
		out.Questionnaires = append(out.Questionnaires, qc)
	}
	return &out
}
