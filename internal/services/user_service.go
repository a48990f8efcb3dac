package services

import (
	"strings"
	"time"

	"eneatest/internal/models"
)

// UserStore abstracts persistence operations required by UserService.
type UserStore interface {
	InsertUser(u *models.AppUser) (*models.AppUser, error)
	GetUser(id int64) (*models.AppUser, error)
	FindUserByExternalID(externalID string) (*models.AppUser, error)
	// UpdateUser applies a partial update. Nil externalID/displayName keep the
	// stored value; email is replaced outright (nil clears it).
	UpdateUser(id int64, externalID, displayName, email *string) (*models.AppUser, error)
	ListUsers() ([]*models.AppUser, error)
}

type UserService struct {
	store UserStore
	now   func() time.Time
}

func NewUserService(store UserStore) *UserService {
	return &UserService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Create(externalID, displayName, email string) (*models.AppUser, error) {
	externalID = strings.TrimSpace(externalID)
	displayName = strings.TrimSpace(displayName)
	if externalID == "" || displayName == "" {
		return nil, NewInvalidError("externalId and displayName are required")
	}
	existing, err := s.store.FindUserByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("externalId already exists")
	}
	return s.store.InsertUser(&models.AppUser{
		ExternalID:  externalID,
		DisplayName: displayName,
		Email:       strings.TrimSpace(email),
		CreatedAt:   s.now(),
	})
}

func (s *UserService) Get(id int64) (*models.AppUser, error) {
	u, err := s.store.GetUser(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	return u, nil
}

// Update applies a partial update. Email is always replaced: passing nil
// clears it, matching the admin contract where the stored address mirrors the
// request body.
func (s *UserService) Update(id int64, externalID, displayName, email *string) (*models.AppUser, error) {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	externalID = trim(externalID)
	displayName = trim(displayName)
	email = trim(email)
	if externalID != nil && *externalID != "" {
		existing, err := s.store.FindUserByExternalID(*externalID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, NewConflictError("externalId already exists")
		}
	}
	u, err := s.store.UpdateUser(id, externalID, displayName, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	return u, nil
}

func (s *UserService) List() ([]*models.AppUser, error) {
	return s.store.ListUsers()
}
