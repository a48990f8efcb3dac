package db

import (
	"sort"
	"strings"
	"sync"
	"time"

	"eneatest/internal/models"
	"eneatest/internal/services"
)

// MemoryStore keeps every entity in process memory behind one mutex. It backs
// the demo mode (no SQLite path configured) and deterministic tests; the
// mutex makes SaveSubmission and ResetSession atomic with respect to readers.
type MemoryStore struct {
	mu          sync.RWMutex
	definitions []*models.TestDefinition
	activeDef   map[string]int // id -> active version
	users       map[int64]*models.AppUser
	sessions    map[int64]*models.TestSession
	responses   map[int64][]*models.ItemResponse
	results     map[int64]*models.SessionResult

	nextUserID    int64
	nextSessionID int64
	nextItemID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		activeDef: map[string]int{},
		users:     map[int64]*models.AppUser{},
		sessions:  map[int64]*models.TestSession{},
		responses: map[int64][]*models.ItemResponse{},
		results:   map[int64]*models.SessionResult{},
	}
}

// --- definitions ---

func (m *MemoryStore) GetDefinition(id string, version int) (*models.TestDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, def := range m.definitions {
		if def.ID == id && def.Version == version {
			return copyDefinition(def), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetActiveDefinition() (*models.TestDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, def := range m.definitions {
		if m.activeDef[def.ID] == def.Version {
			return copyDefinition(def), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdateItem(id int64, text *string, isActive *bool, updatedAt time.Time) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range m.definitions {
		for qi := range def.Questionnaires {
			items := def.Questionnaires[qi].Items
			for ii := range items {
				if items[ii].ID != id {
					continue
				}
				if text != nil {
					items[ii].Text = *text
				}
				if isActive != nil {
					items[ii].IsActive = *isActive
				}
				it := items[ii]
				return &it, nil
			}
		}
	}
	return nil, nil
}

func (m *MemoryStore) MaxDefinitionVersion(id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, def := range m.definitions {
		if def.ID == id && def.Version > max {
			max = def.Version
		}
	}
	return max, nil
}

func (m *MemoryStore) DefinitionVersionExists(id string, version int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, def := range m.definitions {
		if def.ID == id && def.Version == version {
			return true, nil
		}
	}
	return false, nil
}

// InsertDefinition mirrors the SQLite loader semantics, assigning item ids.
func (m *MemoryStore) InsertDefinition(def *models.TestDefinition, activate, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if replace {
		// A replaced version that was active stays active.
		if m.activeDef[def.ID] == def.Version {
			activate = true
		}
		kept := m.definitions[:0]
		for _, d := range m.definitions {
			if d.ID != def.ID || d.Version != def.Version {
				kept = append(kept, d)
			}
		}
		m.definitions = kept
	}
	stored := copyDefinition(def)
	for qi := range stored.Questionnaires {
		q := &stored.Questionnaires[qi]
		if q.ID == 0 {
			m.nextItemID++
			q.ID = m.nextItemID
		}
		for ii := range q.Items {
			if q.Items[ii].ID == 0 {
				m.nextItemID++
				q.Items[ii].ID = m.nextItemID
			}
		}
	}
	m.definitions = append(m.definitions, stored)
	if activate {
		m.activeDef[def.ID] = def.Version
	}
	return nil
}

func copyDefinition(def *models.TestDefinition) *models.TestDefinition {
	out := *def
	out.Questionnaires = make([]models.Questionnaire, len(def.Questionnaires))
	for i, q := range def.Questionnaires {
		qc := q
		qc.Items = append([]models.Item(nil), q.Items...)
		out.Questionnaires[i] = qc
	}
	return &out
}

// --- users ---

func (m *MemoryStore) InsertUser(u *models.AppUser) (*models.AppUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUserID++
	stored := *u
	stored.ID = m.nextUserID
	m.users[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryStore) GetUser(id int64) (*models.AppUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) FindUserByExternalID(externalID string) (*models.AppUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdateUser(id int64, externalID, displayName, email *string) (*models.AppUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if externalID != nil && *externalID != "" {
		u.ExternalID = *externalID
	}
	if displayName != nil && *displayName != "" {
		u.DisplayName = *displayName
	}
	if email != nil {
		u.Email = *email
	} else {
		u.Email = ""
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) ListUsers() ([]*models.AppUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.AppUser, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// --- sessions ---

func (m *MemoryStore) InsertSession(sess *models.TestSession) (*models.TestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSessionID++
	stored := *sess
	stored.ID = m.nextSessionID
	m.sessions[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryStore) GetSession(id int64) (*models.TestSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (m *MemoryStore) GetSessionByTokenHash(hash string) (*models.TestSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.sessions {
		if sess.TokenHash == hash {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListSessions(status models.SessionStatus, search string) ([]*models.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(search))
	out := []*models.SessionSummary{}
	for _, sess := range m.sessions {
		if status != "" && sess.Status != status {
			continue
		}
		u := m.users[sess.UserID]
		if u == nil {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.DisplayName), needle) &&
			!strings.Contains(strings.ToLower(u.ExternalID), needle) {
			continue
		}
		out = append(out, &models.SessionSummary{
			TestSession: *sess,
			ExternalID:  u.ExternalID,
			DisplayName: u.DisplayName,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) MarkStarted(id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.Status != models.StatusCreated {
		return nil
	}
	sess.Status = models.StatusStarted
	t := at
	sess.StartedAt = &t
	return nil
}

func (m *MemoryStore) MarkRevoked(id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	sess.Status = models.StatusRevoked
	t := at
	sess.RevokedAt = &t
	return nil
}

func (m *MemoryStore) SaveSubmission(id int64, responses []*models.ItemResponse, result *models.SessionResult, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	rs := make([]*models.ItemResponse, len(responses))
	for i, r := range responses {
		cp := *r
		rs[i] = &cp
	}
	m.responses[id] = rs
	res := *result
	m.results[id] = &res
	sess.Status = models.StatusCompleted
	t := completedAt
	sess.CompletedAt = &t
	return nil
}

func (m *MemoryStore) ResetSession(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.responses, id)
	delete(m.results, id)
	sess.Status = models.StatusCreated
	sess.StartedAt = nil
	sess.CompletedAt = nil
	sess.RevokedAt = nil
	return nil
}

func (m *MemoryStore) GetResult(sessionID int64) (*models.SessionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (m *MemoryStore) ListResponses(sessionID int64) ([]*models.ItemResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := m.responses[sessionID]
	out := make([]*models.ItemResponse, len(rs))
	for i, r := range rs {
		cp := *r
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

var (
	_ services.DefinitionStore = (*MemoryStore)(nil)
	_ services.UserStore       = (*MemoryStore)(nil)
	_ services.SessionStore    = (*MemoryStore)(nil)
)
