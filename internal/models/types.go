package models

import "time"

// SessionStatus is the lifecycle state of a respondent session.
type SessionStatus string

const (
	StatusCreated   SessionStatus = "CREATED"
	StatusStarted   SessionStatus = "STARTED"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusRevoked   SessionStatus = "REVOKED"
)

// Editable reports whether the session still accepts answer or submit actions.
func (s SessionStatus) Editable() bool { return s == StatusCreated || s == StatusStarted }

// Terminal reports whether the session reached a final state (until reset).
func (s SessionStatus) Terminal() bool { return s == StatusCompleted || s == StatusRevoked }

// Scale defines the Likert scale of a test definition. Labels map stringified
// values to display text (e.g., "0" -> "Never").
type Scale struct {
	Min    int               `json:"min"`
	Max    int               `json:"max"`
	Labels map[string]string `json:"labels"`
}

// TestDefinition is an immutable versioned snapshot of questionnaire content.
// Exactly one version per id may be active at a time.
type TestDefinition struct {
	ID             string          `json:"id"`
	Version        int             `json:"version"`
	Name           string          `json:"name"`
	Language       string          `json:"language"`
	Scale          Scale           `json:"scale"`
	Questionnaires []Questionnaire `json:"questionnaires"`
}

// Questionnaire groups the items measuring one eneatype (1-9 conventionally).
type Questionnaire struct {
	ID       int64  `json:"id"`
	Eneatype int    `json:"eneatype"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
	Items    []Item `json:"items"`
}

// Item is a single question. Inactive items are excluded from presentation,
// validation and scoring; text/activity edits do not bump the definition version.
type Item struct {
	ID       int64  `json:"id"`
	Order    int    `json:"order"`
	Text     string `json:"text"`
	IsActive bool   `json:"isActive"`
}

// AppUser is a respondent known by a stable external identifier.
type AppUser struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"externalId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TestSession binds a user to one definition version for its whole lifetime.
// The token is held only as a salted hash.
type TestSession struct {
	ID                    int64         `json:"id"`
	TestDefinitionID      string        `json:"testDefinitionId"`
	TestDefinitionVersion int           `json:"testDefinitionVersion"`
	UserID                int64         `json:"userId"`
	TokenHash             string        `json:"-"`
	Status                SessionStatus `json:"status"`
	CreatedAt             time.Time     `json:"createdAt"`
	StartedAt             *time.Time    `json:"startedAt"`
	CompletedAt           *time.Time    `json:"completedAt"`
	RevokedAt             *time.Time    `json:"revokedAt"`
}

// SessionSummary is a session joined with its user, as listed by the admin API.
type SessionSummary struct {
	TestSession
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
}

// ItemResponse is one answered item of a completed submission.
type ItemResponse struct {
	SessionID int64     `json:"sessionId"`
	ItemID    int64     `json:"itemId"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// RankEntry is one position of a ranking: totals sorted by score descending,
// ties broken by ascending eneatype.
type RankEntry struct {
	Eneatype int `json:"eneatype"`
	Score    int `json:"score"`
}

// SessionResult stores the computed totals and ranking for a session. At most
// one per session; replaced wholesale on resubmission after a reset.
type SessionResult struct {
	SessionID int64       `json:"sessionId"`
	Totals    map[int]int `json:"totals"`
	Ranking   []RankEntry `json:"ranking"`
	CreatedAt time.Time   `json:"createdAt"`
}
