package services

import (
	"time"

	"eneatest/internal/models"
)

// SessionStore abstracts persistence operations required by SessionService.
// SaveSubmission and ResetSession must each execute as a single atomic unit:
// a failure partway leaves no partial writes.
type SessionStore interface {
	InsertSession(sess *models.TestSession) (*models.TestSession, error)
	GetSession(id int64) (*models.TestSession, error)
	GetSessionByTokenHash(hash string) (*models.TestSession, error)
	ListSessions(status models.SessionStatus, search string) ([]*models.SessionSummary, error)
	MarkStarted(id int64, at time.Time) error
	MarkRevoked(id int64, at time.Time) error
	SaveSubmission(id int64, responses []*models.ItemResponse, result *models.SessionResult, completedAt time.Time) error
	ResetSession(id int64) error
	GetResult(sessionID int64) (*models.SessionResult, error)
	ListResponses(sessionID int64) ([]*models.ItemResponse, error)

	GetUser(id int64) (*models.AppUser, error)
	GetDefinition(id string, version int) (*models.TestDefinition, error)
	GetActiveDefinition() (*models.TestDefinition, error)
}

// SessionService owns the session lifecycle: issuing tokenized sessions,
// token lookup, the CREATED -> STARTED -> COMPLETED transitions, revocation
// and administrative reset.
type SessionService struct {
	store    SessionStore
	secret   string
	now      func() time.Time
	genToken func() (string, error)
}

func NewSessionService(store SessionStore, tokenSecret string) *SessionService {
	return &SessionService{
		store:    store,
		secret:   tokenSecret,
		now:      func() time.Time { return time.Now().UTC() },
		genToken: GenerateToken,
	}
}

// IssuedSession carries the only copy of the plaintext token ever produced.
type IssuedSession struct {
	Session *models.TestSession `json:"session"`
	Token   string              `json:"token"`
	User    *models.AppUser     `json:"user"`
}

// SessionView is the respondent-facing shape: the bound definition filtered to
// active items, plus the persisted result once the session is completed.
type SessionView struct {
	Session    *models.TestSession    `json:"session"`
	User       *models.AppUser        `json:"user"`
	Definition *models.TestDefinition `json:"test"`
	Result     *models.SessionResult  `json:"result"`
}

// SessionDetail is the admin-facing shape, including raw responses. Recomputed
// reports whether Result was derived on the fly from responses because no
// SessionResult row exists.
type SessionDetail struct {
	Session    *models.TestSession    `json:"session"`
	User       *models.AppUser        `json:"user"`
	Result     *models.SessionResult  `json:"result"`
	Responses  []*models.ItemResponse `json:"responses"`
	Recomputed bool                   `json:"recomputed,omitempty"`
}

// Issue creates a CREATED session for the user, bound to the currently active
// definition version. It fails when no active definition exists.
func (s *SessionService) Issue(userID int64) (*IssuedSession, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NewNotFoundError("user not found")
	}
	def, err := s.store.GetActiveDefinition()
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, NewInvalidError("no active test definition")
	}
	token, err := s.genToken()
	if err != nil {
		return nil, err
	}
	sess, err := s.store.InsertSession(&models.TestSession{
		TestDefinitionID:      def.ID,
		TestDefinitionVersion: def.Version,
		UserID:                userID,
		TokenHash:             HashToken(token, s.secret),
		Status:                models.StatusCreated,
		CreatedAt:             s.now(),
	})
	if err != nil {
		return nil, err
	}
	return &IssuedSession{Session: sess, Token: token, User: user}, nil
}

// LookupByToken resolves a presented token to its session view. Reading never
// mutates state.
func (s *SessionService) LookupByToken(token string) (*SessionView, error) {
	sess, err := s.findByToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(sess.UserID)
	if err != nil {
		return nil, err
	}
	def, err := s.store.GetDefinition(sess.TestDefinitionID, sess.TestDefinitionVersion)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, NewNotFoundError("test definition not found")
	}
	view := &SessionView{Session: sess, User: user, Definition: ActiveOnly(def)}
	if sess.Status == models.StatusCompleted {
		result, err := s.store.GetResult(sess.ID)
		if err != nil {
			return nil, err
		}
		view.Result = result
	}
	return view, nil
}

// Start records the first answer-change activity: CREATED moves to STARTED, a
// session already STARTED or COMPLETED is left untouched, and a REVOKED
// session rejects the action rather than silently ignoring it.
func (s *SessionService) Start(token string) error {
	sess, err := s.findByToken(token)
	if err != nil {
		return err
	}
	if sess.Status == models.StatusRevoked {
		return NewStateConflictError("session is revoked")
	}
	if sess.Status != models.StatusCreated {
		return nil
	}
	return s.store.MarkStarted(sess.ID, s.now())
}

// Submit runs the whole submission transaction: state gate, validation,
// scoring, then one atomic replace of responses + result + COMPLETED
// transition. Any failure before the store call leaves no side effects; a
// store failure is surfaced as a retryable transaction error.
func (s *SessionService) Submit(token string, answers map[int64]int) (*models.SessionResult, error) {
	sess, err := s.findByToken(token)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Editable() {
		return nil, NewStateConflictError("session not editable")
	}
	def, err := s.store.GetDefinition(sess.TestDefinitionID, sess.TestDefinitionVersion)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, NewNotFoundError("test definition not found")
	}
	if err := ValidateAnswers(def, answers); err != nil {
		return nil, err
	}

	totals := ComputeTotals(def.Questionnaires, answers)
	now := s.now()
	result := &models.SessionResult{
		SessionID: sess.ID,
		Totals:    totals,
		Ranking:   ComputeRanking(totals),
		CreatedAt: now,
	}
	responses := make([]*models.ItemResponse, 0, len(answers))
	for itemID, value := range answers {
		responses = append(responses, &models.ItemResponse{
			SessionID: sess.ID,
			ItemID:    itemID,
			Value:     value,
			CreatedAt: now,
		})
	}
	if err := s.store.SaveSubmission(sess.ID, responses, result, now); err != nil {
		return nil, NewTransactionError("submission failed: " + err.Error())
	}
	return result, nil
}

// Revoke closes a still-open session. Revoking an already revoked session is
// an idempotent no-op; a completed session cannot be revoked.
func (s *SessionService) Revoke(sessionID int64) error {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return err
	}
	switch sess.Status {
	case models.StatusRevoked:
		return nil
	case models.StatusCompleted:
		return NewStateConflictError("session already completed")
	}
	return s.store.MarkRevoked(sessionID, s.now())
}

// Reset returns a session of any state to CREATED, deleting its responses and
// result in one atomic unit so a respondent can retake the test.
func (s *SessionService) Reset(sessionID int64) error {
	if _, err := s.getSession(sessionID); err != nil {
		return err
	}
	if err := s.store.ResetSession(sessionID); err != nil {
		return NewTransactionError("reset failed: " + err.Error())
	}
	return nil
}

// AdminGet returns the admin detail view. When no SessionResult row exists but
// raw responses do (e.g. mid-investigation after a partial cleanup), the
// totals and ranking are re-derived from the responses without persisting.
func (s *SessionService) AdminGet(sessionID int64) (*SessionDetail, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(sess.UserID)
	if err != nil {
		return nil, err
	}
	result, err := s.store.GetResult(sessionID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(sessionID)
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{Session: sess, User: user, Result: result, Responses: responses}
	if result == nil && len(responses) > 0 {
		def, err := s.store.GetDefinition(sess.TestDefinitionID, sess.TestDefinitionVersion)
		if err != nil {
			return nil, err
		}
		if def != nil {
			answers := make(map[int64]int, len(responses))
			for _, r := range responses {
				answers[r.ItemID] = r.Value
			}
			totals := ComputeTotals(def.Questionnaires, answers)
			detail.Result = &models.SessionResult{
				SessionID: sessionID,
				Totals:    totals,
				Ranking:   ComputeRanking(totals),
			}
			detail.Recomputed = true
		}
	}
	return detail, nil
}

// List returns session summaries newest first, optionally filtered by status
// and a case-insensitive search over displayName/externalId.
func (s *SessionService) List(status models.SessionStatus, search string) ([]*models.SessionSummary, error) {
	return s.store.ListSessions(status, search)
}

// ExportRows builds the CSV export dataset: every matching session summary,
// joined with its stored totals when the session has a result.
func (s *SessionService) ExportRows(status models.SessionStatus, search string) ([]SessionExportRow, error) {
	summaries, err := s.store.ListSessions(status, search)
	if err != nil {
		return nil, err
	}
	rows := make([]SessionExportRow, 0, len(summaries))
	for _, sum := range summaries {
		row := SessionExportRow{
			SessionID:   sum.ID,
			ExternalID:  sum.ExternalID,
			DisplayName: sum.DisplayName,
			Status:      sum.Status,
			CreatedAt:   sum.CreatedAt,
			CompletedAt: sum.CompletedAt,
		}
		if sum.Status == models.StatusCompleted {
			result, err := s.store.GetResult(sum.ID)
			if err != nil {
				return nil, err
			}
			if result != nil {
				row.Totals = result.Totals
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *SessionService) findByToken(token string) (*models.TestSession, error) {
	if token == "" {
		return nil, NewInvalidError("token required")
	}
	sess, err := s.store.GetSessionByTokenHash(HashToken(token, s.secret))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, NewNotFoundError("session not found")
	}
	return sess, nil
}

func (s *SessionService) getSession(id int64) (*models.TestSession, error) {
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, NewNotFoundError("session not found")
	}
	return sess, nil
}
