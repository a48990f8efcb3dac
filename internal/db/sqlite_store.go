package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eneatest/internal/models"
	"eneatest/internal/services"
)

// SQLiteStore is the persistent store. All mutation is expressed as one or
// more statements; multi-statement operations run inside a transaction so a
// failure of any statement rolls back the whole batch.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// --- codec helpers ---

// timeLayout pads fractional seconds to fixed width so lexical ordering of the
// stored TEXT column matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeLabels tolerates absent or malformed JSON by substituting an empty map.
func decodeLabels(ns sql.NullString) map[string]string {
	out := map[string]string{}
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return map[string]string{}
	}
	return out
}

func decodeTotals(ns sql.NullString) map[int]int {
	out := map[int]int{}
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return out
	}
	raw := map[string]int{}
	if err := json.Unmarshal([]byte(ns.String), &raw); err != nil {
		return map[int]int{}
	}
	for k, v := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[n] = v
	}
	return out
}

func decodeRanking(ns sql.NullString) []models.RankEntry {
	out := []models.RankEntry{}
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return []models.RankEntry{}
	}
	return out
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableArg(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// --- definitions ---

func (s *SQLiteStore) GetDefinition(id string, version int) (*models.TestDefinition, error) {
	row := s.db.QueryRow(`
	    SELECT id, version, name, language, scale_min, scale_max, scale_labels_json
	    FROM test_definition
	    WHERE id = ?1 AND version = ?2
	    LIMIT 1`, id, version)
	var (
		def    models.TestDefinition
		labels sql.NullString
	)
	if err := row.Scan(&def.ID, &def.Version, &def.Name, &def.Language, &def.Scale.Min, &def.Scale.Max, &labels); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	def.Scale.Labels = decodeLabels(labels)

	rows, err := s.db.Query(`
	    SELECT q.id, q.eneatype, q.title, q.order_index,
	           i.id, i.order_index, i.text, i.is_active
	    FROM questionnaire q
	    JOIN item i ON i.questionnaire_id = q.id
	    WHERE q.test_definition_id = ?1 AND q.test_definition_version = ?2
	    ORDER BY q.order_index ASC, i.order_index ASC`, id, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := map[int64]int{}
	for rows.Next() {
		var (
			qid, itemID       int64
			eneatype, qOrder  int
			itemOrder, active int
			title, itemText   string
		)
		if err := rows.Scan(&qid, &eneatype, &title, &qOrder, &itemID, &itemOrder, &itemText, &active); err != nil {
			return nil, err
		}
		pos, ok := index[qid]
		if !ok {
			pos = len(def.Questionnaires)
			index[qid] = pos
			def.Questionnaires = append(def.Questionnaires, models.Questionnaire{
				ID:       qid,
				Eneatype: eneatype,
				Title:    title,
				Order:    qOrder,
			})
		}
		def.Questionnaires[pos].Items = append(def.Questionnaires[pos].Items, models.Item{
			ID:       itemID,
			Order:    itemOrder,
			Text:     itemText,
			IsActive: active == 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *SQLiteStore) GetActiveDefinition() (*models.TestDefinition, error) {
	row := s.db.QueryRow(`
	    SELECT id, version
	    FROM test_definition
	    WHERE is_active = 1
	    ORDER BY created_at DESC
	    LIMIT 1`)
	var (
		id      string
		version int
	)
	if err := row.Scan(&id, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s.GetDefinition(id, version)
}

func (s *SQLiteStore) UpdateItem(id int64, text *string, isActive *bool, updatedAt time.Time) (*models.Item, error) {
	var activeArg any
	if isActive != nil {
		activeArg = boolToInt(*isActive)
	}
	if _, err := s.db.Exec(`
	    UPDATE item
	    SET text = COALESCE(?2, text),
	        is_active = COALESCE(?3, is_active),
	        updated_at = ?4
	    WHERE id = ?1`, id, nullableArg(text), activeArg, fmtTime(updatedAt)); err != nil {
		return nil, err
	}
	row := s.db.QueryRow(`SELECT id, order_index, text, is_active FROM item WHERE id = ?1`, id)
	var (
		it     models.Item
		active int
	)
	if err := row.Scan(&it.ID, &it.Order, &it.Text, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	it.IsActive = active == 1
	return &it, nil
}

// MaxDefinitionVersion returns the highest stored version for id, 0 when none.
func (s *SQLiteStore) MaxDefinitionVersion(id string) (int, error) {
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM test_definition WHERE id = ?1`, id)
	var v int
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *SQLiteStore) DefinitionVersionExists(id string, version int) (bool, error) {
	row := s.db.QueryRow(`SELECT 1 FROM test_definition WHERE id = ?1 AND version = ?2`, id, version)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertDefinition stores a definition version with its questionnaires and
// items in one transaction. With replace set, an existing copy of the same
// version (and its dependents) is removed first, and a replaced version that
// was active stays active; with activate set, every other version of the same
// id is deactivated.
func (s *SQLiteStore) InsertDefinition(def *models.TestDefinition, activate, replace bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := fmtTime(time.Now().UTC())
	if replace {
		var wasActive int
		err := tx.QueryRow(`
		    SELECT is_active FROM test_definition
		    WHERE id = ?1 AND version = ?2`, def.ID, def.Version).Scan(&wasActive)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if wasActive == 1 {
			activate = true
		}
		if _, err := tx.Exec(`
		    DELETE FROM item_response WHERE item_id IN (
		        SELECT i.id FROM item i
		        JOIN questionnaire q ON q.id = i.questionnaire_id
		        WHERE q.test_definition_id = ?1 AND q.test_definition_version = ?2
		    )`, def.ID, def.Version); err != nil {
			return err
		}
		if _, err := tx.Exec(`
		    DELETE FROM item WHERE questionnaire_id IN (
		        SELECT id FROM questionnaire
		        WHERE test_definition_id = ?1 AND test_definition_version = ?2
		    )`, def.ID, def.Version); err != nil {
			return err
		}
		if _, err := tx.Exec(`
		    DELETE FROM questionnaire
		    WHERE test_definition_id = ?1 AND test_definition_version = ?2`, def.ID, def.Version); err != nil {
			return err
		}
		if _, err := tx.Exec(`
		    DELETE FROM test_definition WHERE id = ?1 AND version = ?2`, def.ID, def.Version); err != nil {
			return err
		}
	}
	if activate {
		if _, err := tx.Exec(`UPDATE test_definition SET is_active = 0 WHERE id = ?1`, def.ID); err != nil {
			return err
		}
	}
	labels, err := encodeJSON(def.Scale.Labels)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
	    INSERT INTO test_definition (id, version, name, language, scale_min, scale_max, scale_labels_json, is_active, created_at)
	    VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)`,
		def.ID, def.Version, def.Name, def.Language, def.Scale.Min, def.Scale.Max, labels, boolToInt(activate), now); err != nil {
		return err
	}
	for _, q := range def.Questionnaires {
		res, err := tx.Exec(`
		    INSERT INTO questionnaire (test_definition_id, test_definition_version, eneatype, title, order_index, created_at)
		    VALUES (?1, ?2, ?3, ?4, ?5, ?6)`,
			def.ID, def.Version, q.Eneatype, q.Title, q.Order, now)
		if err != nil {
			return err
		}
		qid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, it := range q.Items {
			if _, err := tx.Exec(`
			    INSERT INTO item (questionnaire_id, order_index, text, is_active, created_at, updated_at)
			    VALUES (?1, ?2, ?3, ?4, ?5, ?6)`,
				qid, it.Order, it.Text, boolToInt(it.IsActive), now, now); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// --- users ---

func (s *SQLiteStore) InsertUser(u *models.AppUser) (*models.AppUser, error) {
	res, err := s.db.Exec(`
	    INSERT INTO app_user (external_id, display_name, email, created_at)
	    VALUES (?1, ?2, ?3, ?4)`,
		u.ExternalID, u.DisplayName, toNullString(u.Email), fmtTime(u.CreatedAt))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	stored := *u
	stored.ID = id
	return &stored, nil
}

func (s *SQLiteStore) GetUser(id int64) (*models.AppUser, error) {
	return s.scanUser(s.db.QueryRow(`
	    SELECT id, external_id, display_name, email, created_at
	    FROM app_user WHERE id = ?1`, id))
}

func (s *SQLiteStore) FindUserByExternalID(externalID string) (*models.AppUser, error) {
	return s.scanUser(s.db.QueryRow(`
	    SELECT id, external_id, display_name, email, created_at
	    FROM app_user WHERE external_id = ?1 LIMIT 1`, externalID))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.AppUser, error) {
	var (
		u       models.AppUser
		email   sql.NullString
		created string
	)
	if err := row.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &email, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Email = email.String
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (s *SQLiteStore) UpdateUser(id int64, externalID, displayName, email *string) (*models.AppUser, error) {
	var emailArg sql.NullString
	if email != nil {
		emailArg = toNullString(*email)
	}
	if _, err := s.db.Exec(`
	    UPDATE app_user SET
	        external_id = COALESCE(?2, external_id),
	        display_name = COALESCE(?3, display_name),
	        email = ?4
	    WHERE id = ?1`, id, nullableArg(externalID), nullableArg(displayName), emailArg); err != nil {
		return nil, err
	}
	return s.GetUser(id)
}

func (s *SQLiteStore) ListUsers() ([]*models.AppUser, error) {
	rows, err := s.db.Query(`
	    SELECT id, external_id, display_name, email, created_at
	    FROM app_user
	    ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*models.AppUser{}
	for rows.Next() {
		var (
			u       models.AppUser
			email   sql.NullString
			created string
		)
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &email, &created); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.CreatedAt = parseTime(created)
		out = append(out, &u)
	}
	return out, rows.Err()
}

// --- sessions ---

const sessionColumns = `id, test_definition_id, test_definition_version, user_id, token,
    status, created_at, started_at, completed_at, revoked_at`

func (s *SQLiteStore) InsertSession(sess *models.TestSession) (*models.TestSession, error) {
	res, err := s.db.Exec(`
	    INSERT INTO test_session (test_definition_id, test_definition_version, user_id, token, status, created_at)
	    VALUES (?1, ?2, ?3, ?4, ?5, ?6)`,
		sess.TestDefinitionID, sess.TestDefinitionVersion, sess.UserID, sess.TokenHash,
		string(sess.Status), fmtTime(sess.CreatedAt))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	stored := *sess
	stored.ID = id
	return &stored, nil
}

func (s *SQLiteStore) GetSession(id int64) (*models.TestSession, error) {
	return s.scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM test_session WHERE id = ?1`, id))
}

func (s *SQLiteStore) GetSessionByTokenHash(hash string) (*models.TestSession, error) {
	return s.scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM test_session WHERE token = ?1 LIMIT 1`, hash))
}

func (s *SQLiteStore) scanSession(row *sql.Row) (*models.TestSession, error) {
	var (
		sess                        models.TestSession
		status, created             string
		started, completed, revoked sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.TestDefinitionID, &sess.TestDefinitionVersion, &sess.UserID,
		&sess.TokenHash, &status, &created, &started, &completed, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	sess.CreatedAt = parseTime(created)
	sess.StartedAt = parseTimePtr(started)
	sess.CompletedAt = parseTimePtr(completed)
	sess.RevokedAt = parseTimePtr(revoked)
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(status models.SessionStatus, search string) ([]*models.SessionSummary, error) {
	rows, err := s.db.Query(`
	    SELECT s.id, s.test_definition_id, s.test_definition_version, s.user_id, s.token,
	           s.status, s.created_at, s.started_at, s.completed_at, s.revoked_at,
	           u.external_id, u.display_name
	    FROM test_session s
	    JOIN app_user u ON u.id = s.user_id
	    WHERE (?1 = '' OR s.status = ?1)
	      AND (?2 = '' OR LOWER(u.display_name) LIKE '%' || LOWER(?2) || '%'
	                   OR LOWER(u.external_id) LIKE '%' || LOWER(?2) || '%')
	    ORDER BY s.created_at DESC, s.id DESC`, string(status), search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*models.SessionSummary{}
	for rows.Next() {
		var (
			sm                          models.SessionSummary
			st, created                 string
			started, completed, revoked sql.NullString
		)
		if err := rows.Scan(&sm.ID, &sm.TestDefinitionID, &sm.TestDefinitionVersion, &sm.UserID, &sm.TokenHash,
			&st, &created, &started, &completed, &revoked, &sm.ExternalID, &sm.DisplayName); err != nil {
			return nil, err
		}
		sm.Status = models.SessionStatus(st)
		sm.CreatedAt = parseTime(created)
		sm.StartedAt = parseTimePtr(started)
		sm.CompletedAt = parseTimePtr(completed)
		sm.RevokedAt = parseTimePtr(revoked)
		out = append(out, &sm)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkStarted(id int64, at time.Time) error {
	_, err := s.db.Exec(`
	    UPDATE test_session SET status = ?2, started_at = ?3
	    WHERE id = ?1 AND status = ?4`,
		id, string(models.StatusStarted), fmtTime(at), string(models.StatusCreated))
	return err
}

func (s *SQLiteStore) MarkRevoked(id int64, at time.Time) error {
	_, err := s.db.Exec(`
	    UPDATE test_session SET status = ?2, revoked_at = ?3
	    WHERE id = ?1`, id, string(models.StatusRevoked), fmtTime(at))
	return err
}

// SaveSubmission replaces any prior responses and result, inserts the new
// ones and marks the session COMPLETED, all inside one transaction.
func (s *SQLiteStore) SaveSubmission(id int64, responses []*models.ItemResponse, result *models.SessionResult, completedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM item_response WHERE session_id = ?1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM session_result WHERE session_id = ?1`, id); err != nil {
		return err
	}
	for _, r := range responses {
		if _, err := tx.Exec(`
		    INSERT INTO item_response (session_id, item_id, value, created_at)
		    VALUES (?1, ?2, ?3, ?4)`,
			id, r.ItemID, r.Value, fmtTime(r.CreatedAt)); err != nil {
			return err
		}
	}
	totals, err := encodeJSON(result.Totals)
	if err != nil {
		return err
	}
	ranking, err := encodeJSON(result.Ranking)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
	    INSERT INTO session_result (session_id, totals_json, ranking_json, created_at)
	    VALUES (?1, ?2, ?3, ?4)`,
		id, totals, ranking, fmtTime(result.CreatedAt)); err != nil {
		return err
	}
	if _, err := tx.Exec(`
	    UPDATE test_session SET status = ?2, completed_at = ?3
	    WHERE id = ?1`, id, string(models.StatusCompleted), fmtTime(completedAt)); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetSession deletes the session's responses and result and returns it to
// CREATED with cleared transition timestamps, all inside one transaction.
func (s *SQLiteStore) ResetSession(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM item_response WHERE session_id = ?1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM session_result WHERE session_id = ?1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`
	    UPDATE test_session
	    SET status = ?2, started_at = NULL, completed_at = NULL, revoked_at = NULL
	    WHERE id = ?1`, id, string(models.StatusCreated)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetResult(sessionID int64) (*models.SessionResult, error) {
	row := s.db.QueryRow(`
	    SELECT session_id, totals_json, ranking_json, created_at
	    FROM session_result WHERE session_id = ?1 LIMIT 1`, sessionID)
	var (
		res             models.SessionResult
		totals, ranking sql.NullString
		created         string
	)
	if err := row.Scan(&res.SessionID, &totals, &ranking, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	res.Totals = decodeTotals(totals)
	res.Ranking = decodeRanking(ranking)
	res.CreatedAt = parseTime(created)
	return &res, nil
}

func (s *SQLiteStore) ListResponses(sessionID int64) ([]*models.ItemResponse, error) {
	rows, err := s.db.Query(`
	    SELECT session_id, item_id, value, created_at
	    FROM item_response
	    WHERE session_id = ?1
	    ORDER BY item_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*models.ItemResponse{}
	for rows.Next() {
		var (
			r       models.ItemResponse
			created string
		)
		if err := rows.Scan(&r.SessionID, &r.ItemID, &r.Value, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

var (
	_ services.DefinitionStore = (*SQLiteStore)(nil)
	_ services.UserStore       = (*SQLiteStore)(nil)
	_ services.SessionStore    = (*SQLiteStore)(nil)
)
