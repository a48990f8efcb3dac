package db_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"eneatest/internal/db"
	"eneatest/internal/models"
)

func newSQLiteStore(t *testing.T) (*db.SQLiteStore, *sql.DB) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection would otherwise see its own empty :memory: db.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	if err := db.RunMigrations(conn, ""); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	store, err := db.NewSQLiteStore(conn)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return store, conn
}

func seedStore(t *testing.T, store *db.SQLiteStore) *models.TestDefinition {
	t.Helper()
	if err := db.SeedDemoDefinition(store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	def, err := store.GetActiveDefinition()
	if err != nil {
		t.Fatalf("active definition: %v", err)
	}
	if def == nil {
		t.Fatal("no active definition after seed")
	}
	return def
}

func TestSQLiteDefinitionRoundtrip(t *testing.T) {
	store, _ := newSQLiteStore(t)
	def := seedStore(t, store)

	if len(def.Questionnaires) != 9 {
		t.Fatalf("got %d questionnaires, want 9", len(def.Questionnaires))
	}
	for i, q := range def.Questionnaires {
		if q.Eneatype != i+1 {
			t.Fatalf("questionnaires out of order: position %d has eneatype %d", i, q.Eneatype)
		}
		if len(q.Items) == 0 {
			t.Fatalf("eneatype %d has no items", q.Eneatype)
		}
	}
	if def.Scale.Min != 0 || def.Scale.Max != 5 {
		t.Fatalf("scale = %+v", def.Scale)
	}
	if def.Scale.Labels["0"] == "" {
		t.Fatal("scale labels were not persisted")
	}

	same, err := store.GetDefinition(def.ID, def.Version)
	if err != nil || same == nil {
		t.Fatalf("GetDefinition: %v", err)
	}
	missing, err := store.GetDefinition("nope", 1)
	if err != nil || missing != nil {
		t.Fatalf("missing definition: def=%v err=%v", missing, err)
	}
}

func TestSQLiteUpdateItem(t *testing.T) {
	store, _ := newSQLiteStore(t)
	def := seedStore(t, store)
	itemID := def.Questionnaires[0].Items[0].ID

	text := "Reworded stem."
	active := false
	item, err := store.UpdateItem(itemID, &text, &active, time.Now().UTC())
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Text != text || item.IsActive {
		t.Fatalf("item after update: %+v", item)
	}

	// Nil fields keep stored values.
	item, err = store.UpdateItem(itemID, nil, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Text != text || item.IsActive {
		t.Fatalf("partial update lost values: %+v", item)
	}

	item, err = store.UpdateItem(999999, &text, nil, time.Now().UTC())
	if err != nil || item != nil {
		t.Fatalf("unknown item: item=%v err=%v", item, err)
	}
}

func TestSQLiteSessionLifecycle(t *testing.T) {
	store, _ := newSQLiteStore(t)
	def := seedStore(t, store)

	user, err := store.InsertUser(&models.AppUser{
		ExternalID:  "ext-1",
		DisplayName: "Ana",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	sess, err := store.InsertSession(&models.TestSession{
		TestDefinitionID:      def.ID,
		TestDefinitionVersion: def.Version,
		UserID:                user.ID,
		TokenHash:             "hash-1",
		Status:                models.StatusCreated,
		CreatedAt:             time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	byHash, err := store.GetSessionByTokenHash("hash-1")
	if err != nil || byHash == nil || byHash.ID != sess.ID {
		t.Fatalf("GetSessionByTokenHash: sess=%v err=%v", byHash, err)
	}

	now := time.Now().UTC()
	if err := store.MarkStarted(sess.ID, now); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	sess, _ = store.GetSession(sess.ID)
	if sess.Status != models.StatusStarted || sess.StartedAt == nil {
		t.Fatalf("after MarkStarted: %+v", sess)
	}
	// MarkStarted only fires from CREATED.
	if err := store.MarkStarted(sess.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("repeated MarkStarted: %v", err)
	}
	again, _ := store.GetSession(sess.ID)
	if !again.StartedAt.Equal(*sess.StartedAt) {
		t.Fatal("repeated MarkStarted moved the start timestamp")
	}

	responses := []*models.ItemResponse{}
	totals := map[int]int{}
	for _, q := range def.Questionnaires {
		for _, it := range q.Items {
			responses = append(responses, &models.ItemResponse{
				SessionID: sess.ID,
				ItemID:    it.ID,
				Value:     2,
				CreatedAt: now,
			})
			totals[q.Eneatype] += 2
		}
	}
	result := &models.SessionResult{
		SessionID: sess.ID,
		Totals:    totals,
		Ranking:   []models.RankEntry{{Eneatype: 1, Score: totals[1]}},
		CreatedAt: now,
	}
	if err := store.SaveSubmission(sess.ID, responses, result, now); err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}

	sess, _ = store.GetSession(sess.ID)
	if sess.Status != models.StatusCompleted || sess.CompletedAt == nil {
		t.Fatalf("after SaveSubmission: %+v", sess)
	}
	stored, err := store.GetResult(sess.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetResult: res=%v err=%v", stored, err)
	}
	if stored.Totals[1] != totals[1] {
		t.Fatalf("totals roundtrip: got %v want %v", stored.Totals, totals)
	}
	listed, err := store.ListResponses(sess.ID)
	if err != nil || len(listed) != len(responses) {
		t.Fatalf("ListResponses: n=%d err=%v", len(listed), err)
	}

	summaries, err := store.ListSessions(models.StatusCompleted, "ana")
	if err != nil || len(summaries) != 1 {
		t.Fatalf("ListSessions: n=%d err=%v", len(summaries), err)
	}
	if summaries[0].DisplayName != "Ana" {
		t.Fatalf("summary user join: %+v", summaries[0])
	}

	if err := store.ResetSession(sess.ID); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	sess, _ = store.GetSession(sess.ID)
	if sess.Status != models.StatusCreated || sess.StartedAt != nil || sess.CompletedAt != nil {
		t.Fatalf("after ResetSession: %+v", sess)
	}
	if res, _ := store.GetResult(sess.ID); res != nil {
		t.Fatal("ResetSession left a result behind")
	}
	if listed, _ := store.ListResponses(sess.ID); len(listed) != 0 {
		t.Fatal("ResetSession left responses behind")
	}
}

func TestSQLiteResultToleratesCorruptJSON(t *testing.T) {
	store, conn := newSQLiteStore(t)
	def := seedStore(t, store)

	user, err := store.InsertUser(&models.AppUser{
		ExternalID:  "ext-1",
		DisplayName: "Ana",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	sess, err := store.InsertSession(&models.TestSession{
		TestDefinitionID:      def.ID,
		TestDefinitionVersion: def.Version,
		UserID:                user.ID,
		TokenHash:             "hash-1",
		Status:                models.StatusCreated,
		CreatedAt:             time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}

	// Corrupt totals and a NULL ranking must read back as empty substitutes.
	if _, err := conn.Exec(`
	    INSERT INTO session_result (session_id, totals_json, ranking_json, created_at)
	    VALUES (?1, 'not-json', NULL, ?2)`,
		sess.ID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		t.Fatalf("insert corrupt result: %v", err)
	}

	result, err := store.GetResult(sess.ID)
	if err != nil {
		t.Fatalf("GetResult on corrupt row: %v", err)
	}
	if result == nil {
		t.Fatal("corrupt row must still produce a result")
	}
	if len(result.Totals) != 0 {
		t.Fatalf("corrupt totals_json must decode to an empty map, got %v", result.Totals)
	}
	if result.Ranking == nil || len(result.Ranking) != 0 {
		t.Fatalf("NULL ranking_json must decode to an empty slice, got %v", result.Ranking)
	}
}

func TestSQLiteForceReplaceKeepsActiveFlag(t *testing.T) {
	store, _ := newSQLiteStore(t)
	def := seedStore(t, store)

	def.Name = "Replaced content"
	if err := store.InsertDefinition(def, false, true); err != nil {
		t.Fatalf("InsertDefinition replace: %v", err)
	}

	active, err := store.GetActiveDefinition()
	if err != nil {
		t.Fatalf("GetActiveDefinition: %v", err)
	}
	if active == nil {
		t.Fatal("replacing the active version without activate must not deactivate it")
	}
	if active.ID != def.ID || active.Version != def.Version || active.Name != "Replaced content" {
		t.Fatalf("active definition after replace: %+v", active)
	}
}

func TestMemoryForceReplaceKeepsActiveFlag(t *testing.T) {
	store := db.NewMemoryStore()
	if err := db.SeedDemoDefinition(store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	def, err := store.GetActiveDefinition()
	if err != nil || def == nil {
		t.Fatalf("active definition: %v", err)
	}

	def.Name = "Replaced content"
	if err := store.InsertDefinition(def, false, true); err != nil {
		t.Fatalf("InsertDefinition replace: %v", err)
	}
	active, err := store.GetActiveDefinition()
	if err != nil || active == nil {
		t.Fatalf("replace deactivated the definition: def=%v err=%v", active, err)
	}
	if active.Name != "Replaced content" {
		t.Fatalf("active definition after replace: %+v", active)
	}
}

func TestSQLiteSessionListOrdering(t *testing.T) {
	store, _ := newSQLiteStore(t)
	def := seedStore(t, store)
	user, err := store.InsertUser(&models.AppUser{
		ExternalID:  "ext-1",
		DisplayName: "Ana",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	// Same second, differing only in fractional digits: the whole-second
	// timestamp must still sort as the oldest.
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	insert := func(hash string, at time.Time) int64 {
		t.Helper()
		sess, err := store.InsertSession(&models.TestSession{
			TestDefinitionID:      def.ID,
			TestDefinitionVersion: def.Version,
			UserID:                user.ID,
			TokenHash:             hash,
			Status:                models.StatusCreated,
			CreatedAt:             at,
		})
		if err != nil {
			t.Fatalf("InsertSession: %v", err)
		}
		return sess.ID
	}
	first := insert("hash-1", base)
	second := insert("hash-2", base.Add(500*time.Millisecond))
	third := insert("hash-3", base.Add(500*time.Millisecond))

	summaries, err := store.ListSessions("", "")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("got %d sessions, want 3", len(summaries))
	}
	got := []int64{summaries[0].ID, summaries[1].ID, summaries[2].ID}
	want := []int64{third, second, first}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("listing order = %v, want %v (newest first, id tie-break)", got, want)
		}
	}
}

func TestMigrationsRerun(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.RunMigrations(conn, ""); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := db.RunMigrations(conn, ""); err != nil {
		t.Fatalf("second run must be idempotent: %v", err)
	}
}

func TestSQLiteUserUpdateSemantics(t *testing.T) {
	store, _ := newSQLiteStore(t)
	user, err := store.InsertUser(&models.AppUser{
		ExternalID:  "ext-1",
		DisplayName: "Ana",
		Email:       "ana@example.com",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	name := "Ana María"
	updated, err := store.UpdateUser(user.ID, nil, &name, nil)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.ExternalID != "ext-1" || updated.DisplayName != name {
		t.Fatalf("partial update: %+v", updated)
	}
	if updated.Email != "" {
		t.Fatalf("nil email must clear the column, got %q", updated.Email)
	}

	found, err := store.FindUserByExternalID("ext-1")
	if err != nil || found == nil || found.ID != user.ID {
		t.Fatalf("FindUserByExternalID: u=%v err=%v", found, err)
	}
}
