package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eneatest/internal/api"
	"eneatest/internal/db"
	"eneatest/internal/services"
)

func newTestServer(t *testing.T) (*httptest.Server, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	require.NoError(t, db.SeedDemoDefinition(store))

	handler := api.New(
		services.NewUserService(store),
		services.NewSessionService(store, "test-secret"),
		services.NewDefinitionService(store),
		zap.NewNop(),
	).Router([]string{"*"})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", payload["status"])
}

func TestRespondentFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/admin/users", map[string]string{
		"externalId":  "ext-1",
		"displayName": "Ana",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := int64(payload["user"].(map[string]any)["id"].(float64))

	resp, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/admin/users/%d/session", srv.URL, userID), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := payload["token"].(string)
	require.Len(t, token, 32)

	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/api/public/session/"+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, payload["test"])
	require.Nil(t, payload["result"])

	// Collect every active item id from the public view.
	answers := map[string]int{}
	test := payload["test"].(map[string]any)
	for _, q := range test["questionnaires"].([]any) {
		for _, it := range q.(map[string]any)["items"].([]any) {
			id := int64(it.(map[string]any)["id"].(float64))
			answers[fmt.Sprintf("%d", id)] = 3
		}
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/public/session/"+token+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/api/public/session/"+token+"/submit", map[string]any{
		"answers": answers,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := payload["result"].(map[string]any)
	require.NotEmpty(t, result["totals"])
	require.Len(t, result["ranking"].([]any), 9)

	// A second submission conflicts with the completed state.
	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/api/public/session/"+token+"/submit", map[string]any{
		"answers": answers,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotEmpty(t, payload["error"].(map[string]any)["message"])
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/api/public/session/deadbeefdeadbeefdeadbeefdeadbeef", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "session not found", payload["error"].(map[string]any)["message"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/users", map[string]string{"externalId": "only"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/admin/sessions?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/admin/users/99", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Duplicate externalId maps to 409.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/users", map[string]string{"externalId": "dup", "displayName": "A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/users", map[string]string{"externalId": "dup", "displayName": "B"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSessionExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	_, payload := doJSON(t, http.MethodPost, srv.URL+"/api/admin/users", map[string]string{
		"externalId":  "ext-1",
		"displayName": "Ana",
	})
	userID := int64(payload["user"].(map[string]any)["id"].(float64))
	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/admin/users/%d/session", srv.URL, userID), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	raw, err := http.Get(srv.URL + "/api/admin/sessions/export")
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
	require.Contains(t, raw.Header.Get("Content-Type"), "text/csv")
}

func TestItemUpdateEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	def, err := store.GetActiveDefinition()
	require.NoError(t, err)
	itemID := def.Questionnaires[0].Items[0].ID

	resp, payload := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/admin/items/%d", srv.URL, itemID), map[string]any{
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, payload["item"].(map[string]any)["isActive"])

	resp, _ = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/admin/items/%d", srv.URL, itemID), map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
