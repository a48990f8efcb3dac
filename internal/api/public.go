package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eneatest/internal/services"
)

type submitRequest struct {
	Answers map[string]int `json:"answers"`
}

func (a *API) handlePublicSession(w http.ResponseWriter, r *http.Request) {
	view, err := a.sessions.LookupByToken(chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Start(chi.URLParam(r, "token")); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (a *API) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	answers, err := parseAnswers(req.Answers)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	result, err := a.sessions.Submit(chi.URLParam(r, "token"), answers)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// parseAnswers converts the JSON object keys (item ids arrive as strings) into
// the numeric map the service layer works with.
func parseAnswers(raw map[string]int) (map[int64]int, error) {
	answers := make(map[int64]int, len(raw))
	for key, value := range raw {
		itemID, err := strconv.ParseInt(key, 10, 64)
		if err != nil || itemID <= 0 {
			return nil, services.NewInvalidError("invalid item id: " + key)
		}
		answers[itemID] = value
	}
	return answers, nil
}
