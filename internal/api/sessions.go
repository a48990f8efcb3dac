package api

import (
	"net/http"

	"eneatest/internal/models"
	"eneatest/internal/services"
)

func (a *API) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	issued, err := a.sessions.Issue(userID)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, issued)
}

func sessionFilter(r *http.Request) (models.SessionStatus, string, error) {
	search := r.URL.Query().Get("search")
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", search, nil
	}
	status := models.SessionStatus(raw)
	switch status {
	case models.StatusCreated, models.StatusStarted, models.StatusCompleted, models.StatusRevoked:
		return status, search, nil
	}
	return "", "", services.NewInvalidError("unknown status filter")
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	status, search, err := sessionFilter(r)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	sessions, err := a.sessions.List(status, search)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (a *API) handleExportSessions(w http.ResponseWriter, r *http.Request) {
	status, search, err := sessionFilter(r)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	rows, err := a.sessions.ExportRows(status, search)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	data, err := services.ExportSessionsCSV(rows)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sessions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	detail, err := a.sessions.AdminGet(id)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	if err := a.sessions.Reset(id); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (a *API) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	if err := a.sessions.Revoke(id); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
