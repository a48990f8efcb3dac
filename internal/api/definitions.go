package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eneatest/internal/services"
)

type updateItemRequest struct {
	Text     *string `json:"text"`
	IsActive *bool   `json:"isActive"`
}

func (a *API) handleGetActiveDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := a.definitions.Resolve("", 0)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"test": def})
}

func (a *API) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version <= 0 {
		writeServiceError(w, a.log, services.NewInvalidError("invalid version"))
		return
	}
	def, err := a.definitions.Resolve(id, version)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"test": def})
}

func (a *API) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	if req.Text == nil && req.IsActive == nil {
		writeServiceError(w, a.log, services.NewInvalidError("nothing to update"))
		return
	}
	item, err := a.definitions.UpdateItem(id, req.Text, req.IsActive)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}
