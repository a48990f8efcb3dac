package api

import (
	"net/http"
)

type createUserRequest struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type updateUserRequest struct {
	ExternalID  *string `json:"externalId"`
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List()
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	user, err := a.users.Create(req.ExternalID, req.DisplayName, req.Email)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	user, err := a.users.Get(id)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	user, err := a.users.Update(id, req.ExternalID, req.DisplayName, req.Email)
	if err != nil {
		writeServiceError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
