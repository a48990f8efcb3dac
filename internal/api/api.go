package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"eneatest/internal/services"
)

// API bundles the service layer behind the HTTP handlers.
type API struct {
	users       *services.UserService
	sessions    *services.SessionService
	definitions *services.DefinitionService
	log         *zap.Logger
}

func New(users *services.UserService, sessions *services.SessionService, definitions *services.DefinitionService, log *zap.Logger) *API {
	return &API{
		users:       users,
		sessions:    sessions,
		definitions: definitions,
		log:         log,
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewInvalidError("invalid " + name)
	}
	return id, nil
}
