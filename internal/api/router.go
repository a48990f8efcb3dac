package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"eneatest/internal/middleware"
)

// Router assembles the HTTP surface: a public token-scoped session API and an
// admin API for users, sessions, definitions and exports.
func (a *API) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(a.log))
	r.Use(middleware.NoStore)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/health", a.handleHealth)

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/users", a.handleListUsers)
		r.Post("/users", a.handleCreateUser)
		r.Get("/users/{id}", a.handleGetUser)
		r.Put("/users/{id}", a.handleUpdateUser)
		r.Post("/users/{id}/session", a.handleIssueSession)

		r.Get("/sessions", a.handleListSessions)
		r.Get("/sessions/export", a.handleExportSessions)
		r.Get("/sessions/{id}", a.handleGetSession)
		r.Post("/sessions/{id}/reset", a.handleResetSession)
		r.Post("/sessions/{id}/revoke", a.handleRevokeSession)

		r.Get("/test", a.handleGetActiveDefinition)
		r.Get("/test/{id}/{version}", a.handleGetDefinition)
		r.Put("/items/{id}", a.handleUpdateItem)
	})

	r.Route("/api/public/session/{token}", func(r chi.Router) {
		r.Get("/", a.handlePublicSession)
		r.Post("/start", a.handleStartSession)
		r.Post("/submit", a.handleSubmitSession)
	})

	return r
}
