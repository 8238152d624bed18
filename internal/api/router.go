package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Dashboard, auth AuthConfig, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	eh := NewExportHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	// Dashboard views.
	r.Get("/overview", h.Overview)
	r.Get("/metrics", h.Executive)
	r.Get("/projects", h.Projects)
	r.Get("/projects/{name}", h.Project)
	r.Get("/statuses", h.Statuses)
	r.Get("/assignees", h.Assignees)
	r.Get("/ages", h.Ages)
	r.Get("/tasks", h.Tasks)
	r.Get("/history", h.History)

	r.Post("/refresh", h.Refresh)

	// Raw rows as CSV.
	r.Get("/export.csv", eh.ServeCSV)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
