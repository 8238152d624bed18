package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/opsdash/internal/apperr"
	"github.com/starford/opsdash/internal/dashboard"
	"github.com/starford/opsdash/internal/metrics"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 1000
)

// Handler holds API route handlers.
type Handler struct {
	svc Dashboard
}

// NewHandler creates a new Handler.
func NewHandler(svc Dashboard) *Handler {
	return &Handler{svc: svc}
}

// Overview handles GET /api/overview.
//
//	@Summary		Executive metrics, breakdowns and snapshot metadata in one payload
//	@Tags			dashboard
//	@Produce		json
//	@Success		200	{object}	Overview
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/overview [get]
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context())
	if err != nil {
		writeError(w, "overview", err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Drop the cached snapshot and recompute from the source
//	@Tags			dashboard
//	@Produce		json
//	@Success		200	{object}	Overview
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// Executive handles GET /api/metrics.
//
//	@Summary		Executive KPI summary
//	@Tags			dashboard
//	@Produce		json
//	@Success		200	{object}	ExecutiveMetrics
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/metrics [get]
func (h *Handler) Executive(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Executive(r.Context())
	if err != nil {
		writeError(w, "executive metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Projects handles GET /api/projects.
//
//	@Summary		Per-project rollups with health scores
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectsResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	rollups, err := h.svc.Projects(r.Context())
	if err != nil {
		writeError(w, "projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectsResponse{Projects: rollups})
}

// Project handles GET /api/projects/{name}.
//
//	@Summary		Rollup for a single project (case-insensitive)
//	@Tags			projects
//	@Produce		json
//	@Param			name	path		string	true	"Project name"
//	@Success		200		{object}	metrics.ProjectRollup
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{name} [get]
func (h *Handler) Project(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rollup, err := h.svc.Project(r.Context(), name)
	if err != nil {
		writeError(w, "project", err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

// Statuses handles GET /api/statuses.
//
//	@Summary		Task counts per status bucket
//	@Tags			breakdowns
//	@Produce		json
//	@Success		200	{object}	CountsResponse
//	@Security		BearerAuth
//	@Router			/statuses [get]
func (h *Handler) Statuses(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Statuses(r.Context())
	if err != nil {
		writeError(w, "statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse(counts))
}

// Assignees handles GET /api/assignees.
//
//	@Summary		Task counts per assignee
//	@Tags			breakdowns
//	@Produce		json
//	@Success		200	{object}	CountsResponse
//	@Security		BearerAuth
//	@Router			/assignees [get]
func (h *Handler) Assignees(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Assignees(r.Context())
	if err != nil {
		writeError(w, "assignees", err)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse(counts))
}

// Ages handles GET /api/ages.
//
//	@Summary		Task counts per age bucket
//	@Tags			breakdowns
//	@Produce		json
//	@Success		200	{object}	CountsResponse
//	@Security		BearerAuth
//	@Router			/ages [get]
func (h *Handler) Ages(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Ages(r.Context())
	if err != nil {
		writeError(w, "ages", err)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse(counts))
}

// Tasks handles GET /api/tasks.
//
//	@Summary		Normalized task rows with optional filters
//	@Tags			tasks
//	@Produce		json
//	@Param			bucket	query		string	false	"Status bucket"	Enums(open, working, done, archived, unclassified)
//	@Param			project	query		string	false	"Project name (case-insensitive)"
//	@Param			overdue	query		bool	false	"Only overdue tasks"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	TasksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	f, err := parseTaskFilter(r)
	if err != nil {
		writeError(w, "tasks", err)
		return
	}
	tasks, err := h.svc.Tasks(r.Context(), f)
	if err != nil {
		writeError(w, "tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: tasks, Total: len(tasks)})
}

// History handles GET /api/history.
//
//	@Summary		Recorded metric runs, newest first
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs (default 30)"
//	@Success		200		{object}	HistoryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	runs, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Runs: runs})
}

func parseTaskFilter(r *http.Request) (dashboard.TaskFilter, error) {
	q := r.URL.Query()
	f := dashboard.TaskFilter{Project: q.Get("project")}

	if raw := q.Get("bucket"); raw != "" {
		b, err := metrics.ParseBucket(raw)
		if err != nil {
			return f, fmt.Errorf("%w: unknown bucket %q", apperr.ErrInvalidArgument, raw)
		}
		f.Bucket = &b
	}
	if raw := q.Get("overdue"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: overdue must be a boolean", apperr.ErrInvalidArgument)
		}
		f.OverdueOnly = v
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: limit must be a non-negative integer", apperr.ErrInvalidArgument)
		}
		f.Limit = n
	}
	return f, nil
}
