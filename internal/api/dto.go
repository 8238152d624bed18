package api

import (
	"github.com/starford/opsdash/internal/dashboard"
	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
)

// Overview is the full dashboard payload (aliased from the domain layer).
type Overview = dashboard.Overview

// ExecutiveMetrics is the KPI summary (aliased from the domain layer).
type ExecutiveMetrics = metrics.Executive

// ProjectsResponse wraps project rollups, largest first.
type ProjectsResponse struct {
	Projects []metrics.ProjectRollup `json:"projects" validate:"required"`
}

// CountsResponse wraps a labelled distribution.
type CountsResponse struct {
	Counts []metrics.Count `json:"counts" validate:"required"`
	Total  int             `json:"total" example:"42" validate:"required"`
}

// TasksResponse wraps a filtered task listing.
type TasksResponse struct {
	Tasks []metrics.Task `json:"tasks" validate:"required"`
	Total int            `json:"total" example:"12" validate:"required"`
}

// HistoryResponse wraps recorded metric runs, newest first.
type HistoryResponse struct {
	Runs []history.Run `json:"runs" validate:"required"`
}

func countsResponse(counts []metrics.Count) CountsResponse {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return CountsResponse{Counts: counts, Total: total}
}
