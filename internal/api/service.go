package api

import (
	"context"

	"github.com/starford/opsdash/internal/dashboard"
	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
)

// Dashboard is the service surface the handlers depend on.
// *dashboard.Service satisfies it.
type Dashboard interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
	Refresh(ctx context.Context) (*dashboard.Overview, error)
	Executive(ctx context.Context) (metrics.Executive, error)
	Projects(ctx context.Context) ([]metrics.ProjectRollup, error)
	Project(ctx context.Context, name string) (metrics.ProjectRollup, error)
	Statuses(ctx context.Context) ([]metrics.Count, error)
	Assignees(ctx context.Context) ([]metrics.Count, error)
	Ages(ctx context.Context) ([]metrics.Count, error)
	Tasks(ctx context.Context, f dashboard.TaskFilter) ([]metrics.Task, error)
	History(ctx context.Context, limit int) ([]history.Run, error)
	Export(ctx context.Context) (dashboard.Meta, [][]string, error)
}

var _ Dashboard = (*dashboard.Service)(nil)
