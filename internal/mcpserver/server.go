// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes dashboard metrics as tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/opsdash/internal/apperr"
	"github.com/starford/opsdash/internal/dashboard"
	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
)

const definitionsURI = "opsdash://metric-definitions"

// Dashboard is the subset of the dashboard service the tools call.
type Dashboard interface {
	Executive(ctx context.Context) (metrics.Executive, error)
	Projects(ctx context.Context) ([]metrics.ProjectRollup, error)
	Project(ctx context.Context, name string) (metrics.ProjectRollup, error)
	Statuses(ctx context.Context) ([]metrics.Count, error)
	Tasks(ctx context.Context, f dashboard.TaskFilter) ([]metrics.Task, error)
	History(ctx context.Context, limit int) ([]history.Run, error)
	Refresh(ctx context.Context) (*dashboard.Overview, error)
}

// Server wraps the MCP server with dashboard tools.
type Server struct {
	mcp *server.MCPServer
	svc Dashboard
}

// New creates a new MCP server with all dashboard tools registered.
func New(svc Dashboard, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Opsdash",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_executive_metrics",
		mcp.WithDescription("Executive KPI summary: active, in-progress and overdue task counts, "+
			"completion rate and per-bucket totals."),
	), s.getExecutiveMetrics)

	s.mcp.AddTool(mcp.NewTool("get_project_rollup",
		mcp.WithDescription("Per-project task counts and health scores, largest project first. "+
			"Pass project to get a single rollup."),
		mcp.WithString("project", mcp.Description("Optional project name (case-insensitive)")),
	), s.getProjectRollup)

	s.mcp.AddTool(mcp.NewTool("get_status_breakdown",
		mcp.WithDescription("Task counts for Not Started, In Progress, Completed and Archived."),
	), s.getStatusBreakdown)

	s.mcp.AddTool(mcp.NewTool("list_overdue_tasks",
		mcp.WithDescription("Pending tasks assigned longer ago than the overdue threshold, in sheet order."),
		mcp.WithString("project", mcp.Description("Optional project name to filter by")),
		mcp.WithNumber("limit", mcp.Description("Max tasks to return (default 50)")),
	), s.listOverdueTasks)

	s.mcp.AddTool(mcp.NewTool("get_metrics_history",
		mcp.WithDescription("Recorded metric runs, newest first. A run is stored whenever the sheet content changes."),
		mcp.WithNumber("limit", mcp.Description("Max runs to return (default 20)")),
	), s.getMetricsHistory)

	s.mcp.AddTool(mcp.NewTool("refresh_data",
		mcp.WithDescription("Re-read the task sheet, bypassing the cache, and return the new executive metrics."),
	), s.refreshData)

	s.mcp.AddTool(mcp.NewTool("get_metric_definitions",
		mcp.WithDescription("Explains how each metric is computed. Call this before interpreting numbers."),
	), s.getMetricDefinitions)

	// Resource: metric definitions.
	s.mcp.AddResource(
		mcp.NewResource(definitionsURI, "Metric Definitions",
			mcp.WithResourceDescription("How buckets, overdue counts, completion rates and health scores are derived."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDefinitionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getExecutiveMetrics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.svc.Executive(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(m)
}

func (s *Server) getProjectRollup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if name := req.GetString("project", ""); name != "" {
		r, err := s.svc.Project(ctx, name)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", name)), nil
			}
			return toolError(err), nil
		}
		return jsonResult(r)
	}
	rollups, err := s.svc.Projects(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rollups)
}

func (s *Server) getStatusBreakdown(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.svc.Statuses(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(counts)
}

func (s *Server) listOverdueTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	tasks, err := s.svc.Tasks(ctx, dashboard.TaskFilter{
		Project:     req.GetString("project", ""),
		OverdueOnly: true,
		Limit:       limit,
	})
	if err != nil {
		return toolError(err), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no overdue tasks"), nil
	}
	return jsonResult(tasks)
}

func (s *Server) getMetricsHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	runs, err := s.svc.History(ctx, limit)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(runs)
}

func (s *Server) refreshData(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ov, err := s.svc.Refresh(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"snapshot":  ov.Meta,
		"executive": ov.Executive,
	})
}

func (s *Server) getMetricDefinitions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MetricDefinitions), nil
}

func (s *Server) readDefinitionsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      definitionsURI,
			MIMEType: "text/markdown",
			Text:     MetricDefinitions,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrSourceUnavailable) {
		return mcp.NewToolResultError("data source unavailable: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}
