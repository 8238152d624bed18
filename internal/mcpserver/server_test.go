package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/opsdash/internal/dashboard"
	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
	"github.com/starford/opsdash/internal/snapshot"
	"github.com/starford/opsdash/internal/testutil"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) string {
	return testNow.AddDate(0, 0, -n).Format(metrics.DateLayout)
}

func testServer(t *testing.T) (*Server, *testutil.Provider) {
	t.Helper()

	provider := testutil.NewProvider([][]string{
		{"Task", "Status", "Project", "Date Assigned"},
		{"Write runbook", "Open", "Ops", daysAgo(40)},
		{"Rotate keys", "In Progress", "Ops", daysAgo(3)},
		{"Ship v2", "Done", "Web", daysAgo(10)},
		{"Audit", "working", "Web", daysAgo(45)},
	})
	cache := snapshot.New(provider, time.Hour, testutil.Logger())

	db, err := history.Open(history.DriverSQLite, testutil.TempDBPath(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	engine := metrics.New(metrics.WithClock(func() time.Time { return testNow }))
	svc := dashboard.NewService(cache, engine,
		dashboard.WithHistory(db, 0),
		dashboard.WithLogger(testutil.Logger()),
	)
	return New(svc, "test"), provider
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler functions.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_executive_metrics":
		result, err = srv.getExecutiveMetrics(ctx, req)
	case "get_project_rollup":
		result, err = srv.getProjectRollup(ctx, req)
	case "get_status_breakdown":
		result, err = srv.getStatusBreakdown(ctx, req)
	case "list_overdue_tasks":
		result, err = srv.listOverdueTasks(ctx, req)
	case "get_metrics_history":
		result, err = srv.getMetricsHistory(ctx, req)
	case "refresh_data":
		result, err = srv.refreshData(ctx, req)
	case "get_metric_definitions":
		result, err = srv.getMetricDefinitions(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestExecutiveMetrics(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_executive_metrics", nil)
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	var m metrics.Executive
	if err := json.Unmarshal([]byte(resultText(r)), &m); err != nil {
		t.Fatal(err)
	}
	if m.TotalTasks != 4 || m.ActiveTasks != 1 || m.InProgressTasks != 2 || m.OverdueTasks != 2 {
		t.Errorf("metrics = %+v", m)
	}
	if m.CompletionRate != 25 {
		t.Errorf("completion_rate = %v, want 25", m.CompletionRate)
	}
}

func TestProjectRollup(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_project_rollup", map[string]interface{}{})
	var all []metrics.ProjectRollup
	if err := json.Unmarshal([]byte(resultText(r)), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("rollups = %d, want 2", len(all))
	}

	r = callTool(t, srv, "get_project_rollup", map[string]interface{}{"project": "web"})
	var web metrics.ProjectRollup
	if err := json.Unmarshal([]byte(resultText(r)), &web); err != nil {
		t.Fatal(err)
	}
	// (1 done + 0.5 × 1 working) / 2 = 75
	if web.HealthScore != 75 {
		t.Errorf("web health = %d, want 75", web.HealthScore)
	}

	r = callTool(t, srv, "get_project_rollup", map[string]interface{}{"project": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown project")
	}
}

func TestStatusBreakdown(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_status_breakdown", nil)
	text := resultText(r)
	for _, label := range []string{"Not Started", "In Progress", "Completed", "Archived"} {
		if !strings.Contains(text, label) {
			t.Errorf("breakdown missing %q: %s", label, text)
		}
	}
}

func TestListOverdueTasks(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_overdue_tasks", map[string]interface{}{})
	var tasks []metrics.Task
	if err := json.Unmarshal([]byte(resultText(r)), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Write runbook" || tasks[1].Title != "Audit" {
		t.Errorf("overdue = %+v", tasks)
	}

	r = callTool(t, srv, "list_overdue_tasks", map[string]interface{}{"limit": 1})
	tasks = nil
	_ = json.Unmarshal([]byte(resultText(r)), &tasks)
	if len(tasks) != 1 {
		t.Errorf("limited overdue = %d, want 1", len(tasks))
	}

	r = callTool(t, srv, "list_overdue_tasks", map[string]interface{}{"project": "Marketing"})
	if got := resultText(r); got != "no overdue tasks" {
		t.Errorf("empty result = %q", got)
	}

	r = callTool(t, srv, "list_overdue_tasks", map[string]interface{}{"limit": 0})
	if !r.IsError {
		t.Error("expected error for zero limit")
	}
}

func TestMetricsHistoryAndRefresh(t *testing.T) {
	srv, provider := testServer(t)

	callTool(t, srv, "get_executive_metrics", nil)
	provider.Set([][]string{
		{"Status"},
		{"Done"},
	})
	r := callTool(t, srv, "refresh_data", nil)
	if r.IsError {
		t.Fatalf("refresh failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"completion_rate": 100`) {
		t.Errorf("refresh result = %s", resultText(r))
	}

	r = callTool(t, srv, "get_metrics_history", map[string]interface{}{"limit": 10})
	var runs []history.Run
	if err := json.Unmarshal([]byte(resultText(r)), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Total != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestSourceFailure(t *testing.T) {
	srv, provider := testServer(t)
	provider.Fail(errors.New("boom"))

	r := callTool(t, srv, "get_executive_metrics", nil)
	if !r.IsError {
		t.Fatal("expected error result")
	}
	if !strings.HasPrefix(resultText(r), "data source unavailable") {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestMetricDefinitions(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_metric_definitions", nil)
	if !strings.Contains(resultText(r), "health_score") {
		t.Error("definitions should document health_score")
	}

	contents, err := srv.readDefinitionsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != definitionsURI {
		t.Errorf("resource = %+v", contents)
	}
}
