// Package mcptools exposes the report service as MCP tools over stdio.
// Each tool is a small struct pairing a Definition with its Handle func;
// registration happens in NewServer.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tracksync/internal/jobs"
	"tracksync/internal/report"
	"tracksync/internal/timeutil"
)

// NewServer builds the MCP server with every report tool registered.
func NewServer(svc *report.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tracksync",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	tracking := &timeTrackingTool{svc: svc}
	s.AddTool(tracking.Definition(), tracking.Handle)

	period := &periodReportTool{svc: svc}
	s.AddTool(period.Definition(), period.Handle)

	breakdown := &breakdownTool{svc: svc}
	s.AddTool(breakdown.Definition(), breakdown.Handle)

	accuracy := &accuracyTool{svc: svc}
	s.AddTool(accuracy.Definition(), accuracy.Handle)

	statuses := &statusSummaryTool{svc: svc}
	s.AddTool(statuses.Definition(), statuses.Handle)

	untracked := &untrackedTool{svc: svc}
	s.AddTool(untracked.Definition(), untracked.Handle)

	health := &projectHealthTool{svc: svc}
	s.AddTool(health.Definition(), health.Handle)

	progress := &progressTool{svc: svc}
	s.AddTool(progress.Definition(), progress.Handle)

	jobStatus := &jobStatusTool{svc: svc}
	s.AddTool(jobStatus.Definition(), jobStatus.Handle)

	jobResult := &jobResultTool{svc: svc}
	s.AddTool(jobResult.Definition(), jobResult.Handle)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

// timeNow is stubbed in tests for deterministic week resolution.
var timeNow = time.Now

// splitCSV turns "DONE, SHIPPED" into trimmed parts, nil when empty.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type timeTrackingTool struct{ svc *report.Service }

func (t *timeTrackingTool) Definition() mcp.Tool {
	return mcp.NewTool("get_time_tracking_report",
		mcp.WithDescription("Cumulative tracked vs estimated time per assignee, status, or task. Subtask time is reconciled so nothing is double counted."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
		mcp.WithString("group_by", mcp.Description("assignee (default), status, or task")),
		mcp.WithString("status_filter", mcp.Description("Comma-separated status names to include; empty means all")),
	)
}

func (t *timeTrackingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := t.svc.TimeTracking(
		req.GetString("space", ""),
		report.GroupBy(req.GetString("group_by", "assignee")),
		splitCSV(req.GetString("status_filter", "")),
	)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rep)
}

type periodReportTool struct{ svc *report.Service }

func (t *periodReportTool) Definition() mcp.Tool {
	return mcp.NewTool("get_time_report_by_period",
		mcp.WithDescription("Per-assignee time tracked inside a date range, computed from raw timer intervals. Large workspaces run as a background job; poll with get_async_report_status."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
		mcp.WithString("week", mcp.Description("Week selector: current, previous, N-weeks-ago, or a YYYY-MM-DD inside the week")),
		mcp.WithString("start_date", mcp.Description("Explicit range start YYYY-MM-DD (overrides week)")),
		mcp.WithString("end_date", mcp.Description("Explicit range end YYYY-MM-DD, inclusive")),
		mcp.WithBoolean("async", mcp.Description("Run in the background and return a job id immediately")),
	)
}

func (t *periodReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	startDate := req.GetString("start_date", "")
	endDate := req.GetString("end_date", "")

	var startMS, endMS int64
	if startDate != "" || endDate != "" {
		start, end, err := timeutil.ParseRange(startDate, endDate)
		if err != nil {
			return errorResult(err)
		}
		startMS, endMS = timeutil.TimeToMS(start), timeutil.TimeToMS(end)
	} else {
		start, end, err := timeutil.WeekRange(req.GetString("week", "current"), timeNow())
		if err != nil {
			return errorResult(err)
		}
		startMS, endMS = timeutil.TimeToMS(start), timeutil.TimeToMS(end)
	}

	mode := jobs.ModeBlocking
	if req.GetBool("async", false) {
		mode = jobs.ModeAsync
	}

	result, handle, err := t.svc.Period(req.GetString("space", ""), startMS, endMS, mode)
	if err != nil {
		return errorResult(err)
	}
	if handle != nil {
		return jsonResult(handle)
	}
	return jsonResult(result)
}

type breakdownTool struct{ svc *report.Service }

func (t *breakdownTool) Definition() mcp.Tool {
	return mcp.NewTool("get_task_time_breakdown",
		mcp.WithDescription("Indented task tree with rolled-up and direct tracked time per node."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
		mcp.WithString("task_id", mcp.Description("Root task id; empty renders every tree")),
	)
}

func (t *breakdownTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := t.svc.Breakdown(req.GetString("space", ""), req.GetString("task_id", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rows)
}

type accuracyTool struct{ svc *report.Service }

func (t *accuracyTool) Definition() mcp.Tool {
	return mcp.NewTool("get_estimation_accuracy",
		mcp.WithDescription("Compares direct tracked time against direct estimates, bucketing tasks into accurate / over / under-estimated."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
	)
}

func (t *accuracyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := t.svc.Accuracy(req.GetString("space", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rep)
}

type statusSummaryTool struct{ svc *report.Service }

func (t *statusSummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("get_status_summary",
		mcp.WithDescription("Task counts per status name and per category (not_started/active/done/closed/other)."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
	)
}

func (t *statusSummaryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := t.svc.Statuses(req.GetString("space", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rep)
}

type untrackedTool struct{ svc *report.Service }

func (t *untrackedTool) Definition() mcp.Tool {
	return mcp.NewTool("get_untracked_tasks",
		mcp.WithDescription("Tasks with zero directly tracked time. Checks active tasks by default; status_filter=all widens to every non-terminal task."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
		mcp.WithString("status_filter", mcp.Description("Empty for active tasks only, 'all' for every task")),
	)
}

func (t *untrackedTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := t.svc.Untracked(req.GetString("space", ""), req.GetString("status_filter", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"count": len(rows), "tasks": rows})
}

type projectHealthTool struct{ svc *report.Service }

func (t *projectHealthTool) Definition() mcp.Tool {
	return mcp.NewTool("get_project_health",
		mcp.WithDescription("Stale tasks, overdue/at-risk tasks, and inactive assignees in one pass."),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
		mcp.WithNumber("stale_days", mcp.Description("Days without update before a task counts as stale (default 14)")),
		mcp.WithNumber("risk_days", mcp.Description("Due-date lookahead for at-risk tasks (default 7)")),
		mcp.WithNumber("inactive_days", mcp.Description("Days without activity before an assignee counts as inactive (default 14)")),
	)
}

func (t *projectHealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := t.svc.ProjectHealth(
		req.GetString("space", ""),
		req.GetInt("stale_days", 14),
		req.GetInt("risk_days", 7),
		req.GetInt("inactive_days", 14),
	)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rep)
}

type progressTool struct{ svc *report.Service }

func (t *progressTool) Definition() mcp.Tool {
	return mcp.NewTool("get_progress_since",
		mcp.WithDescription("Tasks completed or status-changed since a date. The fetch is filtered to tasks updated after the cutoff."),
		mcp.WithString("since_date", mcp.Required(), mcp.Description("Cutoff as YYYY-MM-DD or an RFC 3339 timestamp")),
		mcp.WithString("space", mcp.Description("Space name; empty means the whole workspace")),
		mcp.WithBoolean("include_status_changes", mcp.Description("Also list every task updated since the cutoff (default true)")),
	)
}

func (t *progressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sinceDate, err := req.RequireString("since_date")
	if err != nil {
		return errorResult(err)
	}
	since, err := timeutil.ParseDate(sinceDate)
	if err != nil {
		return errorResult(err)
	}
	rep, err := t.svc.ProgressSince(
		req.GetString("space", ""),
		timeutil.TimeToMS(since),
		req.GetBool("include_status_changes", true),
	)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rep)
}

type jobStatusTool struct{ svc *report.Service }

func (t *jobStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("get_async_report_status",
		mcp.WithDescription("Polls a background report job. Finished jobs return the result inline; non-terminal jobs allow a limited number of polls before asking the caller to stop."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id from an async report")),
	)
}

func (t *jobStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return errorResult(err)
	}
	resp, err := t.svc.JobStatus(jobID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(resp)
}

type jobResultTool struct{ svc *report.Service }

func (t *jobResultTool) Definition() mcp.Tool {
	return mcp.NewTool("get_async_report_result",
		mcp.WithDescription("Fetches a finished background report. Safe to call repeatedly; does not count against the poll limit."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id from an async report")),
	)
}

func (t *jobResultTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return errorResult(err)
	}
	result, status, err := t.svc.JobResult(jobID)
	if err != nil {
		return errorResult(err)
	}
	if status != jobs.StatusFinished {
		return jsonResult(map[string]any{"status": status, "message": "report not ready yet"})
	}
	return jsonResult(map[string]any{"status": status, "result": result})
}
