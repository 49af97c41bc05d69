// Package report turns fetched tasks and time entries into the analytics
// payloads exposed over MCP and HTTP. Every builder here is a pure function
// of its inputs; fetching happens in the Service wrappers (service.go).
package report

import (
	"fmt"
	"sort"

	"tracksync/internal/clickup"
	"tracksync/internal/metrics"
	"tracksync/internal/timeutil"
)

// GroupBy selects the aggregation key of a time tracking report.
type GroupBy string

const (
	GroupByAssignee GroupBy = "assignee"
	GroupByStatus   GroupBy = "status"
	GroupByTask     GroupBy = "task"
)

// MemberTotals is one row of a time tracking report.
type MemberTotals struct {
	Tasks           int            `json:"tasks"`
	TimeTrackedMS   int64          `json:"time_tracked"`
	TimeEstimateMS  int64          `json:"time_estimate"`
	HumanTracked    string         `json:"human_tracked"`
	HumanEstimate   string         `json:"human_est"`
	Efficiency      string         `json:"efficiency"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
}

// TimeTrackingReport is the all-statuses totals report.
type TimeTrackingReport struct {
	Report     map[string]MemberTotals `json:"report"`
	TotalTasks int                     `json:"total_tasks"`
	GroupBy    GroupBy                 `json:"group_by"`
}

// TaskMetrics runs the rollup engine over a task set.
func TaskMetrics(tasks []clickup.Task) map[string]metrics.Record {
	items := make([]metrics.Item, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, metrics.Item{
			ID:            t.ID,
			ParentID:      t.Parent,
			RawTrackedMS:  int64(t.TimeSpent),
			RawEstimateMS: int64(t.TimeEstimate),
		})
	}
	return metrics.Compute(items)
}

// BuildTimeTracking aggregates reconciled time per assignee, status, or task.
// Grouping by assignee uses direct values (so a subtask's time is not double
// counted against its parent's assignee) and splits a task's time evenly
// across its assignees; the other groupings use rolled-up totals.
func BuildTimeTracking(tasks []clickup.Task, groupBy GroupBy, statusFilter []string) TimeTrackingReport {
	if groupBy == "" {
		groupBy = GroupByAssignee
	}
	if len(statusFilter) > 0 {
		allowed := make(map[string]bool, len(statusFilter))
		for _, s := range statusFilter {
			allowed[s] = true
		}
		var kept []clickup.Task
		for _, t := range tasks {
			if allowed[t.Status.Name()] {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}

	m := TaskMetrics(tasks)
	rows := make(map[string]MemberTotals)

	for _, t := range tasks {
		rec := m[t.ID]
		var tracked, est int64
		if groupBy == GroupByAssignee {
			tracked, est = rec.TrackedDirect, rec.EstDirect
		} else {
			tracked, est = rec.TrackedTotal, rec.EstTotal
		}
		if tracked == 0 && est == 0 {
			continue
		}

		keys := groupKeys(t, groupBy)
		div := int64(1)
		if groupBy == GroupByAssignee {
			div = int64(len(keys))
		}
		for _, k := range keys {
			row := rows[k]
			if row.StatusBreakdown == nil {
				row.StatusBreakdown = make(map[string]int)
			}
			row.Tasks++
			row.TimeTrackedMS += tracked / div
			row.TimeEstimateMS += est / div
			row.StatusBreakdown[t.Status.Name()]++
			rows[k] = row
		}
	}

	for k, row := range rows {
		row.HumanTracked = timeutil.FormatDuration(row.TimeTrackedMS)
		row.HumanEstimate = timeutil.FormatDuration(row.TimeEstimateMS)
		row.Efficiency = efficiency(row.TimeTrackedMS, row.TimeEstimateMS)
		rows[k] = row
	}

	return TimeTrackingReport{Report: rows, TotalTasks: len(tasks), GroupBy: groupBy}
}

func groupKeys(t clickup.Task, groupBy GroupBy) []string {
	switch groupBy {
	case GroupByStatus:
		return []string{t.Status.Name()}
	case GroupByTask:
		return []string{t.Name}
	default:
		if len(t.Assignees) == 0 {
			return []string{"Unassigned"}
		}
		keys := make([]string, 0, len(t.Assignees))
		for _, u := range t.Assignees {
			keys = append(keys, u.Username)
		}
		return keys
	}
}

func efficiency(tracked, est int64) string {
	if est <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.0f%%", float64(tracked)/float64(est)*100)
}

// PeriodRow is one assignee's slice of a period report.
type PeriodRow struct {
	Tasks          int    `json:"tasks"`
	TimeTrackedMS  int64  `json:"time_tracked"`
	HumanTracked   string `json:"human_tracked"`
	TimeEstimateMS int64  `json:"time_estimate"`
	HumanEstimate  string `json:"human_est"`
	IntervalsCount int    `json:"intervals_count"`
}

// PeriodReport is the interval-filtered per-assignee report for a date range.
type PeriodReport struct {
	Report          map[string]PeriodRow `json:"report"`
	StartDate       string               `json:"start_date"`
	EndDate         string               `json:"end_date"`
	TotalTasks      int                  `json:"total_tasks"`
	TasksWithTime   int                  `json:"tasks_with_time_in_range"`
	TotalTrackedMS  int64                `json:"total_tracked_ms"`
	HumanTotal      string               `json:"human_total"`
	FetchErrorCount int                  `json:"fetch_error_count"`
}

// BuildPeriod splits in-range tracked time (and direct estimates) evenly
// across each task's assignees. entries is the per-task time-entry map from
// the batch fetch; tasks absent from it simply contribute nothing.
func BuildPeriod(tasks []clickup.Task, entries map[string][]clickup.TimeEntry, startMS, endMS int64, fetchErrors int) PeriodReport {
	m := TaskMetrics(tasks)
	rows := make(map[string]PeriodRow)
	tasksWithTime := 0
	var grandTotal int64

	for _, t := range tasks {
		taskEntries := entries[t.ID]
		if len(taskEntries) == 0 {
			continue
		}
		inRange, matched := clickup.FilterIntervals(taskEntries, startMS, endMS)
		if inRange == 0 {
			continue
		}
		tasksWithTime++
		grandTotal += inRange

		assignees := groupKeys(t, GroupByAssignee)
		perAssignee := inRange / int64(len(assignees))
		estDirect := m[t.ID].EstDirect
		estPerAssignee := int64(0)
		if estDirect > 0 {
			estPerAssignee = estDirect / int64(len(assignees))
		}

		for _, name := range assignees {
			row := rows[name]
			row.Tasks++
			row.TimeTrackedMS += perAssignee
			row.TimeEstimateMS += estPerAssignee
			row.IntervalsCount += len(matched)
			rows[name] = row
		}
	}

	for name, row := range rows {
		row.HumanTracked = timeutil.FormatDuration(row.TimeTrackedMS)
		row.HumanEstimate = timeutil.FormatDuration(row.TimeEstimateMS)
		rows[name] = row
	}

	return PeriodReport{
		Report:          rows,
		StartDate:       timeutil.DateOnly(startMS),
		EndDate:         timeutil.DateOnly(endMS),
		TotalTasks:      len(tasks),
		TasksWithTime:   tasksWithTime,
		TotalTrackedMS:  grandTotal,
		HumanTotal:      timeutil.FormatDuration(grandTotal),
		FetchErrorCount: fetchErrors,
	}
}

// BreakdownRow is one indented line of a task tree breakdown.
type BreakdownRow struct {
	Task          string `json:"task"`
	Status        string `json:"status"`
	TrackedTotal  string `json:"tracked_total"`
	TrackedDirect string `json:"tracked_direct"`
	Estimated     string `json:"estimated"`
}

// BuildBreakdown renders the subtree rooted at rootID (or every root when
// rootID is empty) as an indented list, two spaces per depth level. Children are visited in input order; a visited
// set keeps malformed parent loops from walking forever.
func BuildBreakdown(tasks []clickup.Task, rootID string) []BreakdownRow {
	m := TaskMetrics(tasks)
	byID := make(map[string]clickup.Task, len(tasks))
	children := make(map[string][]string)
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, t := range tasks {
		if t.Parent != "" {
			if _, ok := byID[t.Parent]; ok {
				children[t.Parent] = append(children[t.Parent], t.ID)
			}
		}
	}

	var rows []BreakdownRow
	visited := make(map[string]bool)
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		t, ok := byID[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		rec := m[id]
		rows = append(rows, BreakdownRow{
			Task:          indent(depth) + t.Name,
			Status:        t.Status.Name(),
			TrackedTotal:  timeutil.FormatDuration(rec.TrackedTotal),
			TrackedDirect: timeutil.FormatDuration(rec.TrackedDirect),
			Estimated:     timeutil.FormatDuration(rec.EstTotal),
		})
		for _, cid := range children[id] {
			walk(cid, depth+1)
		}
	}
	if rootID != "" {
		walk(rootID, 0)
		return rows
	}
	for _, t := range tasks {
		if t.Parent == "" {
			walk(t.ID, 0)
		} else if _, ok := byID[t.Parent]; !ok {
			// Parent outside the fetched set: treat as a root.
			walk(t.ID, 0)
		}
	}
	return rows
}

func indent(depth int) string {
	s := ""
	for i := 0; i < depth; i++ {
		s += "  "
	}
	return s
}

// SortedKeys returns map keys in stable order for deterministic rendering.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
