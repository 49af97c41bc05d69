package report

import (
	"time"

	"tracksync/internal/clickup"
	"tracksync/internal/timeutil"
)

// EstimationAccuracy compares direct tracked time against direct estimates.
type EstimationAccuracy struct {
	TotalEstimated   string            `json:"total_estimated"`
	SpentOnEstimated string            `json:"spent_on_estimated"`
	SpentUnplanned   string            `json:"spent_unplanned"`
	Breakdown        AccuracyBreakdown `json:"accuracy_breakdown"`
}

type AccuracyBreakdown struct {
	Accurate       int `json:"accurate"`
	UnderEstimated int `json:"under_estimated"`
	OverEstimated  int `json:"over_estimated"`
}

// BuildEstimationAccuracy buckets estimated tasks by tracked/estimate ratio:
// under 0.8 (or untouched) counts as over-estimated, above 1.2 as
// under-estimated, the band between as accurate. Time on unestimated tasks
// is reported separately as unplanned.
func BuildEstimationAccuracy(tasks []clickup.Task) EstimationAccuracy {
	m := TaskMetrics(tasks)
	var estTotal, spentOnEst, spentUnplanned int64
	var breakdown AccuracyBreakdown

	for _, t := range tasks {
		rec := m[t.ID]
		tracked, est := rec.TrackedDirect, rec.EstDirect
		switch {
		case est > 0:
			estTotal += est
			spentOnEst += tracked
			ratio := float64(tracked) / float64(est)
			switch {
			case tracked == 0 || ratio < 0.8:
				breakdown.OverEstimated++
			case ratio > 1.2:
				breakdown.UnderEstimated++
			default:
				breakdown.Accurate++
			}
		case tracked > 0:
			spentUnplanned += tracked
		}
	}

	return EstimationAccuracy{
		TotalEstimated:   timeutil.FormatDuration(estTotal),
		SpentOnEstimated: timeutil.FormatDuration(spentOnEst),
		SpentUnplanned:   timeutil.FormatDuration(spentUnplanned),
		Breakdown:        breakdown,
	}
}

// StatusSummary counts tasks per status name and per category.
type StatusSummary struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

// BuildStatusSummary tallies status names and their resolved categories.
func BuildStatusSummary(tasks []clickup.Task) StatusSummary {
	s := StatusSummary{
		Total:    len(tasks),
		ByStatus: make(map[string]int),
		ByCategory: map[string]int{
			CategoryNotStarted: 0,
			CategoryActive:     0,
			CategoryDone:       0,
			CategoryClosed:     0,
			CategoryOther:      0,
		},
	}
	for _, t := range tasks {
		s.ByStatus[t.Status.Name()]++
		s.ByCategory[StatusCategory(t.Status)]++
	}
	return s
}

// FlaggedTask is a task surfaced by a risk/staleness/untracked check.
type FlaggedTask struct {
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
	Risk       string `json:"risk,omitempty"`
	Due        string `json:"due,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
}

// BuildUntracked returns active tasks with zero direct tracked time.
// statusFilter "all" widens the check to every non-terminal category.
func BuildUntracked(tasks []clickup.Task, statusFilter string) []FlaggedTask {
	m := TaskMetrics(tasks)
	var out []FlaggedTask
	for _, t := range tasks {
		if statusFilter != "all" && StatusCategory(t.Status) != CategoryActive {
			continue
		}
		if m[t.ID].TrackedDirect == 0 {
			out = append(out, FlaggedTask{Name: t.Name, Status: t.Status.Name()})
		}
	}
	return out
}

// BuildStale returns non-terminal tasks with no update in staleDays.
func BuildStale(tasks []clickup.Task, staleDays int, now time.Time) []FlaggedTask {
	cutoff := now.UnixMilli() - int64(staleDays)*86400000
	var out []FlaggedTask
	for _, t := range tasks {
		cat := StatusCategory(t.Status)
		if cat == CategoryDone || cat == CategoryClosed {
			continue
		}
		if int64(t.DateUpdated) < cutoff {
			out = append(out, FlaggedTask{
				Name:       t.Name,
				LastUpdate: timeutil.DateOnly(int64(t.DateUpdated)),
			})
		}
	}
	return out
}

// BuildAtRisk returns open tasks overdue or due within riskDays.
func BuildAtRisk(tasks []clickup.Task, riskDays int, now time.Time) []FlaggedTask {
	nowMS := now.UnixMilli()
	limit := nowMS + int64(riskDays)*86400000
	var out []FlaggedTask
	for _, t := range tasks {
		cat := StatusCategory(t.Status)
		if cat != CategoryActive && cat != CategoryNotStarted {
			continue
		}
		due := int64(t.DueDate)
		if due == 0 {
			continue
		}
		switch {
		case due < nowMS:
			out = append(out, FlaggedTask{Name: t.Name, Risk: "Overdue", Due: timeutil.DateOnly(due)})
		case due <= limit:
			out = append(out, FlaggedTask{Name: t.Name, Risk: "Due Soon", Due: timeutil.DateOnly(due)})
		}
	}
	return out
}

// ProgressEntry is one task surfaced by the progress-since check.
type ProgressEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Date   string `json:"date"`
}

// Progress lists what moved since a cutoff: tasks that reached a terminal
// status, and (optionally) every task whose status or fields changed.
type Progress struct {
	CompletedTasks []ProgressEntry `json:"completed_tasks"`
	TotalCompleted int             `json:"total_completed"`
	StatusChanges  []ProgressEntry `json:"status_changes,omitempty"`
}

// BuildProgress splits tasks into completed-since and changed-since buckets.
// Completion means a done/closed category with a close date at or after the
// cutoff; the caller is expected to have already filtered the fetch to tasks
// updated after it.
func BuildProgress(tasks []clickup.Task, sinceMS int64, includeChanges bool) Progress {
	p := Progress{}
	for _, t := range tasks {
		cat := StatusCategory(t.Status)
		if (cat == CategoryDone || cat == CategoryClosed) && int64(t.DateClosed) >= sinceMS {
			p.CompletedTasks = append(p.CompletedTasks, ProgressEntry{
				Name:   t.Name,
				Status: t.Status.Name(),
				Date:   timeutil.DateOnly(int64(t.DateClosed)),
			})
		}
		if includeChanges && int64(t.DateUpdated) >= sinceMS {
			p.StatusChanges = append(p.StatusChanges, ProgressEntry{
				Name:   t.Name,
				Status: t.Status.Name(),
				Date:   timeutil.DateOnly(int64(t.DateUpdated)),
			})
		}
	}
	p.TotalCompleted = len(p.CompletedTasks)
	return p
}

// InactiveAssignee is a team member with no task activity since the cutoff.
type InactiveAssignee struct {
	User       string `json:"user"`
	LastActive string `json:"last_active"`
}

// BuildInactiveAssignees reports assignees whose most recent task update or
// close predates inactiveDays.
func BuildInactiveAssignees(tasks []clickup.Task, inactiveDays int, now time.Time) []InactiveAssignee {
	cutoff := now.UnixMilli() - int64(inactiveDays)*86400000
	lastActivity := make(map[string]int64)
	for _, t := range tasks {
		act := int64(t.DateUpdated)
		if closed := int64(t.DateClosed); closed > act {
			act = closed
		}
		for _, u := range t.Assignees {
			if act > lastActivity[u.Username] {
				lastActivity[u.Username] = act
			}
		}
	}

	var out []InactiveAssignee
	for _, user := range SortedKeys(lastActivity) {
		if lastActivity[user] < cutoff {
			out = append(out, InactiveAssignee{
				User:       user,
				LastActive: timeutil.DateOnly(lastActivity[user]),
			})
		}
	}
	return out
}
