package report

import (
	"fmt"
	"log"
	"time"

	"tracksync/internal/batch"
	"tracksync/internal/clickup"
	"tracksync/internal/jobs"
)

// autoAsyncThreshold is the task count above which period reports switch to
// background jobs on their own: fetching time entries for that many tasks
// takes long enough that a synchronous caller would give up first.
const autoAsyncThreshold = 300

// Service runs reports against live ClickUp data. Heavy operations go
// through the job dispatcher so callers can poll instead of blocking.
type Service struct {
	cu         *clickup.Client
	dispatcher *jobs.Dispatcher
	maxWorkers int
	now        func() time.Time
}

func NewService(cu *clickup.Client, dispatcher *jobs.Dispatcher, maxWorkers int) *Service {
	if maxWorkers <= 0 {
		maxWorkers = batch.DefaultMaxWorkers
	}
	return &Service{cu: cu, dispatcher: dispatcher, maxWorkers: maxWorkers, now: time.Now}
}

func (s *Service) fetcher(label string) *batch.Fetcher {
	return batch.New(s.maxWorkers, label)
}

func (s *Service) fetchTasks(spaceName string) ([]clickup.Task, error) {
	return s.queryTasks(spaceName, clickup.TaskQuery{})
}

func (s *Service) queryTasks(spaceName string, q clickup.TaskQuery) ([]clickup.Task, error) {
	if spaceName != "" {
		return s.cu.FetchSpaceTasks(spaceName, q, s.fetcher("tasks"))
	}
	return s.cu.FetchTeamTasks(q, s.fetcher("tasks"))
}

// TimeTracking builds the cumulative tracked/estimated report for a space
// (or the whole workspace when spaceName is empty).
func (s *Service) TimeTracking(spaceName string, groupBy GroupBy, statusFilter []string) (TimeTrackingReport, error) {
	tasks, err := s.fetchTasks(spaceName)
	if err != nil {
		return TimeTrackingReport{}, err
	}
	return BuildTimeTracking(tasks, groupBy, statusFilter), nil
}

// Period builds a date-bounded report from raw time entries. Above
// autoAsyncThreshold tasks the work runs as a background job regardless of
// the requested mode, and the returned handle carries the job id.
func (s *Service) Period(spaceName string, startMS, endMS int64, mode jobs.Mode) (any, *jobs.Handle, error) {
	fn := func() (any, error) {
		tasks, err := s.fetchTasks(spaceName)
		if err != nil {
			return nil, err
		}
		entries, res := s.cu.FetchTimeEntries(taskIDs(tasks), startMS, endMS, s.fetcher("time entries"))
		return BuildPeriod(tasks, entries, startMS, endMS, res.Errors), nil
	}

	if mode == jobs.ModeBlocking {
		// Check the task count first so oversized requests get forced to
		// async instead of timing out on the caller.
		tasks, err := s.fetchTasks(spaceName)
		if err != nil {
			return nil, nil, err
		}
		if len(tasks) > autoAsyncThreshold {
			log.Printf("period report: %d tasks exceeds sync threshold, switching to async", len(tasks))
			run := func() (any, error) {
				ent, res := s.cu.FetchTimeEntries(taskIDs(tasks), startMS, endMS, s.fetcher("time entries"))
				return BuildPeriod(tasks, ent, startMS, endMS, res.Errors), nil
			}
			result, handle, err := s.dispatcher.Run(run, jobs.ModeAsync)
			if handle != nil {
				handle.Message = fmt.Sprintf("large report (%d tasks) started in background", len(tasks))
			}
			return result, handle, err
		}
		entries, res := s.cu.FetchTimeEntries(taskIDs(tasks), startMS, endMS, s.fetcher("time entries"))
		rep := BuildPeriod(tasks, entries, startMS, endMS, res.Errors)
		return s.dispatcher.Run(func() (any, error) { return rep, nil }, jobs.ModeBlocking)
	}

	return s.dispatcher.Run(fn, jobs.ModeAsync)
}

// Breakdown builds the per-subtree time breakdown rooted at rootID, or the
// whole forest when rootID is empty.
func (s *Service) Breakdown(spaceName, rootID string) ([]BreakdownRow, error) {
	tasks, err := s.fetchTasks(spaceName)
	if err != nil {
		return nil, err
	}
	return BuildBreakdown(tasks, rootID), nil
}

// Accuracy builds the estimation accuracy report.
func (s *Service) Accuracy(spaceName string) (EstimationAccuracy, error) {
	tasks, err := s.fetchTasks(spaceName)
	if err != nil {
		return EstimationAccuracy{}, err
	}
	return BuildEstimationAccuracy(tasks), nil
}

// Statuses builds the status summary.
func (s *Service) Statuses(spaceName string) (StatusSummary, error) {
	tasks, err := s.fetchTasks(spaceName)
	if err != nil {
		return StatusSummary{}, err
	}
	return BuildStatusSummary(tasks), nil
}

// Untracked lists tasks without any direct tracked time.
func (s *Service) Untracked(spaceName, statusFilter string) ([]FlaggedTask, error) {
	tasks, err := s.fetchTasks(spaceName)
	if err != nil {
		return nil, err
	}
	return BuildUntracked(tasks, statusFilter), nil
}

// ProgressSince reports tasks completed or changed since the cutoff. The
// fetch itself is filtered server-side to tasks updated after sinceMS.
func (s *Service) ProgressSince(spaceName string, sinceMS int64, includeChanges bool) (Progress, error) {
	tasks, err := s.queryTasks(spaceName, clickup.TaskQuery{UpdatedAfterMS: sinceMS})
	if err != nil {
		return Progress{}, err
	}
	return BuildProgress(tasks, sinceMS, includeChanges), nil
}

// Health bundles the staleness, risk, and inactivity checks into one report.
type Health struct {
	Stale    []FlaggedTask      `json:"stale_tasks"`
	AtRisk   []FlaggedTask      `json:"at_risk_tasks"`
	Inactive []InactiveAssignee `json:"inactive_assignees"`
}

// ProjectHealth runs the staleness/risk/inactivity checks over one fetch.
func (s *Service) ProjectHealth(spaceName string, staleDays, riskDays, inactiveDays int) (Health, error) {
	tasks, err := s.fetchTasks(spaceName)
	if err != nil {
		return Health{}, err
	}
	now := s.now()
	return Health{
		Stale:    BuildStale(tasks, staleDays, now),
		AtRisk:   BuildAtRisk(tasks, riskDays, now),
		Inactive: BuildInactiveAssignees(tasks, inactiveDays, now),
	}, nil
}

// JobStatus polls a background report job.
func (s *Service) JobStatus(jobID string) (jobs.StatusResponse, error) {
	return s.dispatcher.Status(jobID)
}

// JobResult fetches a finished job's report without counting as a poll.
func (s *Service) JobResult(jobID string) (any, string, error) {
	return s.dispatcher.Result(jobID)
}

func taskIDs(tasks []clickup.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
