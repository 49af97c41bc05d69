// Package syncer refreshes the local sqlite mirror from the ClickUp API,
// either on demand or on a cron schedule. Full syncs rewrite the whole
// mirror and flag vanished tasks as deleted; incremental syncs fetch only
// tasks updated since the stored watermark.
package syncer

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tracksync/internal/batch"
	"tracksync/internal/clickup"
	"tracksync/internal/report"
	"tracksync/internal/storage/sqlite"
)

// SyncResult tracks separate counters for each outcome of a sync run.
type SyncResult struct {
	Mode        string
	Spaces      int
	Lists       int
	Fetched     int
	Upserted    int
	Deleted     int
	FetchErrors int
	Elapsed     time.Duration
}

// Syncer coordinates mirror refreshes. At most one sync runs at a time;
// overlapping triggers are skipped, not queued.
type Syncer struct {
	cu         *clickup.Client
	db         *sql.DB
	maxWorkers int
	running    atomic.Bool
	now        func() time.Time
}

func New(cu *clickup.Client, db *sql.DB, maxWorkers int) *Syncer {
	if maxWorkers <= 0 {
		maxWorkers = batch.DefaultMaxWorkers
	}
	return &Syncer{cu: cu, db: db, maxWorkers: maxWorkers, now: time.Now}
}

// ErrSyncInProgress is returned when a sync is triggered while another runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// FullSync fetches every task in every space, rewrites the mirror, and flags
// tasks the API no longer returns as deleted.
func (s *Syncer) FullSync() (SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Store(false)
	return s.run(clickup.TaskQuery{IncludeArchived: true}, true)
}

// IncrementalSync fetches only tasks updated after the stored watermark and
// upserts them. Deleted detection is skipped: an incremental pass cannot
// tell "unchanged" from "gone".
func (s *Syncer) IncrementalSync() (SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.running.Store(false)

	highWater, err := sqlite.GetSyncHighWater(s.db)
	if err != nil {
		return SyncResult{}, fmt.Errorf("loading sync watermark: %w", err)
	}
	if highWater == 0 {
		log.Printf("incremental sync: no watermark yet, running full sync")
		return s.run(clickup.TaskQuery{IncludeArchived: true}, true)
	}
	return s.run(clickup.TaskQuery{UpdatedAfterMS: highWater}, false)
}

func (s *Syncer) run(q clickup.TaskQuery, full bool) (SyncResult, error) {
	start := s.now()
	result := SyncResult{Mode: "incremental"}
	if full {
		result.Mode = "full"
	}

	spaces, err := s.cu.Spaces()
	if err != nil {
		return result, fmt.Errorf("discovering spaces: %w", err)
	}
	result.Spaces = len(spaces)

	var all []clickup.Task
	spaceNames := make(map[string]string) // list id -> space name
	seen := make(map[string]bool)
	for _, space := range spaces {
		listIDs, _, err := s.cu.SpaceLists(space.ID)
		if err != nil {
			log.Printf("sync space=%s list discovery error: %v", space.Name, err)
			result.FetchErrors++
			continue
		}
		result.Lists += len(listIDs)
		for _, id := range listIDs {
			spaceNames[id] = space.Name
		}

		fetcher := batch.New(s.maxWorkers, "sync tasks")
		tasks, res := s.cu.FetchAllTasks(listIDs, q, fetcher)
		result.FetchErrors += res.Errors
		for _, t := range tasks {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			all = append(all, t)
		}
	}
	result.Fetched = len(all)

	rows := make([]sqlite.TaskRow, 0, len(all))
	var maxUpdated int64
	for _, t := range all {
		if int64(t.DateUpdated) > maxUpdated {
			maxUpdated = int64(t.DateUpdated)
		}
		rows = append(rows, taskRow(t, spaceNames[t.List.ID]))
	}

	upserted, err := sqlite.UpsertTasks(s.db, rows)
	result.Upserted = upserted
	if err != nil {
		return result, fmt.Errorf("upserting tasks: %w", err)
	}

	if full {
		keep := make([]string, 0, len(all))
		for _, t := range all {
			keep = append(keep, t.ID)
		}
		deleted, err := sqlite.MarkDeletedExcept(s.db, keep)
		if err != nil {
			return result, fmt.Errorf("flagging deleted tasks: %w", err)
		}
		result.Deleted = deleted
	}

	if maxUpdated > 0 {
		if err := sqlite.SetSyncHighWater(s.db, maxUpdated); err != nil {
			return result, fmt.Errorf("storing sync watermark: %w", err)
		}
	}

	result.Elapsed = s.now().Sub(start)
	log.Printf("sync done mode=%s spaces=%d lists=%d fetched=%d upserted=%d deleted=%d errors=%d elapsed=%s",
		result.Mode, result.Spaces, result.Lists, result.Fetched,
		result.Upserted, result.Deleted, result.FetchErrors, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// SyncEmployees mirrors the workspace member roster into the employees
// table. Independent of task syncs and cheap (one API call), so it does not
// take the in-progress guard. Returns the number of members written.
func (s *Syncer) SyncEmployees() (int, error) {
	members, err := s.cu.Members()
	if err != nil {
		return 0, fmt.Errorf("fetching members: %w", err)
	}
	rows := make([]sqlite.EmployeeRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, sqlite.EmployeeRow{
			UserID: m.UserID,
			Name:   m.Username,
			Email:  m.Email,
			Role:   m.Role,
		})
	}
	synced, err := sqlite.UpsertEmployees(s.db, rows)
	if err != nil {
		return synced, fmt.Errorf("upserting employees: %w", err)
	}
	log.Printf("employee sync done members=%d", synced)
	return synced, nil
}

func taskRow(t clickup.Task, spaceName string) sqlite.TaskRow {
	names := make([]string, 0, len(t.Assignees))
	for _, u := range t.Assignees {
		names = append(names, u.Username)
	}
	return sqlite.TaskRow{
		TaskID:         t.ID,
		Name:           t.Name,
		Status:         t.Status.Name(),
		StatusCategory: report.StatusCategory(t.Status),
		ParentID:       t.Parent,
		ListName:       t.List.Name,
		SpaceName:      spaceName,
		Assignees:      strings.Join(names, ","),
		TimeSpentMS:    int64(t.TimeSpent),
		TimeEstimateMS: int64(t.TimeEstimate),
		DateCreatedMS:  int64(t.DateCreated),
		DateUpdatedMS:  int64(t.DateUpdated),
		DateClosedMS:   int64(t.DateClosed),
		DueDateMS:      int64(t.DueDate),
		Archived:       t.Archived,
	}
}

// FormatSummary returns a human-readable one-liner for a SyncResult.
func FormatSummary(r SyncResult) string {
	parts := []string{fmt.Sprintf("%d fetched", r.Fetched), fmt.Sprintf("%d upserted", r.Upserted)}
	if r.Deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", r.Deleted))
	}
	if r.FetchErrors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", r.FetchErrors))
	}
	return fmt.Sprintf("%s sync across %d spaces (%d lists): %s in %s",
		r.Mode, r.Spaces, r.Lists, strings.Join(parts, ", "),
		r.Elapsed.Round(time.Millisecond))
}

// StartScheduler runs incremental syncs on a 5-field cron expression
// (minute hour day-of-month month day-of-week). Empty schedule disables it.
// Examples: "*/30 * * * *" (every 30 min), "0 6 * * 1-5" (weekdays 6am).
func (s *Syncer) StartScheduler(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("scheduled sync disabled (sync_schedule not set)")
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid sync_schedule %q: %w", schedule, err)
	}
	log.Printf("scheduled sync enabled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			log.Printf("next scheduled sync at %s (in %s)",
				next.Format("Mon Jan 2 15:04"), next.Sub(now).Round(time.Minute))
			time.Sleep(next.Sub(now))

			result, err := s.IncrementalSync()
			if err == ErrSyncInProgress {
				log.Printf("scheduled sync skipped: %v", err)
				continue
			}
			if err != nil {
				log.Printf("scheduled sync error: %v", err)
				continue
			}
			log.Printf("scheduled sync complete: %s", FormatSummary(result))
		}
	}()
	return nil
}
