// Package sqlite is the local relational mirror of synced tasks. It exists so
// ad-hoc queries (by assignee, with tracked time, recently updated) do not
// cost API calls; the syncer refreshes it on a schedule.
package sqlite

import (
	"database/sql"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		task_id          TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		status           TEXT DEFAULT '',
		status_category  TEXT DEFAULT '',
		parent_id        TEXT DEFAULT '',
		list_name        TEXT DEFAULT '',
		space_name       TEXT DEFAULT '',
		assignees        TEXT DEFAULT '',
		time_spent_ms    INTEGER DEFAULT 0,
		time_estimate_ms INTEGER DEFAULT 0,
		date_created_ms  INTEGER DEFAULT 0,
		date_updated_ms  INTEGER DEFAULT 0,
		date_closed_ms   INTEGER DEFAULT 0,
		due_date_ms      INTEGER DEFAULT 0,
		archived         INTEGER DEFAULT 0,
		deleted          INTEGER DEFAULT 0,
		synced_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_updated ON tasks(date_updated_ms);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status_category);

	CREATE TABLE IF NOT EXISTS employees (
		user_id   TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		email     TEXT DEFAULT '',
		role      TEXT DEFAULT '',
		synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

// TaskRow is one mirrored task. Assignees is a comma-separated username list;
// time values are raw API milliseconds (rollups are recomputed at report
// time, not stored).
type TaskRow struct {
	TaskID         string    `json:"task_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	StatusCategory string    `json:"status_category"`
	ParentID       string    `json:"parent_id,omitempty"`
	ListName       string    `json:"list_name"`
	SpaceName      string    `json:"space_name"`
	Assignees      string    `json:"assignees"`
	TimeSpentMS    int64     `json:"time_spent_ms"`
	TimeEstimateMS int64     `json:"time_estimate_ms"`
	DateCreatedMS  int64     `json:"date_created_ms"`
	DateUpdatedMS  int64     `json:"date_updated_ms"`
	DateClosedMS   int64     `json:"date_closed_ms,omitempty"`
	DueDateMS      int64     `json:"due_date_ms,omitempty"`
	Archived       bool      `json:"archived"`
	Deleted        bool      `json:"deleted"`
	SyncedAt       time.Time `json:"synced_at"`
}

const taskCols = `task_id, name, status, status_category, parent_id, list_name, space_name,
	assignees, time_spent_ms, time_estimate_ms, date_created_ms, date_updated_ms,
	date_closed_ms, due_date_ms, archived, deleted, synced_at`

func scanTask(s interface{ Scan(...any) error }) (TaskRow, error) {
	var r TaskRow
	err := s.Scan(
		&r.TaskID, &r.Name, &r.Status, &r.StatusCategory, &r.ParentID,
		&r.ListName, &r.SpaceName, &r.Assignees, &r.TimeSpentMS, &r.TimeEstimateMS,
		&r.DateCreatedMS, &r.DateUpdatedMS, &r.DateClosedMS, &r.DueDateMS,
		&r.Archived, &r.Deleted, &r.SyncedAt,
	)
	return r, err
}

// UpsertTasks writes rows in one transaction, inserting or replacing by task
// id. Every touched row gets deleted=0 and a fresh synced_at.
func UpsertTasks(db *sql.DB, rows []TaskRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO tasks (task_id, name, status, status_category, parent_id, list_name, space_name,
		   assignees, time_spent_ms, time_estimate_ms, date_created_ms, date_updated_ms,
		   date_closed_ms, due_date_ms, archived, deleted, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
		 ON CONFLICT(task_id) DO UPDATE SET
		   name = excluded.name, status = excluded.status,
		   status_category = excluded.status_category, parent_id = excluded.parent_id,
		   list_name = excluded.list_name, space_name = excluded.space_name,
		   assignees = excluded.assignees, time_spent_ms = excluded.time_spent_ms,
		   time_estimate_ms = excluded.time_estimate_ms,
		   date_created_ms = excluded.date_created_ms,
		   date_updated_ms = excluded.date_updated_ms,
		   date_closed_ms = excluded.date_closed_ms, due_date_ms = excluded.due_date_ms,
		   archived = excluded.archived, deleted = 0, synced_at = CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, r := range rows {
		_, err := stmt.Exec(
			r.TaskID, r.Name, r.Status, r.StatusCategory, r.ParentID,
			r.ListName, r.SpaceName, r.Assignees, r.TimeSpentMS, r.TimeEstimateMS,
			r.DateCreatedMS, r.DateUpdatedMS, r.DateClosedMS, r.DueDateMS, r.Archived,
		)
		if err != nil {
			return written, err
		}
		written++
	}
	return written, tx.Commit()
}

// MarkDeletedExcept flags every task not in keep as deleted. Used after a
// full sync: anything the API no longer returns is gone upstream. Returns
// the number of newly flagged rows.
func MarkDeletedExcept(db *sql.DB, keep []string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TEMP TABLE keep_ids (task_id TEXT PRIMARY KEY)`); err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO keep_ids (task_id) VALUES (?)`)
	if err != nil {
		return 0, err
	}
	for _, id := range keep {
		if _, err := stmt.Exec(id); err != nil {
			stmt.Close()
			return 0, err
		}
	}
	stmt.Close()

	res, err := tx.Exec(
		`UPDATE tasks SET deleted = 1
		 WHERE deleted = 0 AND task_id NOT IN (SELECT task_id FROM keep_ids)`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := tx.Exec(`DROP TABLE keep_ids`); err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}

func GetTaskByID(db *sql.DB, taskID string) (TaskRow, error) {
	return scanTask(db.QueryRow(
		`SELECT `+taskCols+` FROM tasks WHERE task_id = ?`, taskID))
}

func queryTasks(db *sql.DB, where string, args ...any) ([]TaskRow, error) {
	rows, err := db.Query(`SELECT `+taskCols+` FROM tasks `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		r, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetTasksByAssignee matches the username against the stored CSV list.
func GetTasksByAssignee(db *sql.DB, username string) ([]TaskRow, error) {
	return queryTasks(db,
		`WHERE deleted = 0 AND (',' || assignees || ',') LIKE ?
		 ORDER BY date_updated_ms DESC, task_id`,
		"%,"+username+",%")
}

// GetTasksWithTime returns live tasks that have any tracked time.
func GetTasksWithTime(db *sql.DB) ([]TaskRow, error) {
	return queryTasks(db,
		`WHERE deleted = 0 AND time_spent_ms > 0
		 ORDER BY time_spent_ms DESC, task_id`)
}

// GetRecentTasks returns live tasks updated most recently, newest first.
func GetRecentTasks(db *sql.DB, limit int) ([]TaskRow, error) {
	if limit <= 0 {
		limit = 50
	}
	return queryTasks(db,
		`WHERE deleted = 0 ORDER BY date_updated_ms DESC, task_id LIMIT ?`, limit)
}

// CountTasks returns (live, deleted) row counts.
func CountTasks(db *sql.DB) (int, int, error) {
	var live, deleted int
	err := db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN deleted = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN deleted = 1 THEN 1 ELSE 0 END), 0)
		 FROM tasks`).Scan(&live, &deleted)
	return live, deleted, err
}

// EmployeeRow is one mirrored workspace member, synced independently of
// tasks.
type EmployeeRow struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Role     string    `json:"role,omitempty"`
	SyncedAt time.Time `json:"synced_at"`
}

// UpsertEmployees writes the member roster in one transaction, inserting or
// replacing by user id.
func UpsertEmployees(db *sql.DB, rows []EmployeeRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO employees (user_id, name, email, role, synced_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, role = excluded.role,
		   synced_at = CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, r := range rows {
		if _, err := stmt.Exec(r.UserID, r.Name, r.Email, r.Role); err != nil {
			return written, err
		}
		written++
	}
	return written, tx.Commit()
}

// GetEmployees returns the full mirrored roster, sorted by name.
func GetEmployees(db *sql.DB) ([]EmployeeRow, error) {
	rows, err := db.Query(
		`SELECT user_id, name, email, role, synced_at FROM employees ORDER BY name, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeRow
	for rows.Next() {
		var r EmployeeRow
		if err := rows.Scan(&r.UserID, &r.Name, &r.Email, &r.Role, &r.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSyncHighWater returns the stored incremental-sync watermark in epoch ms,
// zero when no sync has recorded one yet.
func GetSyncHighWater(db *sql.DB) (int64, error) {
	var val string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = 'high_water_ms'`).Scan(&val)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, nil
	}
	return ms, nil
}

// SetSyncHighWater stores the incremental-sync watermark.
func SetSyncHighWater(db *sql.DB, ms int64) error {
	_, err := db.Exec(
		`INSERT INTO sync_state (key, value) VALUES ('high_water_ms', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.FormatInt(ms, 10))
	return err
}
