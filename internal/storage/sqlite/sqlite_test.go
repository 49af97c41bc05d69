package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(id, name, assignees string, spent int64) TaskRow {
	return TaskRow{
		TaskID:         id,
		Name:           name,
		Status:         "IN PROGRESS",
		StatusCategory: "active",
		Assignees:      assignees,
		TimeSpentMS:    spent,
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := openTestDB(t)

	n, err := UpsertTasks(db, []TaskRow{row("t1", "First", "alice", 1000)})
	if err != nil {
		t.Fatalf("UpsertTasks: %v", err)
	}
	if n != 1 {
		t.Fatalf("written = %d, want 1", n)
	}

	got, err := GetTaskByID(db, "t1")
	if err != nil {
		t.Fatalf("GetTaskByID: %v", err)
	}
	if got.Name != "First" || got.TimeSpentMS != 1000 {
		t.Errorf("got %+v", got)
	}
	if got.SyncedAt.IsZero() {
		t.Error("synced_at not set")
	}

	// Upsert again with new values: replace, not duplicate.
	if _, err := UpsertTasks(db, []TaskRow{row("t1", "Renamed", "alice", 2000)}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = GetTaskByID(db, "t1")
	if err != nil {
		t.Fatalf("GetTaskByID after upsert: %v", err)
	}
	if got.Name != "Renamed" || got.TimeSpentMS != 2000 {
		t.Errorf("after upsert: %+v", got)
	}
	live, _, err := CountTasks(db)
	if err != nil {
		t.Fatalf("CountTasks: %v", err)
	}
	if live != 1 {
		t.Errorf("live = %d, want 1", live)
	}
}

func TestGetTaskByIDMissing(t *testing.T) {
	db := openTestDB(t)
	if _, err := GetTaskByID(db, "nope"); err != sql.ErrNoRows {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestGetTasksByAssignee(t *testing.T) {
	db := openTestDB(t)
	_, err := UpsertTasks(db, []TaskRow{
		row("t1", "Solo", "alice", 0),
		row("t2", "Shared", "alice,bob", 0),
		row("t3", "Other", "bob", 0),
		row("t4", "Prefix trap", "alicia", 0),
	})
	if err != nil {
		t.Fatalf("UpsertTasks: %v", err)
	}

	got, err := GetTasksByAssignee(db, "alice")
	if err != nil {
		t.Fatalf("GetTasksByAssignee: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2: %+v", len(got), got)
	}
	for _, r := range got {
		if r.TaskID == "t4" {
			t.Error("CSV match leaked a prefix-named assignee")
		}
	}
}

func TestGetTasksWithTime(t *testing.T) {
	db := openTestDB(t)
	_, err := UpsertTasks(db, []TaskRow{
		row("t1", "Tracked", "alice", 5000),
		row("t2", "Untracked", "bob", 0),
		row("t3", "More tracked", "bob", 9000),
	})
	if err != nil {
		t.Fatalf("UpsertTasks: %v", err)
	}

	got, err := GetTasksWithTime(db)
	if err != nil {
		t.Fatalf("GetTasksWithTime: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].TaskID != "t3" {
		t.Errorf("expected most-tracked first, got %s", got[0].TaskID)
	}
}

func TestGetRecentTasks(t *testing.T) {
	db := openTestDB(t)
	a := row("t1", "Old", "", 0)
	a.DateUpdatedMS = 100
	b := row("t2", "New", "", 0)
	b.DateUpdatedMS = 200
	if _, err := UpsertTasks(db, []TaskRow{a, b}); err != nil {
		t.Fatalf("UpsertTasks: %v", err)
	}

	got, err := GetRecentTasks(db, 1)
	if err != nil {
		t.Fatalf("GetRecentTasks: %v", err)
	}
	if len(got) != 1 || got[0].TaskID != "t2" {
		t.Fatalf("got %+v, want just t2", got)
	}
}

func TestMarkDeletedExcept(t *testing.T) {
	db := openTestDB(t)
	_, err := UpsertTasks(db, []TaskRow{
		row("t1", "Keep", "", 0),
		row("t2", "Gone", "", 0),
		row("t3", "Also gone", "", 0),
	})
	if err != nil {
		t.Fatalf("UpsertTasks: %v", err)
	}

	n, err := MarkDeletedExcept(db, []string{"t1"})
	if err != nil {
		t.Fatalf("MarkDeletedExcept: %v", err)
	}
	if n != 2 {
		t.Fatalf("flagged = %d, want 2", n)
	}
	live, deleted, err := CountTasks(db)
	if err != nil {
		t.Fatalf("CountTasks: %v", err)
	}
	if live != 1 || deleted != 2 {
		t.Errorf("live=%d deleted=%d, want 1/2", live, deleted)
	}

	// Re-upserting a deleted task resurrects it.
	if _, err := UpsertTasks(db, []TaskRow{row("t2", "Back", "", 0)}); err != nil {
		t.Fatalf("resurrect upsert: %v", err)
	}
	got, err := GetTaskByID(db, "t2")
	if err != nil {
		t.Fatalf("GetTaskByID: %v", err)
	}
	if got.Deleted {
		t.Error("upserted task still flagged deleted")
	}
}

func TestSyncHighWater(t *testing.T) {
	db := openTestDB(t)

	ms, err := GetSyncHighWater(db)
	if err != nil {
		t.Fatalf("GetSyncHighWater: %v", err)
	}
	if ms != 0 {
		t.Fatalf("initial watermark = %d, want 0", ms)
	}

	if err := SetSyncHighWater(db, 1234567890); err != nil {
		t.Fatalf("SetSyncHighWater: %v", err)
	}
	if err := SetSyncHighWater(db, 9876543210); err != nil {
		t.Fatalf("second SetSyncHighWater: %v", err)
	}
	ms, err = GetSyncHighWater(db)
	if err != nil {
		t.Fatalf("GetSyncHighWater: %v", err)
	}
	if ms != 9876543210 {
		t.Errorf("watermark = %d, want 9876543210", ms)
	}
}

func TestUpsertAndGetEmployees(t *testing.T) {
	db := openTestDB(t)

	n, err := UpsertEmployees(db, []EmployeeRow{
		{UserID: "2", Name: "bob", Email: "bob@example.com", Role: "member"},
		{UserID: "1", Name: "alice", Email: "alice@example.com", Role: "admin"},
	})
	if err != nil {
		t.Fatalf("UpsertEmployees: %v", err)
	}
	if n != 2 {
		t.Fatalf("upserted %d, want 2", n)
	}

	rows, err := GetEmployees(db)
	if err != nil {
		t.Fatalf("GetEmployees: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d employees, want 2", len(rows))
	}
	if rows[0].Name != "alice" || rows[1].Name != "bob" {
		t.Fatalf("not sorted by name: %q, %q", rows[0].Name, rows[1].Name)
	}
	if rows[0].Role != "admin" || rows[0].Email != "alice@example.com" {
		t.Fatalf("unexpected alice row: %+v", rows[0])
	}

	// Same user id replaces the row instead of duplicating it.
	if _, err := UpsertEmployees(db, []EmployeeRow{{UserID: "1", Name: "alice", Role: "owner"}}); err != nil {
		t.Fatalf("second UpsertEmployees: %v", err)
	}
	rows, err = GetEmployees(db)
	if err != nil {
		t.Fatalf("GetEmployees: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("after replace got %d employees, want 2", len(rows))
	}
	if rows[0].Role != "owner" {
		t.Errorf("role = %q, want owner", rows[0].Role)
	}
}
