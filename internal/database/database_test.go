package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T, name string) *DeletionDB {
	t.Helper()
	db, err := NewDeletionDB(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func startRun(t *testing.T, db *DeletionDB, id string, started time.Time) *RunRecord {
	t.Helper()
	run := &RunRecord{
		ID:           id,
		StartedAt:    started,
		Mode:         "auto",
		State:        "DELETING",
		BaseDir:      "/srv/docs",
		ManifestPath: "/srv/docs/file_categorization.json",
		Planned:      3,
	}
	if err := db.StartRun(context.Background(), run); err != nil {
		t.Fatalf("StartRun(%s) failed: %v", id, err)
	}
	return run
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	db, err := NewDeletionDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	}()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := openTestDB(t, "wal.db")

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

// TestSchemaCreation verifies all tables and indexes are created
func TestSchemaCreation(t *testing.T) {
	db := openTestDB(t, "schema.db")

	for _, table := range []string{"runs", "deletions", "schema_version"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}

	var version int
	if err := db.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		t.Errorf("Failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}

	expectedIndexes := []string{
		"idx_runs_started_at",
		"idx_deletions_run_id",
		"idx_deletions_timestamp",
		"idx_deletions_action",
		"idx_deletions_category",
	}
	for _, indexName := range expectedIndexes {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", indexName).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", indexName, err)
		}
	}
}

// TestRunLifecycle verifies a run row is created, filled and finished
func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t, "lifecycle.db")
	ctx := context.Background()

	run := startRun(t, db, "run-1", time.Now())

	attempts := []DeletionRecord{
		{RunID: run.ID, Action: ActionDelete, Category: "deploy", FileName: "a.md", Path: "/srv/docs/a.md"},
		{RunID: run.ID, Action: ActionMissing, Category: "deploy", FileName: "b.md", Path: "/srv/docs/b.md"},
		{RunID: run.ID, Action: ActionError, Category: "fixes", FileName: "c.md", Path: "/srv/docs/c.md", ErrorMessage: "permission denied"},
	}
	for _, a := range attempts {
		if err := db.RecordDeletion(ctx, a); err != nil {
			t.Fatalf("RecordDeletion(%s) failed: %v", a.FileName, err)
		}
	}

	finished := time.Now()
	run.FinishedAt = &finished
	run.State = "DONE"
	run.Deleted, run.Missing, run.Failed = 1, 1, 1
	if err := db.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := db.GetRecentRuns(5)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.State != "DONE" || got.Deleted != 1 || got.Failed != 1 || got.Missing != 1 || got.Planned != 3 {
		t.Errorf("Unexpected run row: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("Expected finished_at to be set")
	}

	records, err := db.GetDeletionsForRun(run.ID)
	if err != nil {
		t.Fatalf("GetDeletionsForRun failed: %v", err)
	}
	if len(records) != len(attempts) {
		t.Fatalf("Expected %d records, got %d", len(attempts), len(records))
	}
	for i, r := range records {
		if r.FileName != attempts[i].FileName || r.Action != attempts[i].Action {
			t.Errorf("Record %d = %s/%s, expected %s/%s", i, r.FileName, r.Action, attempts[i].FileName, attempts[i].Action)
		}
	}
	if records[2].ErrorMessage != "permission denied" {
		t.Errorf("Expected error message to round-trip, got %q", records[2].ErrorMessage)
	}
	if records[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to default to now")
	}
}

// TestUnfinishedRun verifies a run that never finished keeps a NULL finished_at
func TestUnfinishedRun(t *testing.T) {
	db := openTestDB(t, "unfinished.db")
	startRun(t, db, "run-crashed", time.Now())

	runs, err := db.GetRecentRuns(1)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].FinishedAt != nil {
		t.Errorf("Expected one unfinished run, got %+v", runs)
	}
}

// TestFinishUnknownRun verifies finishing a run that was never started fails
func TestFinishUnknownRun(t *testing.T) {
	db := openTestDB(t, "unknown.db")

	now := time.Now()
	err := db.FinishRun(context.Background(), &RunRecord{ID: "nope", FinishedAt: &now, State: "DONE"})
	if err == nil {
		t.Error("Expected error finishing unknown run")
	}
}

// TestQueryMethods verifies all query functions work correctly
func TestQueryMethods(t *testing.T) {
	db := openTestDB(t, "queries.db")
	ctx := context.Background()
	now := time.Now()

	startRun(t, db, "run-a", now.Add(-time.Hour))
	startRun(t, db, "run-b", now)

	testData := []struct {
		run      string
		action   string
		category string
		name     string
		ts       time.Time
	}{
		{"run-a", ActionDelete, "deploy", "a.md", now.Add(-time.Hour)},
		{"run-a", ActionDelete, "deploy", "b.md", now.Add(-time.Hour)},
		{"run-a", ActionDelete, "fixes", "c.md", now.Add(-time.Hour)},
		{"run-a", ActionBlocked, "fixes", "../x.md", now.Add(-time.Hour)},
		{"run-b", ActionMissing, "deploy", "a.md", now},
		{"run-b", ActionDelete, "", "categorize_files.py", now},
	}
	for _, td := range testData {
		err := db.RecordDeletion(ctx, DeletionRecord{
			RunID: td.run, Timestamp: td.ts, Action: td.action, Category: td.category, FileName: td.name,
		})
		if err != nil {
			t.Fatalf("Failed to insert test data: %v", err)
		}
	}

	t.Run("GetRecentDeletions", func(t *testing.T) {
		records, err := db.GetRecentDeletions(2)
		if err != nil {
			t.Fatalf("GetRecentDeletions failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].RunID != "run-b" {
			t.Errorf("Expected newest record first, got run %s", records[0].RunID)
		}
	})

	t.Run("GetDeletionsByAction", func(t *testing.T) {
		records, err := db.GetDeletionsByAction(ActionDelete)
		if err != nil {
			t.Fatalf("GetDeletionsByAction failed: %v", err)
		}
		if len(records) != 4 {
			t.Errorf("Expected 4 DELETE records, got %d", len(records))
		}
	})

	t.Run("GetDeletionsByCategory", func(t *testing.T) {
		records, err := db.GetDeletionsByCategory("deploy")
		if err != nil {
			t.Fatalf("GetDeletionsByCategory failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 deploy records, got %d", len(records))
		}
	})

	t.Run("GetRecentRuns", func(t *testing.T) {
		runs, err := db.GetRecentRuns(10)
		if err != nil {
			t.Fatalf("GetRecentRuns failed: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "run-b" {
			t.Errorf("Expected run-b first of 2 runs, got %+v", runs)
		}
	})

	t.Run("GetDeletionCountByCategory", func(t *testing.T) {
		counts, err := db.GetDeletionCountByCategory(time.Time{})
		if err != nil {
			t.Fatalf("GetDeletionCountByCategory failed: %v", err)
		}
		if counts["deploy"] != 2 || counts["fixes"] != 1 || counts[""] != 1 {
			t.Errorf("Unexpected category counts: %v", counts)
		}
	})

	t.Run("GetDeletionStats", func(t *testing.T) {
		stats, err := db.GetDeletionStats(7)
		if err != nil {
			t.Fatalf("GetDeletionStats failed: %v", err)
		}
		if stats.TotalRuns != 2 {
			t.Errorf("Expected 2 runs, got %d", stats.TotalRuns)
		}
		if stats.TotalDeleted != 4 || stats.TotalMissing != 1 || stats.TotalFailed != 1 {
			t.Errorf("Unexpected totals: deleted=%d missing=%d failed=%d",
				stats.TotalDeleted, stats.TotalMissing, stats.TotalFailed)
		}
		if stats.ByAction[ActionBlocked] != 1 {
			t.Errorf("Expected 1 BLOCKED action, got %d", stats.ByAction[ActionBlocked])
		}
	})
}

// TestDeletionStatsWindow verifies the breakdowns cover the same days as the totals
func TestDeletionStatsWindow(t *testing.T) {
	db := openTestDB(t, "window.db")
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -30)
	startRun(t, db, "old", old)
	startRun(t, db, "new", time.Now())

	records := []DeletionRecord{
		{RunID: "old", Timestamp: old, Action: ActionDelete, Category: "archive", FileName: "x.md"},
		{RunID: "old", Timestamp: old, Action: ActionError, Category: "archive", FileName: "y.md"},
		{RunID: "new", Action: ActionDelete, Category: "deploy", FileName: "a.md"},
	}
	for _, r := range records {
		if err := db.RecordDeletion(ctx, r); err != nil {
			t.Fatalf("Failed to insert test data: %v", err)
		}
	}

	stats, err := db.GetDeletionStats(7)
	if err != nil {
		t.Fatalf("GetDeletionStats failed: %v", err)
	}
	if stats.TotalRuns != 1 || stats.TotalDeleted != 1 || stats.TotalFailed != 0 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if _, ok := stats.ByCategory["archive"]; ok {
		t.Errorf("ByCategory includes records outside the window: %v", stats.ByCategory)
	}
	if stats.ByCategory["deploy"] != 1 {
		t.Errorf("Expected 1 deploy deletion, got %v", stats.ByCategory)
	}
	if stats.ByAction[ActionDelete] != 1 || stats.ByAction[ActionError] != 0 {
		t.Errorf("ByAction includes records outside the window: %v", stats.ByAction)
	}

	all, err := db.GetDeletionCountByAction(time.Time{})
	if err != nil {
		t.Fatalf("GetDeletionCountByAction failed: %v", err)
	}
	if all[ActionDelete] != 2 || all[ActionError] != 1 {
		t.Errorf("Unexpected all-time action counts: %v", all)
	}
}

// TestDeleteOldRecords verifies retention removes old runs with their attempts
func TestDeleteOldRecords(t *testing.T) {
	db := openTestDB(t, "retention.db")
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -90)
	startRun(t, db, "old", old)
	startRun(t, db, "new", time.Now())

	for i := 0; i < 5; i++ {
		run, ts := "old", old
		if i%2 == 0 {
			run, ts = "new", time.Now()
		}
		err := db.RecordDeletion(ctx, DeletionRecord{
			RunID: run, Timestamp: ts, Action: ActionDelete, FileName: fmt.Sprintf("f%d.md", i),
		})
		if err != nil {
			t.Fatalf("Failed to insert test data: %v", err)
		}
	}

	deleted, err := db.DeleteOldRecords(60)
	if err != nil {
		t.Fatalf("DeleteOldRecords failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deletion rows removed, got %d", deleted)
	}

	if err := db.Vacuum(); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}

	runs, err := db.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Errorf("Expected only the new run to remain, got %+v", runs)
	}
}

// TestDatabaseErrorHandling verifies error conditions are handled properly
func TestDatabaseErrorHandling(t *testing.T) {
	_, err := NewDeletionDB("/dev/null/invalid/path/db.sqlite")
	if err == nil {
		t.Error("Expected error for invalid database path")
	}
}
