package database

import (
	"database/sql"
	"time"
)

const deletionColumns = `id, run_id, timestamp, action, category, file_name, path, error_message`

// GetRecentDeletions returns the N most recent deletion attempts
func (d *DeletionDB) GetRecentDeletions(limit int) ([]DeletionRecord, error) {
	query := `
	SELECT ` + deletionColumns + `
	FROM deletions
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryDeletions(query, limit)
}

// GetDeletionsByAction returns deletion attempts filtered by action type
func (d *DeletionDB) GetDeletionsByAction(action string) ([]DeletionRecord, error) {
	query := `
	SELECT ` + deletionColumns + `
	FROM deletions
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryDeletions(query, action)
}

// GetDeletionsByCategory returns deletion attempts for one manifest category
func (d *DeletionDB) GetDeletionsByCategory(category string) ([]DeletionRecord, error) {
	query := `
	SELECT ` + deletionColumns + `
	FROM deletions
	WHERE category = ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryDeletions(query, category)
}

// GetDeletionsForRun returns the attempts of a single run in execution order
func (d *DeletionDB) GetDeletionsForRun(runID string) ([]DeletionRecord, error) {
	query := `
	SELECT ` + deletionColumns + `
	FROM deletions
	WHERE run_id = ?
	ORDER BY id ASC
	`

	return d.queryDeletions(query, runID)
}

// GetRecentRuns returns the N most recently started runs
func (d *DeletionDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := d.db.Query(`
	SELECT id, started_at, finished_at, mode, state, base_dir, manifest_path,
	       planned, deleted, failed, missing
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &finished, &r.Mode, &r.State, &r.BaseDir, &r.ManifestPath,
			&r.Planned, &r.Deleted, &r.Failed, &r.Missing,
		); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetDeletionCountByAction returns count of attempts since the given time grouped by action
func (d *DeletionDB) GetDeletionCountByAction(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT action, COUNT(*)
	FROM deletions
	WHERE timestamp >= ?
	GROUP BY action
	`, since)
}

// GetDeletionCountByCategory returns count of successful deletions since the
// given time grouped by category. Helpers are counted under "".
func (d *DeletionDB) GetDeletionCountByCategory(since time.Time) (map[string]int, error) {
	return d.countBy(`
	SELECT COALESCE(category, ''), COUNT(*)
	FROM deletions
	WHERE action = 'DELETE' AND timestamp >= ?
	GROUP BY category
	`, since)
}

func (d *DeletionDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// DeletionStats holds aggregated statistics
type DeletionStats struct {
	TotalRuns    int
	TotalDeleted int
	TotalMissing int
	TotalFailed  int
	ByCategory   map[string]int
	ByAction     map[string]int
	StartDate    time.Time
	EndDate      time.Time
}

// GetDeletionStats returns statistics for the last N days
func (d *DeletionDB) GetDeletionStats(days int) (*DeletionStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &DeletionStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'MISSING' THEN 1 END),
			COUNT(CASE WHEN action IN ('ERROR', 'BLOCKED') THEN 1 END)
		FROM deletions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeleted, &stats.TotalMissing, &stats.TotalFailed)
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE started_at >= ?`, since).Scan(&stats.TotalRuns)
	if err != nil {
		return nil, err
	}

	stats.ByCategory, err = d.GetDeletionCountByCategory(since)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetDeletionCountByAction(since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes runs and their deletions older than the given days
func (d *DeletionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		DELETE FROM deletions WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryDeletions is a helper function to execute queries and scan results
func (d *DeletionDB) queryDeletions(query string, args ...interface{}) ([]DeletionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		var category, path, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &category,
			&r.FileName, &path, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.Category = category.String
		r.Path = path.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
