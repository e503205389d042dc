package database

import "database/sql"

// InsertRunReport records the outcome of a stage run.
func (db *DB) InsertRunReport(stage string, processed, flagged, errors int) error {
	_, err := db.conn.Exec(
		"INSERT INTO run_reports (stage, processed, flagged, errors) VALUES (?, ?, ?, ?)",
		stage, processed, flagged, errors,
	)
	return err
}

// LastRunReport returns the most recent report for a stage, or nil.
func (db *DB) LastRunReport(stage string) (*RunReport, error) {
	row := db.conn.QueryRow(
		`SELECT id, stage, ran_at, processed, flagged, errors
		FROM run_reports WHERE stage = ? ORDER BY id DESC LIMIT 1`, stage,
	)
	var r RunReport
	if err := row.Scan(&r.ID, &r.Stage, &r.RanAt, &r.Processed, &r.Flagged, &r.Errors); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}
