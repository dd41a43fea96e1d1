package database

import (
	"database/sql"
	"fmt"
)

// RecordDetection appends a detection and returns its row id.
func (db *DB) RecordDetection(d *Detection) (int64, error) {
	var id int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO detections (session_id, kind, template, x, y, score, distance, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, d.SessionID, d.Kind, d.Template, d.X, d.Y, d.Score, d.Distance, d.OccurredAt)
		if err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// DetectionsForSession lists a session's detections in insertion order.
func (db *DB) DetectionsForSession(sessionID string) ([]*Detection, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, kind, COALESCE(template, ''), COALESCE(x, 0), COALESCE(y, 0),
			COALESCE(score, 0), distance, occurred_at
		FROM detections
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		d := &Detection{}
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Kind, &d.Template, &d.X, &d.Y,
			&d.Score, &d.Distance, &d.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDetections returns per-kind counts for a session.
func (db *DB) CountDetections(sessionID string) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT kind, COUNT(*) FROM detections WHERE session_id = ? GROUP BY kind
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
