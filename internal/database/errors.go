package database

import (
	"database/sql"
	"fmt"
	"time"
)

// LogError creates a new error log entry
func (db *DB) LogError(sessionID, source, message string, occurredAt time.Time) (int64, error) {
	var errorID int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO error_log (session_id, source, error_message, occurred_at)
			VALUES (?, ?, ?, ?)
		`, nullString(sessionID), source, message, occurredAt)
		if err != nil {
			return fmt.Errorf("failed to insert error log: %w", err)
		}

		errorID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	return errorID, nil
}

// GetRecentErrors returns the most recent errors
func (db *DB) GetRecentErrors(limit int) ([]*ErrorLog, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, source, error_message, occurred_at
		FROM error_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var errs []*ErrorLog
	for rows.Next() {
		e := &ErrorLog{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Source, &e.ErrorMessage, &e.OccurredAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// DeleteOldErrors removes error log entries older than the given time
func (db *DB) DeleteOldErrors(olderThan time.Time) (int64, error) {
	var affected int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM error_log WHERE occurred_at < ?`, olderThan)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}
