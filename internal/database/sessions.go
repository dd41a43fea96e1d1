package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// StartSession inserts a running session row.
func (db *DB) StartSession(id, mode, logPath string, startedAt time.Time) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, mode, log_path, started_at, status)
			VALUES (?, ?, ?, ?, ?)
		`, id, mode, nullString(logPath), startedAt, SessionRunning)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

// EndSession closes a session with its final status. An empty errMsg leaves
// error_message NULL.
func (db *DB) EndSession(id, status string, eventCount int, errMsg string, endedAt time.Time) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE sessions
			SET ended_at = ?, status = ?, event_count = ?, error_message = ?
			WHERE id = ?
		`, endedAt, status, eventCount, nullString(errMsg), id)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil
	})
}

// GetSession returns one session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.conn.QueryRow(`
		SELECT id, mode, log_path, started_at, ended_at, status, event_count, error_message
		FROM sessions WHERE id = ?
	`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// RecentSessions returns up to limit sessions, newest first.
func (db *DB) RecentSessions(limit int) ([]*Session, error) {
	rows, err := db.conn.Query(`
		SELECT id, mode, log_path, started_at, ended_at, status, event_count, error_message
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	err := row.Scan(
		&s.ID, &s.Mode, &s.LogPath, &s.StartedAt, &s.EndedAt,
		&s.Status, &s.EventCount, &s.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
