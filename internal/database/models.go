package database

import (
	"database/sql"
	"time"
)

// Session status values
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionStopped   = "stopped"
	SessionFailed    = "failed"
)

// Detection kinds
const (
	KindTarget    = "target"
	KindAttack    = "attack"
	KindBattle    = "battle"
	KindArrived   = "arrived"
	KindOvershoot = "overshoot"
)

// Session is one run of a command
type Session struct {
	ID           string         `db:"id"`
	Mode         string         `db:"mode"`
	LogPath      sql.NullString `db:"log_path"`
	StartedAt    time.Time      `db:"started_at"`
	EndedAt      sql.NullTime   `db:"ended_at"`
	Status       string         `db:"status"`
	EventCount   int            `db:"event_count"`
	ErrorMessage sql.NullString `db:"error_message"`
}

// Duration is the wall time of a finished session, or zero while running.
func (s *Session) Duration() time.Duration {
	if !s.EndedAt.Valid {
		return 0
	}
	return s.EndedAt.Time.Sub(s.StartedAt)
}

// Detection is a journaled vision or quest-walk observation
type Detection struct {
	ID         int64         `db:"id"`
	SessionID  string        `db:"session_id"`
	Kind       string        `db:"kind"`
	Template   string        `db:"template"`
	X          int           `db:"x"`
	Y          int           `db:"y"`
	Score      float64       `db:"score"`
	Distance   sql.NullInt64 `db:"distance"`
	OccurredAt time.Time     `db:"occurred_at"`
}

// ErrorLog is an error reported on the bus
type ErrorLog struct {
	ID           int64          `db:"id"`
	SessionID    sql.NullString `db:"session_id"`
	Source       string         `db:"source"`
	ErrorMessage string         `db:"error_message"`
	OccurredAt   time.Time      `db:"occurred_at"`
}
