package status

import (
	"time"

	"jordanella.com/rmac/internal/database"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/session"
)

// message is one websocket frame: a snapshot on connect, then events.
type message struct {
	Type   string        `json:"type"`
	Status *session.View `json:"status,omitempty"`
	Event  *events.Event `json:"event,omitempty"`
}

type sessionView struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	LogPath    string     `json:"log_path,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
	EventCount int        `json:"event_count"`
	Error      string     `json:"error,omitempty"`
}

func viewOf(s *database.Session) sessionView {
	v := sessionView{
		ID:         s.ID,
		Mode:       s.Mode,
		LogPath:    s.LogPath.String,
		StartedAt:  s.StartedAt,
		Status:     s.Status,
		EventCount: s.EventCount,
		Error:      s.ErrorMessage.String,
	}
	if s.EndedAt.Valid {
		t := s.EndedAt.Time
		v.EndedAt = &t
	}
	return v
}
