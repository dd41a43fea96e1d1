package database

import (
	"database/sql"
	"fmt"
	"sync"

	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/logging"
)

// Journal persists bus events into the session tables. Events carrying no
// session id are attributed to the most recently started session.
type Journal struct {
	db     *DB
	bus    events.EventBus
	logger *logging.Logger

	mu      sync.Mutex
	current string
	subs    []events.SubscriptionID
}

var journaled = []events.EventType{
	events.EventTypeSessionStarted,
	events.EventTypeSessionStopped,
	events.EventTypeHuntTargetFound,
	events.EventTypeHuntAttacked,
	events.EventTypeHuntBattleDetected,
	events.EventTypeQuestWalkArrived,
	events.EventTypeQuestWalkOvershoot,
	events.EventTypeError,
}

// NewJournal subscribes to bus. Close unsubscribes.
func NewJournal(db *DB, bus events.EventBus, logger *logging.Logger) *Journal {
	if logger == nil {
		logger = logging.Discard()
	}
	j := &Journal{db: db, bus: bus, logger: logger}
	for _, typ := range journaled {
		j.subs = append(j.subs, bus.Subscribe(typ, j.handle))
	}
	return j
}

// Close stops journaling.
func (j *Journal) Close() {
	j.mu.Lock()
	subs := j.subs
	j.subs = nil
	j.mu.Unlock()
	for _, id := range subs {
		j.bus.Unsubscribe(id)
	}
}

// CurrentSession is the id of the last session.started seen.
func (j *Journal) CurrentSession() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current
}

func (j *Journal) handle(e events.Event) {
	if err := j.record(e); err != nil {
		j.logger.ErrorWithContext("Journal write failed", err, logging.Fields{"event_type": string(e.Type)})
	}
}

func (j *Journal) record(e events.Event) error {
	if e.Type == events.EventTypeSessionStarted {
		if e.SessionID == "" {
			return fmt.Errorf("session.started without a session id")
		}
		j.mu.Lock()
		j.current = e.SessionID
		j.mu.Unlock()
		return j.db.StartSession(e.SessionID, str(e.Data["mode"]), str(e.Data["log_path"]), e.Timestamp)
	}

	sid := e.SessionID
	if sid == "" {
		sid = j.CurrentSession()
	}

	switch e.Type {
	case events.EventTypeSessionStopped:
		status := str(e.Data["status"])
		if status == "" {
			status = SessionCompleted
		}
		return j.db.EndSession(sid, status, num(e.Data["events"]), str(e.Data["error"]), e.Timestamp)

	case events.EventTypeError:
		_, err := j.db.LogError(sid, e.Source, str(e.Data["error"]), e.Timestamp)
		return err
	}

	if sid == "" {
		// Detections outside a session have nothing to hang off.
		return nil
	}

	d := &Detection{SessionID: sid, OccurredAt: e.Timestamp}
	switch e.Type {
	case events.EventTypeHuntTargetFound:
		d.Kind = KindTarget
	case events.EventTypeHuntAttacked:
		d.Kind = KindAttack
	case events.EventTypeHuntBattleDetected:
		d.Kind = KindBattle
	case events.EventTypeQuestWalkArrived:
		d.Kind = KindArrived
		d.Distance = sql.NullInt64{Int64: int64(num(e.Data["distance"])), Valid: true}
	case events.EventTypeQuestWalkOvershoot:
		d.Kind = KindOvershoot
		d.Distance = sql.NullInt64{Int64: int64(num(e.Data["to"])), Valid: true}
	default:
		return nil
	}
	d.Template = str(e.Data["template"])
	d.X = num(e.Data["x"])
	d.Y = num(e.Data["y"])
	d.Score = float(e.Data["score"])

	_, err := j.db.RecordDetection(d)
	return err
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func num(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func float(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
