package events

import "time"

// EventType represents different types of events in the system
type EventType string

const (
	// Session lifecycle
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionStopped EventType = "session.stopped"

	// Capture and playback
	EventTypeCaptureModeChanged EventType = "capture.mode_changed"
	EventTypePlaybackCompleted  EventType = "playback.completed"

	// Hunt
	EventTypeHuntTargetFound    EventType = "hunt.target_found"
	EventTypeHuntAttacked       EventType = "hunt.attacked"
	EventTypeHuntBattleDetected EventType = "hunt.battle_detected"
	EventTypeHuntRestarted      EventType = "hunt.restarted"

	// Quest-walk
	EventTypeQuestWalkStateChanged EventType = "questwalk.state_changed"
	EventTypeQuestWalkArrived      EventType = "questwalk.arrived"
	EventTypeQuestWalkOvershoot    EventType = "questwalk.overshoot"

	// Error events
	EventTypeError EventType = "error"
)

// AllEventTypes lists every type a wildcard subscriber receives.
var AllEventTypes = []EventType{
	EventTypeSessionStarted,
	EventTypeSessionStopped,
	EventTypeCaptureModeChanged,
	EventTypePlaybackCompleted,
	EventTypeHuntTargetFound,
	EventTypeHuntAttacked,
	EventTypeHuntBattleDetected,
	EventTypeHuntRestarted,
	EventTypeQuestWalkStateChanged,
	EventTypeQuestWalkArrived,
	EventTypeQuestWalkOvershoot,
	EventTypeError,
}

// Event represents a system event with metadata
type Event struct {
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"` // component that emitted it, e.g. "hunt"
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// SubscribeAll registers one handler for every event type
	SubscribeAll(handler EventHandler) []SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish queues an event, blocking while the queue is full
	Publish(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// Publisher is the narrow side of the bus handed to controllers.
type Publisher interface {
	Publish(event Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// New builds an event stamped with the current time.
func New(eventType EventType, source string, data map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source string, err error) Event {
	return New(EventTypeError, source, map[string]interface{}{
		"error": err.Error(),
	})
}
