package session

import (
	"sync/atomic"
	"time"
)

// Detection summarizes the latest vision result of one unit.
type Detection struct {
	Unit     string    `json:"unit"`
	Template string    `json:"template,omitempty"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Score    float64   `json:"score"`
	Distance int       `json:"distance,omitempty"`
	State    string    `json:"state,omitempty"`
	At       time.Time `json:"at"`
}

// Status is the display-side view of a run. Writers publish whole values,
// readers never see a half-updated detection.
type Status struct {
	events      atomic.Int64
	injectFails atomic.Int64
	pointerMode atomic.Value // string
	lastEvent   atomic.Value // string
	hunt        atomic.Pointer[Detection]
	questWalk   atomic.Pointer[Detection]
}

// RecordEvent counts a logged or replayed event and remembers its description.
func (s *Status) RecordEvent(desc string) {
	s.events.Add(1)
	s.lastEvent.Store(desc)
}

// InjectFailed counts a device command that could not be delivered.
func (s *Status) InjectFailed() { s.injectFails.Add(1) }

func (s *Status) SetPointerMode(mode string) { s.pointerMode.Store(mode) }

func (s *Status) SetHunt(d Detection)      { s.hunt.Store(&d) }
func (s *Status) SetQuestWalk(d Detection) { s.questWalk.Store(&d) }

// View is a copy of Status for JSON encoding.
type View struct {
	Flags       Snapshot   `json:"flags"`
	Events      int64      `json:"events"`
	InjectFails int64      `json:"inject_failures"`
	PointerMode string     `json:"pointer_mode,omitempty"`
	LastEvent   string     `json:"last_event,omitempty"`
	Hunt        *Detection `json:"hunt,omitempty"`
	QuestWalk   *Detection `json:"quest_walk,omitempty"`
}

// View copies the current status together with the flags.
func (s *Status) View(f *Flags) View {
	v := View{
		Events:      s.events.Load(),
		InjectFails: s.injectFails.Load(),
		Hunt:        s.hunt.Load(),
		QuestWalk:   s.questWalk.Load(),
	}
	if f != nil {
		v.Flags = f.Snapshot()
	}
	if m, ok := s.pointerMode.Load().(string); ok {
		v.PointerMode = m
	}
	if e, ok := s.lastEvent.Load().(string); ok {
		v.LastEvent = e
	}
	return v
}
