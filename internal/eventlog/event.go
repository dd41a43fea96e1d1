// Package eventlog reads and writes recorded input sessions.
//
// A log is a 16-byte header followed by fixed 24-byte records, all packed
// little-endian:
//
//	header: magic u32 | version u32 | start_time u64
//	record: type u32 | t_us u64 | a i32 | b i32 | c i32
package eventlog

import "fmt"

const (
	// Magic identifies a log file ("RMAC" read as a little-endian u32).
	Magic uint32 = 0x524D4143
	// Version is the only format version this package reads or writes.
	Version uint32 = 1

	HeaderSize = 16
	RecordSize = 24
)

// EventType tags a record.
type EventType uint32

const (
	MouseMoveRel EventType = 0
	MouseWheel   EventType = 1
	KeyDown      EventType = 2
	KeyUp        EventType = 3
	MouseButton  EventType = 4
	MousePosAbs  EventType = 5
)

func (t EventType) String() string {
	switch t {
	case MouseMoveRel:
		return "MouseMoveRel"
	case MouseWheel:
		return "MouseWheel"
	case KeyDown:
		return "KeyDown"
	case KeyUp:
		return "KeyUp"
	case MouseButton:
		return "MouseButton"
	case MousePosAbs:
		return "MousePosAbs"
	default:
		return fmt.Sprintf("EventType(%d)", uint32(t))
	}
}

// Known reports whether the type is one playback understands.
func (t EventType) Known() bool {
	return t <= MousePosAbs
}

// Header is the fixed file prefix. StartTime is Unix microseconds at
// recording start and is informational only.
type Header struct {
	Magic     uint32
	Version   uint32
	StartTime uint64
}

// NewHeader returns a header for the current format version.
func NewHeader(startTime uint64) Header {
	return Header{Magic: Magic, Version: Version, StartTime: startTime}
}

// Event is one record. TUs is microseconds since recording start.
//
// Payload by type:
//
//	MouseMoveRel  A=dx B=dy
//	MouseWheel    A=delta
//	KeyDown/Up    A=virtual key
//	MouseButton   A=button (1 left, 2 right, 3 middle, 4 x1, 5 x2) B=1 down, 0 up
//	MousePosAbs   A=x B=y in screen coordinates
type Event struct {
	Type EventType
	TUs  uint64
	A    int32
	B    int32
	C    int32
}

func Move(tus uint64, dx, dy int32) Event {
	return Event{Type: MouseMoveRel, TUs: tus, A: dx, B: dy}
}

func Wheel(tus uint64, delta int32) Event {
	return Event{Type: MouseWheel, TUs: tus, A: delta}
}

func Key(tus uint64, vk int32, down bool) Event {
	if down {
		return Event{Type: KeyDown, TUs: tus, A: vk}
	}
	return Event{Type: KeyUp, TUs: tus, A: vk}
}

func Button(tus uint64, button int32, down bool) Event {
	e := Event{Type: MouseButton, TUs: tus, A: button}
	if down {
		e.B = 1
	}
	return e
}

func Position(tus uint64, x, y int32) Event {
	return Event{Type: MousePosAbs, TUs: tus, A: x, B: y}
}
