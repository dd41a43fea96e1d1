// Package capture turns live input notifications into event log records.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a raw input notification.
type Kind int

const (
	Motion Kind = iota
	WheelTurn
	KeyPress
	ButtonPress
)

func (k Kind) String() string {
	switch k {
	case Motion:
		return "motion"
	case WheelTurn:
		return "wheel"
	case KeyPress:
		return "key"
	case ButtonPress:
		return "button"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Notification is one raw input report from the device layer.
type Notification struct {
	Kind   Kind
	DX, DY int  // Motion
	Delta  int  // WheelTurn, 120 per detent
	VK     int  // KeyPress
	Button int  // ButtonPress, 1..5
	Down   bool // KeyPress, ButtonPress
}

func KeyNote(vk int, down bool) Notification {
	return Notification{Kind: KeyPress, VK: vk, Down: down}
}

func MotionNote(dx, dy int) Notification {
	return Notification{Kind: Motion, DX: dx, DY: dy}
}

func WheelNote(delta int) Notification {
	return Notification{Kind: WheelTurn, Delta: delta}
}

func ButtonNote(button int, down bool) Notification {
	return Notification{Kind: ButtonPress, Button: button, Down: down}
}

// Source delivers notifications to emit until ctx ends, the device stream
// closes, or emit returns an error, which Stream then returns.
type Source interface {
	Stream(ctx context.Context, emit func(Notification) error) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, emit func(Notification) error) error

func (f SourceFunc) Stream(ctx context.Context, emit func(Notification) error) error {
	return f(ctx, emit)
}

// ErrStopKey ends a capture when the stop key is pressed.
var ErrStopKey = errors.New("stop key pressed")

// ErrSourceClosed is returned to subscribers when the hub's source ends.
var ErrSourceClosed = errors.New("input source closed")

// Clock is the time source for event timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the monotonic wall clock.
var SystemClock Clock = systemClock{}
