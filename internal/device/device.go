// Package device abstracts the machine's input devices: injecting synthetic
// input, querying key state and the pointer, and reading screen bounds.
package device

import (
	"errors"
	"image"
)

// AbsoluteRange is the upper bound of normalized absolute coordinates.
const AbsoluteRange = 65535

// Mouse buttons as stored in the event log.
const (
	ButtonLeft   = 1
	ButtonRight  = 2
	ButtonMiddle = 3
	ButtonX1     = 4
	ButtonX2     = 5
)

// ErrUnavailable is returned when a backend was not compiled in or cannot
// reach its device.
var ErrUnavailable = errors.New("device backend unavailable")

// Injector delivers synthetic input. MoveAbsolute takes coordinates
// normalized to 0..AbsoluteRange over the primary screen.
type Injector interface {
	MoveRelative(dx, dy int) error
	MoveAbsolute(nx, ny int) error
	Wheel(delta int) error
	Key(vk int, down bool) error
	Button(button int, down bool) error
}

// KeyState answers whether a virtual key is currently held.
type KeyState interface {
	IsKeyDown(vk int) bool
}

// Pointer reports the cursor position in screen coordinates.
type Pointer interface {
	CursorPos() (image.Point, error)
}

// Screen reports the bounds absolute coordinates are normalized against.
type Screen interface {
	Bounds() (image.Rectangle, error)
}

// Device is everything a backend provides.
type Device interface {
	Injector
	KeyState
	Pointer
	Screen
}

// Normalize maps a screen point into 0..AbsoluteRange on both axes.
// Points outside bounds are clamped to the edge.
func Normalize(p image.Point, bounds image.Rectangle) (nx, ny int) {
	return normalizeAxis(p.X, bounds.Min.X, bounds.Dx()), normalizeAxis(p.Y, bounds.Min.Y, bounds.Dy())
}

func normalizeAxis(v, min, size int) int {
	if size <= 1 {
		return 0
	}
	v -= min
	if v < 0 {
		v = 0
	}
	if v > size-1 {
		v = size - 1
	}
	return (v*AbsoluteRange + (size-1)/2) / (size - 1)
}

// Denormalize is the inverse of Normalize.
func Denormalize(nx, ny int, bounds image.Rectangle) image.Point {
	return image.Point{
		X: bounds.Min.X + denormalizeAxis(nx, bounds.Dx()),
		Y: bounds.Min.Y + denormalizeAxis(ny, bounds.Dy()),
	}
}

func denormalizeAxis(n, size int) int {
	if size <= 1 {
		return 0
	}
	if n < 0 {
		n = 0
	}
	if n > AbsoluteRange {
		n = AbsoluteRange
	}
	return (n*(size-1) + AbsoluteRange/2) / AbsoluteRange
}
