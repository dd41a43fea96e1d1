// Package screen grabs frames from a physical display.
package screen

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"jordanella.com/rmac/internal/cv"
)

// Leftmost selects the display with the smallest left edge.
const Leftmost = -1

// ErrNoDisplay is returned when no active display matches.
var ErrNoDisplay = errors.New("no active display")

// Displays lists the bounds of every active display in desktop coordinates.
func Displays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	out := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, screenshot.GetDisplayBounds(i))
	}
	return out
}

// Select picks display index from displays, or the leftmost one for
// Leftmost.
func Select(index int, displays []image.Rectangle) (image.Rectangle, error) {
	if len(displays) == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	if index == Leftmost {
		best := 0
		for i := 1; i < len(displays); i++ {
			if displays[i].Min.X < displays[best].Min.X {
				best = i
			}
		}
		return displays[best], nil
	}
	if index < 0 || index >= len(displays) {
		return image.Rectangle{}, fmt.Errorf("display %d of %d: %w", index, len(displays), ErrNoDisplay)
	}
	return displays[index], nil
}

// Capturer grabs one display. It satisfies cv.Capturer and device.Screen.
type Capturer struct {
	bounds image.Rectangle
	grab   func(image.Rectangle) (*image.RGBA, error)
}

// New captures the display chosen by Select.
func New(index int) (*Capturer, error) {
	b, err := Select(index, Displays())
	if err != nil {
		return nil, err
	}
	return &Capturer{bounds: b, grab: screenshot.CaptureRect}, nil
}

// Bounds is the captured display in desktop coordinates.
func (c *Capturer) Bounds() (image.Rectangle, error) {
	return c.bounds, nil
}

func (c *Capturer) CaptureFrame() (*cv.Frame, error) {
	return c.capture(c.bounds)
}

// CaptureRegion grabs the part of r that lies on this display.
func (c *Capturer) CaptureRegion(r image.Rectangle) (*cv.Frame, error) {
	clip := r.Intersect(c.bounds)
	if clip.Empty() {
		return nil, cv.ErrOutsideFrame
	}
	return c.capture(clip)
}

func (c *Capturer) capture(r image.Rectangle) (*cv.Frame, error) {
	img, err := c.grab(r)
	if err != nil {
		return nil, fmt.Errorf("screen capture %v: %w", r, err)
	}
	return &cv.Frame{Image: img, Origin: r.Min}, nil
}
