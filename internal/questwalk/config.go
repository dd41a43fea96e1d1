// Package questwalk walks the character towards an on-screen quest marker.
package questwalk

import (
	"errors"
	"image"
	"time"

	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
)

// Keys are the virtual keys the walker presses.
type Keys struct {
	Forward int
	Sprint  int
	Left    int
	Right   int
	Back    int
	// Stop ends the walk when held; 0 disables.
	Stop int
}

func DefaultKeys() Keys {
	return Keys{
		Forward: 'W',
		Sprint:  device.VKShift,
		Left:    'A',
		Right:   'D',
		Back:    'S',
		Stop:    device.VKEscape,
	}
}

// MinTick keeps the loop from hammering the frame grabber.
const MinTick = 20 * time.Millisecond

// Config is the walker's configuration. The distance constants are in
// the units the marker label shows.
type Config struct {
	Marker          cv.Template
	MarkerThreshold float64
	// Deadzone is the horizontal offset in pixels tolerated before steering.
	Deadzone int
	Tick     time.Duration
	// Exclusion hides a UI element that looks like the marker. Screen
	// coordinates; nil disables.
	Exclusion *image.Rectangle

	ArriveDistance int
	ResumeDistance int
	OvershootDelta int
	BackPulse      time.Duration

	// DistanceBox locates the distance label relative to the bottom
	// center of the marker.
	DistanceBox image.Rectangle

	Keys Keys
}

func DefaultConfig() Config {
	return Config{
		MarkerThreshold: 0.8,
		Deadzone:        40,
		Tick:            100 * time.Millisecond,
		ArriveDistance:  3,
		ResumeDistance:  5,
		OvershootDelta:  2,
		BackPulse:       250 * time.Millisecond,
		DistanceBox:     image.Rect(-40, 2, 40, 26),
		Keys:            DefaultKeys(),
	}
}

// Clamp applies floors and ranges.
func (c *Config) Clamp() {
	if c.Tick < MinTick {
		c.Tick = MinTick
	}
	if c.Deadzone < 0 {
		c.Deadzone = 0
	}
	if c.MarkerThreshold < 0 {
		c.MarkerThreshold = 0
	}
	if c.MarkerThreshold > 1 {
		c.MarkerThreshold = 1
	}
	if c.ResumeDistance < c.ArriveDistance {
		c.ResumeDistance = c.ArriveDistance
	}
	if c.OvershootDelta < 0 {
		c.OvershootDelta = 0
	}
	if c.BackPulse < 0 {
		c.BackPulse = 0
	}
}

func (c Config) Validate() error {
	if !c.Marker.Loaded() {
		return errors.New("questwalk: marker template has no image")
	}
	if c.Keys.Forward == 0 {
		return errors.New("questwalk: no forward key")
	}
	return nil
}
