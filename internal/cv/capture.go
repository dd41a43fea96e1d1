package cv

import (
	"image"
)

// Frame is a captured image together with where its pixel (0,0) sits on
// the screen. Pixel coordinates inside Image follow Image.Bounds().
type Frame struct {
	Image  *image.RGBA
	Origin image.Point
}

// ToScreen converts a point in frame pixel coordinates to screen coordinates.
func (f *Frame) ToScreen(p image.Point) image.Point {
	return p.Sub(f.Image.Bounds().Min).Add(f.Origin)
}

// ToFrame converts a screen point to frame pixel coordinates.
func (f *Frame) ToFrame(p image.Point) image.Point {
	return p.Sub(f.Origin).Add(f.Image.Bounds().Min)
}

// ScreenRect converts a screen rectangle to frame pixel coordinates.
func (f *Frame) ScreenRect(r image.Rectangle) image.Rectangle {
	return image.Rectangle{Min: f.ToFrame(r.Min), Max: f.ToFrame(r.Max)}
}

// Center returns the center of the frame in frame pixel coordinates.
func (f *Frame) Center() image.Point {
	b := f.Image.Bounds()
	return image.Pt((b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2)
}

// Capturer interface for different capture methods
type Capturer interface {
	// CaptureFrame grabs the whole capture area.
	CaptureFrame() (*Frame, error)
	// CaptureRegion grabs a screen rectangle; used for small probes such
	// as the area around the pointer.
	CaptureRegion(r image.Rectangle) (*Frame, error)
}

// ImageCapturer serves a fixed image. It backs offline matching (the
// match command) and tests.
type ImageCapturer struct {
	Frame *Frame
}

// NewImageCapturer serves img placed at origin.
func NewImageCapturer(img *image.RGBA, origin image.Point) *ImageCapturer {
	return &ImageCapturer{Frame: &Frame{Image: img, Origin: origin}}
}

func (c *ImageCapturer) CaptureFrame() (*Frame, error) {
	return c.Frame, nil
}

func (c *ImageCapturer) CaptureRegion(r image.Rectangle) (*Frame, error) {
	local := c.Frame.ScreenRect(r).Intersect(c.Frame.Image.Bounds())
	if local.Empty() {
		return nil, ErrOutsideFrame
	}
	return &Frame{Image: CropRegion(c.Frame.Image, local), Origin: c.Frame.ToScreen(local.Min)}, nil
}
