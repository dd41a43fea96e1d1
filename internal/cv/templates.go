package cv

import "image"

// Template is a named pattern to search for. Image is nil until loaded.
type Template struct {
	Name      string
	Path      string
	Threshold float64
	Region    *Region // search area in screen coordinates, nil for the whole frame
	Scale     float64 // applied once at load time, 0 or 1 for none
	Image     *image.RGBA
}

// Builder methods

// InRegion sets the search region for the template
func (t Template) InRegion(x1, y1, x2, y2 int) Template {
	region := NewRegion(x1, y1, x2, y2)
	t.Region = &region
	return t
}

// WithThreshold sets the matching threshold
func (t Template) WithThreshold(threshold float64) Template {
	t.Threshold = threshold
	return t
}

// WithScale sets the scale factor
func (t Template) WithScale(scale float64) Template {
	t.Scale = scale
	return t
}

// WithImage attaches decoded pixels
func (t Template) WithImage(img *image.RGBA) Template {
	t.Image = img
	return t
}

// Loaded reports whether the template has pixels to match with
func (t Template) Loaded() bool {
	return t.Image != nil && !t.Image.Bounds().Empty()
}

// Size returns the template dimensions
func (t Template) Size() image.Point {
	if t.Image == nil {
		return image.Point{}
	}
	return t.Image.Bounds().Size()
}
