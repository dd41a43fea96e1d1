package cv

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Region is an inclusive-exclusive screen rectangle as written in settings
// files: X1,Y1 top-left, X2,Y2 bottom-right.
type Region struct {
	X1, Y1, X2, Y2 int
}

// NewRegion creates a new region
func NewRegion(x1, y1, x2, y2 int) Region {
	return Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// ParseRegion reads "x1,y1,x2,y2". Corners may be given in any order.
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: expected x1,y1,x2,y2", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	return Region{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}, nil
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X1, r.Y1, r.X2, r.Y2)
}

// Width returns the width of the region
func (r Region) Width() int {
	return r.X2 - r.X1
}

// Height returns the height of the region
func (r Region) Height() int {
	return r.Y2 - r.Y1
}

// Empty reports whether the region has no area
func (r Region) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// ToImageRectangle converts Region to *image.Rectangle for use with CV operations
func (r Region) ToImageRectangle() *image.Rectangle {
	return &image.Rectangle{
		Min: image.Point{X: r.X1, Y: r.Y1},
		Max: image.Point{X: r.X2, Y: r.Y2},
	}
}

// StrictlyContains reports whether p lies inside the region and not on its edge.
func StrictlyContains(r image.Rectangle, p image.Point) bool {
	return p.X > r.Min.X && p.X < r.Max.X && p.Y > r.Min.Y && p.Y < r.Max.Y
}
