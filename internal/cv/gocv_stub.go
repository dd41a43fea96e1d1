//go:build !gocv

package cv

import "image"

// OpenCV is only functional in builds tagged gocv; otherwise it falls back
// to GrayNCC so a settings file selecting it still runs.
type OpenCV struct{}

// Available reports whether the OpenCV correlator was compiled in.
func (OpenCV) Available() bool { return false }

func (OpenCV) Correlate(frame, template *image.RGBA) *ScoreMap {
	return (&GrayNCC{}).Correlate(frame, template)
}
