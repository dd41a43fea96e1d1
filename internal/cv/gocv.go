//go:build gocv

package cv

import (
	"image"

	"gocv.io/x/gocv"
)

// OpenCV scores with TM_CCOEFF_NORMED, the same measure as GrayNCC but
// computed by OpenCV on all three channels.
type OpenCV struct{}

// Available reports whether the OpenCV correlator was compiled in.
func (OpenCV) Available() bool { return true }

func (OpenCV) Correlate(frame, template *image.RGBA) *ScoreMap {
	fb, tb := frame.Bounds(), template.Bounds()
	out := NewScoreMap(fb, tb.Dx(), tb.Dy())
	if out == nil {
		return nil
	}

	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil
	}
	defer src.Close()
	tmpl, err := gocv.ImageToMatRGB(template)
	if err != nil {
		return nil
	}
	defer tmpl.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tmpl, &result, gocv.TmCcoeffNormed, mask)
	if result.Rows() != out.H || result.Cols() != out.W {
		return nil
	}

	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			out.Scores[y*out.W+x] = result.GetFloatAt(y, x)
		}
	}
	return out
}
