package cv

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"
	"sync"
)

// MatchMethod defines template matching algorithm
type MatchMethod int

const (
	// MatchMethodGrayNCC - zero-mean normalized cross-correlation on luminance,
	// scores in -1..1 like OpenCV's TM_CCOEFF_NORMED (default)
	MatchMethodGrayNCC MatchMethod = iota
	// MatchMethodSAD - Sum of Absolute Differences (fastest)
	MatchMethodSAD
	// MatchMethodSSD - Sum of Squared Differences (balanced)
	MatchMethodSSD
	// MatchMethodNCC - per-channel normalized cross-correlation mapped to 0..1
	MatchMethodNCC
)

func (m MatchMethod) String() string {
	switch m {
	case MatchMethodSAD:
		return "sad"
	case MatchMethodSSD:
		return "ssd"
	case MatchMethodNCC:
		return "ncc"
	default:
		return "gray"
	}
}

// ParseMatchMethod reads a settings value.
func ParseMatchMethod(s string) (MatchMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gray", "gray-ncc", "grayncc", "ccoeff":
		return MatchMethodGrayNCC, nil
	case "sad":
		return MatchMethodSAD, nil
	case "ssd":
		return MatchMethodSSD, nil
	case "ncc":
		return MatchMethodNCC, nil
	}
	return MatchMethodGrayNCC, fmt.Errorf("unknown match method %q", s)
}

// Error types
var (
	ErrTemplateTooLarge = errors.New("template larger than search image")
	ErrInvalidImage     = errors.New("invalid image provided")
	ErrOutsideFrame     = errors.New("region outside captured frame")
)

// ScoreMap holds one similarity score per template placement. Scores[y*W+x]
// is the score with the template's top-left at Origin+(x,y) in frame pixels.
type ScoreMap struct {
	Origin image.Point
	W, H   int
	Scores []float32
}

// NewScoreMap allocates a map for placing a tw x th template over bounds.
// It returns nil when the template does not fit.
func NewScoreMap(bounds image.Rectangle, tw, th int) *ScoreMap {
	w := bounds.Dx() - tw + 1
	h := bounds.Dy() - th + 1
	if tw <= 0 || th <= 0 || w <= 0 || h <= 0 {
		return nil
	}
	return &ScoreMap{Origin: bounds.Min, W: w, H: h, Scores: make([]float32, w*h)}
}

// At returns the score at map coordinates.
func (m *ScoreMap) At(x, y int) float32 {
	return m.Scores[y*m.W+x]
}

// Max returns the highest score and its map index, or -1 for an empty map.
// The first maximum in row-major order wins.
func (m *ScoreMap) Max() (float32, int) {
	best := float32(math.Inf(-1))
	idx := -1
	for i, s := range m.Scores {
		if s > best {
			best = s
			idx = i
		}
	}
	return best, idx
}

// Correlator is the matching primitive: it scores every placement of
// template inside frame. It returns nil when the template does not fit.
type Correlator interface {
	Correlate(frame, template *image.RGBA) *ScoreMap
}

// NewCorrelator returns the pure-Go correlator for method.
func NewCorrelator(method MatchMethod) Correlator {
	if method == MatchMethodGrayNCC {
		return &GrayNCC{}
	}
	return &PixelCorrelator{Method: method}
}

// GrayNCC correlates luminance planes using integral images for the window
// statistics. Downsample > 1 correlates box-filtered images and expands the
// result back to full resolution, trading position accuracy for speed.
type GrayNCC struct {
	Downsample int
}

func (g *GrayNCC) Correlate(frame, template *image.RGBA) *ScoreMap {
	fb, tb := frame.Bounds(), template.Bounds()
	full := NewScoreMap(fb, tb.Dx(), tb.Dy())
	if full == nil {
		return nil
	}

	k := g.Downsample
	if k <= 1 || tb.Dx()/k < 4 || tb.Dy()/k < 4 {
		correlateGray(newGrayPlane(frame), newGrayPlane(template), full)
		return full
	}

	fp := newGrayPlane(frame).downsample(k)
	tp := newGrayPlane(template).downsample(k)
	coarse := &ScoreMap{W: fp.w - tp.w + 1, H: fp.h - tp.h + 1}
	if coarse.W <= 0 || coarse.H <= 0 {
		correlateGray(newGrayPlane(frame), newGrayPlane(template), full)
		return full
	}
	coarse.Scores = make([]float32, coarse.W*coarse.H)
	correlateGray(fp, tp, coarse)

	for y := 0; y < full.H; y++ {
		cy := min(y/k, coarse.H-1)
		for x := 0; x < full.W; x++ {
			cx := min(x/k, coarse.W-1)
			full.Scores[y*full.W+x] = coarse.Scores[cy*coarse.W+cx]
		}
	}
	return full
}

// grayPlane is a luminance image with its integral tables.
type grayPlane struct {
	w, h int
	px   []float32
}

// newGrayPlane uses the same luminance weights as the RGB matchers.
func newGrayPlane(img *image.RGBA) *grayPlane {
	b := img.Bounds()
	p := &grayPlane{w: b.Dx(), h: b.Dy(), px: make([]float32, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < p.w; x++ {
			i := off + x*4
			p.px[y*p.w+x] = float32(int(img.Pix[i])*299+int(img.Pix[i+1])*587+int(img.Pix[i+2])*114) / 1000
		}
	}
	return p
}

func (p *grayPlane) downsample(k int) *grayPlane {
	out := &grayPlane{w: p.w / k, h: p.h / k}
	out.px = make([]float32, out.w*out.h)
	inv := 1 / float32(k*k)
	for y := 0; y < out.h; y++ {
		for x := 0; x < out.w; x++ {
			var sum float32
			for dy := 0; dy < k; dy++ {
				row := (y*k + dy) * p.w
				for dx := 0; dx < k; dx++ {
					sum += p.px[row+x*k+dx]
				}
			}
			out.px[y*out.w+x] = sum * inv
		}
	}
	return out
}

// integrals returns summed-area tables of values and squared values with a
// zero first row and column.
func (p *grayPlane) integrals() (sum, sq []float64) {
	stride := p.w + 1
	sum = make([]float64, stride*(p.h+1))
	sq = make([]float64, stride*(p.h+1))
	for y := 0; y < p.h; y++ {
		var rs, rq float64
		for x := 0; x < p.w; x++ {
			v := float64(p.px[y*p.w+x])
			rs += v
			rq += v * v
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rs
			sq[(y+1)*stride+x+1] = sq[y*stride+x+1] + rq
		}
	}
	return sum, sq
}

func correlateGray(f, t *grayPlane, out *ScoreMap) {
	n := float64(t.w * t.h)

	var tSum float64
	for _, v := range t.px {
		tSum += float64(v)
	}
	tMean := tSum / n
	tz := make([]float32, len(t.px))
	var tVar float64
	for i, v := range t.px {
		d := float64(v) - tMean
		tz[i] = float32(d)
		tVar += d * d
	}

	if tVar < 1e-6 {
		// A flat template correlates with nothing.
		return
	}

	sum, sq := f.integrals()
	stride := f.w + 1

	rows := make(chan int, out.H)
	for y := 0; y < out.H; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := 0; x < out.W; x++ {
					a := y*stride + x
					b := a + t.w
					c := (y+t.h)*stride + x
					d := c + t.w
					ws := sum[d] - sum[b] - sum[c] + sum[a]
					wq := sq[d] - sq[b] - sq[c] + sq[a]
					wVar := wq - ws*ws/n
					if wVar < 1e-6 {
						continue
					}

					var cross float64
					for j := 0; j < t.h; j++ {
						frow := f.px[(y+j)*f.w+x : (y+j)*f.w+x+t.w]
						trow := tz[j*t.w : (j+1)*t.w]
						var rc float32
						for i, tv := range trow {
							rc += frow[i] * tv
						}
						cross += float64(rc)
					}

					score := cross / math.Sqrt(wVar*tVar)
					if score > 1 {
						score = 1
					} else if score < -1 {
						score = -1
					}
					out.Scores[y*out.W+x] = float32(score)
				}
			}
		}()
	}
	wg.Wait()
}

// PixelCorrelator scores RGB windows directly with SAD, SSD or NCC.
// Slower than GrayNCC but sensitive to colour.
type PixelCorrelator struct {
	Method MatchMethod
}

func (p *PixelCorrelator) Correlate(frame, template *image.RGBA) *ScoreMap {
	fb, tb := frame.Bounds(), template.Bounds()
	out := NewScoreMap(fb, tb.Dx(), tb.Dy())
	if out == nil {
		return nil
	}
	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			out.Scores[y*out.W+x] = float32(calculateMatchScore(frame, template, fb.Min.X+x, fb.Min.Y+y, p.Method))
		}
	}
	return out
}

// calculateMatchScore computes similarity between template and image region
func calculateMatchScore(haystack, needle *image.RGBA, x, y int, method MatchMethod) float64 {
	nb := needle.Bounds()
	switch method {
	case MatchMethodSAD:
		return matchSAD(haystack, needle, x, y, nb.Dx(), nb.Dy())
	case MatchMethodNCC:
		return matchNCC(haystack, needle, x, y, nb.Dx(), nb.Dy())
	default:
		return matchSSD(haystack, needle, x, y, nb.Dx(), nb.Dy())
	}
}

// matchSAD - Sum of Absolute Differences (fastest, least accurate)
func matchSAD(haystack, needle *image.RGBA, x, y, width, height int) float64 {
	var sad uint64
	nb := needle.Bounds()

	for ny := 0; ny < height; ny++ {
		hRow := haystack.PixOffset(x, y+ny)
		nRow := needle.PixOffset(nb.Min.X, nb.Min.Y+ny)
		for nx := 0; nx < width; nx++ {
			hIdx := hRow + nx*4
			nIdx := nRow + nx*4
			sad += uint64(abs(int(haystack.Pix[hIdx]) - int(needle.Pix[nIdx])))
			sad += uint64(abs(int(haystack.Pix[hIdx+1]) - int(needle.Pix[nIdx+1])))
			sad += uint64(abs(int(haystack.Pix[hIdx+2]) - int(needle.Pix[nIdx+2])))
		}
	}

	maxSAD := float64(width * height * 3 * 255)
	return 1.0 - (float64(sad) / maxSAD)
}

// matchSSD - Sum of Squared Differences (balanced)
func matchSSD(haystack, needle *image.RGBA, x, y, width, height int) float64 {
	var ssd uint64
	nb := needle.Bounds()

	for ny := 0; ny < height; ny++ {
		hRow := haystack.PixOffset(x, y+ny)
		nRow := needle.PixOffset(nb.Min.X, nb.Min.Y+ny)
		for nx := 0; nx < width; nx++ {
			hIdx := hRow + nx*4
			nIdx := nRow + nx*4
			dr := int(haystack.Pix[hIdx]) - int(needle.Pix[nIdx])
			dg := int(haystack.Pix[hIdx+1]) - int(needle.Pix[nIdx+1])
			db := int(haystack.Pix[hIdx+2]) - int(needle.Pix[nIdx+2])
			ssd += uint64(dr*dr + dg*dg + db*db)
		}
	}

	maxSSD := float64(width * height * 3 * 255 * 255)
	return 1.0 - (float64(ssd) / maxSSD)
}

// matchNCC - Normalized Cross-Correlation over RGB, mapped to 0..1
func matchNCC(haystack, needle *image.RGBA, x, y, width, height int) float64 {
	var sumH, sumN, sumHN, sumHH, sumNN float64
	pixelCount := float64(width * height * 3)
	nb := needle.Bounds()

	for ny := 0; ny < height; ny++ {
		hRow := haystack.PixOffset(x, y+ny)
		nRow := needle.PixOffset(nb.Min.X, nb.Min.Y+ny)
		for nx := 0; nx < width; nx++ {
			for c := 0; c < 3; c++ {
				h := float64(haystack.Pix[hRow+nx*4+c])
				n := float64(needle.Pix[nRow+nx*4+c])
				sumH += h
				sumN += n
				sumHN += h * n
				sumHH += h * h
				sumNN += n * n
			}
		}
	}

	numerator := sumHN - (sumH * sumN / pixelCount)
	denomH := math.Sqrt(sumHH - (sumH * sumH / pixelCount))
	denomN := math.Sqrt(sumNN - (sumN * sumN / pixelCount))

	if denomH == 0 || denomN == 0 {
		return 0
	}

	correlation := numerator / (denomH * denomN)
	return (correlation + 1.0) / 2.0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CropRegion copies a rectangle of img into a new image anchored at (0,0).
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		src := img.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(cropped.Pix[y*cropped.Stride:y*cropped.Stride+rect.Dx()*4], img.Pix[src:src+rect.Dx()*4])
	}
	return cropped
}
