package cv

import (
	"image"
	"math"
	"sync/atomic"
)

// Hit is one accepted template placement in frame pixel coordinates.
type Hit struct {
	TopLeft image.Point
	Size    image.Point
	Score   float64
}

// Center returns the middle of the matched area.
func (h Hit) Center() image.Point {
	return h.TopLeft.Add(h.Size.Div(2))
}

// Rect returns the matched area.
func (h Hit) Rect() image.Rectangle {
	return image.Rectangle{Min: h.TopLeft, Max: h.TopLeft.Add(h.Size)}
}

// Matcher runs detection on top of a Correlator.
type Matcher struct {
	correlator Correlator
	passes     atomic.Int64
}

// NewMatcher wraps c. A nil correlator selects GrayNCC.
func NewMatcher(c Correlator) *Matcher {
	if c == nil {
		c = &GrayNCC{}
	}
	return &Matcher{correlator: c}
}

// Passes is the number of correlation passes run so far.
func (m *Matcher) Passes() int64 {
	return m.passes.Load()
}

// searchArea limits frame to the template's region, if any. Regions are in
// screen coordinates, so the frame's origin is needed to place them.
func searchArea(frame *Frame, t Template) *image.RGBA {
	if t.Region == nil {
		return frame.Image
	}
	local := frame.ScreenRect(*t.Region.ToImageRectangle()).Intersect(frame.Image.Bounds())
	if local.Empty() {
		return nil
	}
	return frame.Image.SubImage(local).(*image.RGBA)
}

func (m *Matcher) correlate(img, tmpl *image.RGBA) *ScoreMap {
	if img == nil || tmpl == nil {
		return nil
	}
	m.passes.Add(1)
	return m.correlator.Correlate(img, tmpl)
}

// FindAll returns every non-overlapping placement of t scoring at least
// threshold, best first. It correlates once and then repeatedly takes the
// maximum and suppresses a template-sized neighbourhood around it, so no
// two hits overlap and the loop ends once the best remaining score is
// below threshold.
func (m *Matcher) FindAll(frame *Frame, t Template, threshold float64) []Hit {
	if !t.Loaded() {
		return nil
	}
	sm := m.correlate(searchArea(frame, t), t.Image)
	if sm == nil {
		return nil
	}
	return suppress(sm, t.Size(), threshold)
}

func suppress(sm *ScoreMap, size image.Point, threshold float64) []Hit {
	var hits []Hit
	floor := float32(math.Inf(-1))
	for {
		best, idx := sm.Max()
		if idx < 0 || float64(best) < threshold {
			return hits
		}
		x, y := idx%sm.W, idx/sm.W
		hits = append(hits, Hit{
			TopLeft: sm.Origin.Add(image.Pt(x, y)),
			Size:    size,
			Score:   float64(best),
		})

		x0, x1 := max(0, x-size.X+1), min(sm.W-1, x+size.X-1)
		y0, y1 := max(0, y-size.Y+1), min(sm.H-1, y+size.Y-1)
		for yy := y0; yy <= y1; yy++ {
			row := sm.Scores[yy*sm.W : (yy+1)*sm.W]
			for xx := x0; xx <= x1; xx++ {
				row[xx] = floor
			}
		}
	}
}

// Best returns the single highest-scoring placement of t, whatever its score.
func (m *Matcher) Best(frame *Frame, t Template) (Hit, bool) {
	if !t.Loaded() {
		return Hit{}, false
	}
	sm := m.correlate(searchArea(frame, t), t.Image)
	if sm == nil {
		return Hit{}, false
	}
	best, idx := sm.Max()
	if idx < 0 {
		return Hit{}, false
	}
	return Hit{
		TopLeft: sm.Origin.Add(image.Pt(idx%sm.W, idx/sm.W)),
		Size:    t.Size(),
		Score:   float64(best),
	}, true
}

// FindBest correlates every template once and returns the single best
// placement across all of them together with the template index. ok is
// false when nothing reaches threshold. On equal scores the earlier
// template wins.
func (m *Matcher) FindBest(frame *Frame, set []Template, threshold float64) (hit Hit, index int, ok bool) {
	index = -1
	for i, t := range set {
		h, found := m.Best(frame, t)
		if !found {
			continue
		}
		if index < 0 || h.Score > hit.Score {
			hit, index = h, i
		}
	}
	if index < 0 || hit.Score < threshold {
		return Hit{}, -1, false
	}
	return hit, index, true
}

// PickNearest returns the hit whose center is closest to ref, skipping hits
// whose center lies strictly inside exclusion. On equal distance the
// earlier hit wins.
func PickNearest(hits []Hit, ref image.Point, exclusion *image.Rectangle) (Hit, bool) {
	bestIdx := -1
	bestDist := 0
	for i, h := range hits {
		c := h.Center()
		if exclusion != nil && StrictlyContains(*exclusion, c) {
			continue
		}
		d := c.Sub(ref)
		dist := d.X*d.X + d.Y*d.Y
		if bestIdx < 0 || dist < bestDist {
			bestIdx, bestDist = i, dist
		}
	}
	if bestIdx < 0 {
		return Hit{}, false
	}
	return hits[bestIdx], true
}
