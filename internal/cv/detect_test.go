package cv

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

func noiseImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func paste(dst, src *image.RGBA, at image.Point) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetRGBA(at.X+x, at.Y+y, src.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
}

func frameOf(img *image.RGBA) *Frame {
	return &Frame{Image: img}
}

func TestFindAllReturnsEveryPlacement(t *testing.T) {
	tmpl := Template{Name: "slime", Image: noiseImage(12, 10, 7)}
	img := noiseImage(200, 150, 1)
	spots := []image.Point{{10, 10}, {120, 40}, {60, 120}}
	for _, p := range spots {
		paste(img, tmpl.Image, p)
	}

	m := NewMatcher(nil)
	hits := m.FindAll(frameOf(img), tmpl, 0.9)
	if len(hits) != len(spots) {
		t.Fatalf("Expected %d hits, got %d: %+v", len(spots), len(hits), hits)
	}

	found := map[image.Point]bool{}
	for _, h := range hits {
		found[h.TopLeft] = true
		if h.Size != image.Pt(12, 10) {
			t.Errorf("Unexpected hit size %v", h.Size)
		}
		if h.Score < 0.999 {
			t.Errorf("Expected exact placement score, got %f", h.Score)
		}
	}
	for _, p := range spots {
		if !found[p] {
			t.Errorf("Missing hit at %v", p)
		}
	}
	if m.Passes() != 1 {
		t.Errorf("Expected a single correlation pass, got %d", m.Passes())
	}
}

func TestFindAllNoMatchesIsOnePass(t *testing.T) {
	tmpl := Template{Image: noiseImage(12, 10, 7)}
	m := NewMatcher(nil)

	hits := m.FindAll(frameOf(noiseImage(120, 90, 3)), tmpl, 0.9)
	if len(hits) != 0 {
		t.Fatalf("Expected no hits, got %+v", hits)
	}
	if m.Passes() != 1 {
		t.Errorf("Expected exactly one correlation pass, got %d", m.Passes())
	}
}

// fixedCorrelator returns a prepared score map.
type fixedCorrelator struct {
	scores func(w, h int) []float32
	calls  int
}

func (f *fixedCorrelator) Correlate(frame, template *image.RGBA) *ScoreMap {
	f.calls++
	sm := NewScoreMap(frame.Bounds(), template.Bounds().Dx(), template.Bounds().Dy())
	if sm != nil {
		copy(sm.Scores, f.scores(sm.W, sm.H))
	}
	return sm
}

func TestSuppressionCoversTemplateNeighbourhood(t *testing.T) {
	// Two plateaus of high score, each 3x3, far enough apart to be distinct
	// placements of a 5x5 template. Every cell of a plateau is above
	// threshold, so suppression must swallow the whole plateau.
	fc := &fixedCorrelator{scores: func(w, h int) []float32 {
		s := make([]float32, w*h)
		for _, c := range []image.Point{{5, 5}, {20, 5}} {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					s[(c.Y+dy)*w+c.X+dx] = 0.8
				}
			}
			s[c.Y*w+c.X] = 0.95
		}
		return s
	}}

	m := NewMatcher(fc)
	tmpl := Template{Image: image.NewRGBA(image.Rect(0, 0, 5, 5))}
	hits := m.FindAll(frameOf(image.NewRGBA(image.Rect(0, 0, 40, 20))), tmpl, 0.5)

	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d: %+v", len(hits), hits)
	}
	if hits[0].TopLeft != image.Pt(5, 5) || hits[1].TopLeft != image.Pt(20, 5) {
		t.Errorf("Unexpected hit positions %v %v", hits[0].TopLeft, hits[1].TopLeft)
	}
	if fc.calls != 1 {
		t.Errorf("Expected one correlation, got %d", fc.calls)
	}
	if hits[0].Rect().Overlaps(hits[1].Rect()) {
		t.Error("Hits overlap")
	}
}

func TestFindAllTemplateLargerThanFrame(t *testing.T) {
	m := NewMatcher(nil)
	tmpl := Template{Image: noiseImage(50, 50, 2)}
	if hits := m.FindAll(frameOf(noiseImage(20, 20, 1)), tmpl, 0.5); hits != nil {
		t.Errorf("Expected no hits, got %+v", hits)
	}
}

func TestFindAllHonoursRegion(t *testing.T) {
	tmpl := Template{Image: noiseImage(8, 8, 9)}
	img := noiseImage(100, 100, 4)
	paste(img, tmpl.Image, image.Pt(10, 10))
	paste(img, tmpl.Image, image.Pt(70, 70))

	// The frame sits at screen offset 1000,500; the region is in screen space.
	frame := &Frame{Image: img, Origin: image.Pt(1000, 500)}
	tmpl = tmpl.InRegion(1050, 550, 1100, 600)

	hits := NewMatcher(nil).FindAll(frame, tmpl, 0.9)
	if len(hits) != 1 || hits[0].TopLeft != image.Pt(70, 70) {
		t.Fatalf("Expected only the hit inside the region, got %+v", hits)
	}
	if got := frame.ToScreen(hits[0].Center()); got != image.Pt(1074, 574) {
		t.Errorf("Expected screen center 1074,574, got %v", got)
	}
}

func TestPickNearestWithExclusion(t *testing.T) {
	size := image.Pt(10, 10)
	hits := []Hit{
		{TopLeft: image.Pt(95, 95), Size: size},  // center 100,100: nearest, but excluded
		{TopLeft: image.Pt(135, 95), Size: size}, // center 140,100
		{TopLeft: image.Pt(15, 95), Size: size},  // center 20,100
	}
	ref := image.Pt(100, 100)
	excl := image.Rect(90, 90, 110, 110)

	got, ok := PickNearest(hits, ref, &excl)
	if !ok || got != hits[1] {
		t.Fatalf("Expected second hit, got %+v ok=%v", got, ok)
	}

	got, ok = PickNearest(hits, ref, nil)
	if !ok || got != hits[0] {
		t.Errorf("Without exclusion expected first hit, got %+v", got)
	}

	all := image.Rect(0, 0, 500, 500)
	if _, ok := PickNearest(hits, ref, &all); ok {
		t.Error("Expected nothing when every hit is excluded")
	}

	// A center lying exactly on the exclusion edge is not inside it.
	edge := image.Rect(100, 90, 120, 110)
	if got, ok := PickNearest(hits[:1], ref, &edge); !ok || got != hits[0] {
		t.Error("Expected edge center to survive exclusion")
	}
}

func TestPickNearestTieKeepsFirst(t *testing.T) {
	size := image.Pt(2, 2)
	hits := []Hit{
		{TopLeft: image.Pt(9, -1), Size: size},  // center 10,0
		{TopLeft: image.Pt(-11, -1), Size: size}, // center -10,0
	}
	got, _ := PickNearest(hits, image.Pt(0, 0), nil)
	if got != hits[0] {
		t.Errorf("Expected first of equally near hits, got %+v", got)
	}
}

func TestFindBestAcrossTemplates(t *testing.T) {
	a := Template{Name: "a", Image: noiseImage(10, 10, 11)}
	b := Template{Name: "b", Image: noiseImage(10, 10, 12)}
	c := Template{Name: "c", Image: noiseImage(10, 10, 13)}
	img := noiseImage(80, 80, 5)
	paste(img, b.Image, image.Pt(40, 30))

	m := NewMatcher(nil)
	hit, idx, ok := m.FindBest(frameOf(img), []Template{a, b, c}, 0.9)
	if !ok || idx != 1 {
		t.Fatalf("Expected template 1, got idx=%d ok=%v", idx, ok)
	}
	if hit.TopLeft != image.Pt(40, 30) {
		t.Errorf("Unexpected location %v", hit.TopLeft)
	}
	if m.Passes() != 3 {
		t.Errorf("Expected one pass per template, got %d", m.Passes())
	}

	if _, _, ok := m.FindBest(frameOf(noiseImage(80, 80, 6)), []Template{a, b, c}, 0.9); ok {
		t.Error("Expected no match on a frame without templates")
	}
	if _, idx, ok := m.FindBest(frameOf(img), nil, 0); ok || idx != -1 {
		t.Error("Expected empty set to find nothing")
	}
}

func TestFindBestTieKeepsEarliestTemplate(t *testing.T) {
	fc := &fixedCorrelator{scores: func(w, h int) []float32 {
		s := make([]float32, w*h)
		s[0] = 0.9
		return s
	}}
	blank := image.NewRGBA(image.Rect(0, 0, 4, 4))
	set := []Template{{Name: "first", Image: blank}, {Name: "second", Image: blank}}

	_, idx, ok := NewMatcher(fc).FindBest(frameOf(image.NewRGBA(image.Rect(0, 0, 10, 10))), set, 0.5)
	if !ok || idx != 0 {
		t.Errorf("Expected earliest template to win tie, got %d", idx)
	}
}

func TestPixelCorrelatorFindsExactPlacement(t *testing.T) {
	tmpl := noiseImage(6, 6, 21)
	img := noiseImage(40, 30, 22)
	paste(img, tmpl, image.Pt(17, 9))

	for _, method := range []MatchMethod{MatchMethodSAD, MatchMethodSSD, MatchMethodNCC} {
		hit, ok := NewMatcher(NewCorrelator(method)).Best(frameOf(img), Template{Image: tmpl})
		if !ok || hit.TopLeft != image.Pt(17, 9) {
			t.Errorf("%s: expected 17,9, got %v", method, hit.TopLeft)
		}
		if hit.Score < 0.999 {
			t.Errorf("%s: expected score ~1, got %f", method, hit.Score)
		}
	}
}

func TestGrayNCCDownsampleStaysClose(t *testing.T) {
	tmpl := noiseImage(24, 24, 31)
	img := noiseImage(160, 120, 32)
	paste(img, tmpl, image.Pt(64, 48))

	hit, ok := NewMatcher(&GrayNCC{Downsample: 2}).Best(frameOf(img), Template{Image: tmpl})
	if !ok {
		t.Fatal("Expected a hit")
	}
	if d := hit.TopLeft.Sub(image.Pt(64, 48)); abs(d.X) > 1 || abs(d.Y) > 1 {
		t.Errorf("Downsampled hit too far off: %v", hit.TopLeft)
	}
}

func TestFlatTemplateNeverMatches(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range flat.Pix {
		flat.Pix[i] = 200
	}
	img := noiseImage(50, 50, 41)
	paste(img, flat, image.Pt(5, 5))

	if hits := NewMatcher(nil).FindAll(frameOf(img), Template{Image: flat}, 0.5); len(hits) != 0 {
		t.Errorf("Expected flat template to match nothing, got %d hits", len(hits))
	}
}

func TestImageCapturerRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.SetRGBA(60, 70, color.RGBA{R: 255, A: 255})
	c := NewImageCapturer(img, image.Pt(200, 300))

	f, err := c.CaptureRegion(image.Rect(250, 360, 270, 380))
	if err != nil {
		t.Fatalf("CaptureRegion failed: %v", err)
	}
	if f.Origin != image.Pt(250, 360) || f.Image.Bounds().Dx() != 20 {
		t.Fatalf("Unexpected region frame %v %v", f.Origin, f.Image.Bounds())
	}
	if got := f.Image.RGBAAt(10, 10); got.R != 255 {
		t.Errorf("Expected marked pixel at 10,10, got %v", got)
	}
	if _, err := c.CaptureRegion(image.Rect(0, 0, 10, 10)); err == nil {
		t.Error("Expected error for region outside frame")
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion(" 30, 40 ,10,20")
	if err != nil {
		t.Fatalf("ParseRegion failed: %v", err)
	}
	if r != NewRegion(10, 20, 30, 40) {
		t.Errorf("Expected normalized corners, got %v", r)
	}
	if _, err := ParseRegion("1,2,3"); err == nil {
		t.Error("Expected error for three values")
	}
}
