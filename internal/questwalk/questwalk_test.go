package questwalk

import (
	"context"
	"image"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/ocr"
	"jordanella.com/rmac/internal/session"
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

func TestDecideHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	readings := []int{6, 6, 4, 4, 2, 2, 4, 4, 6}
	want := []Movement{WalkFast, WalkFast, WalkSlow, WalkSlow, Stopped, Stopped, Stopped, Stopped, WalkFast}

	cur := WalkFast
	prev := Reading{}
	for i, d := range readings {
		now := Reading{Distance: d, Known: true}
		dec := Decide(cur, prev, now, cfg)
		if dec.Next != want[i] {
			t.Errorf("Reading %d (%d): expected %s, got %s", i, d, want[i], dec.Next)
		}
		if dec.Overshoot {
			t.Errorf("Reading %d (%d): unexpected overshoot", i, d)
		}
		cur, prev = dec.Next, now
	}
}

func TestDecideEdges(t *testing.T) {
	cfg := DefaultConfig()
	known := func(d int) Reading { return Reading{Distance: d, Known: true} }

	tests := []struct {
		name      string
		cur       Movement
		prev, now Reading
		want      Decision
	}{
		{"unknown walks fast", WalkSlow, Reading{}, Reading{}, Decision{Next: WalkFast}},
		{"exactly five is slow", WalkFast, known(6), known(5), Decision{Next: WalkSlow}},
		{"exactly three arrives", WalkSlow, known(4), known(3), Decision{Next: Stopped}},
		{"stopped stays on unknown", Stopped, Reading{}, Reading{}, Decision{Next: Stopped}},
		{"stopped resumes at five", Stopped, known(2), known(5), Decision{Next: WalkFast}},
		{"overshoot pulses back", Stopped, known(1), known(4), Decision{Next: Stopped, Overshoot: true}},
		{"jump of two is not overshoot", Stopped, known(2), known(4), Decision{Next: Stopped}},
		{"resume wins over overshoot", Stopped, known(1), known(7), Decision{Next: WalkFast}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.cur, tt.prev, tt.now, cfg); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestSteer(t *testing.T) {
	if Steer(-41, 40) != SteerLeft || Steer(41, 40) != SteerRight || Steer(40, 40) != Straight || Steer(-40, 40) != Straight {
		t.Errorf("Unexpected steering around a 40px deadzone")
	}
}

type fixture struct {
	scene  *cv.ImageCapturer
	svc    *cv.Service
	dev    *device.Virtual
	flags  *session.Flags
	reader *ocr.Static
	marker cv.Template
}

func newFixture() *fixture {
	f := &fixture{
		marker: cv.Template{Name: "marker", Image: noiseImage(16, 16, 3)},
		dev:    device.NewVirtual(image.Rect(0, 0, 400, 300)),
		flags:  &session.Flags{},
		reader: &ocr.Static{},
	}
	f.scene = cv.NewImageCapturer(noiseImage(400, 300, 1), image.Point{})
	f.svc = cv.NewServiceWithCache(f.scene, nil, 0)
	return f
}

// place redraws the scene with markers at the given top-left corners.
func (f *fixture) place(at ...image.Point) {
	img := noiseImage(400, 300, 1)
	for _, p := range at {
		paste(img, f.marker.Image, p)
	}
	f.scene.Frame.Image = img
}

func (f *fixture) controller(t *testing.T, mutate func(*Config)) *Controller {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Marker = f.marker
	cfg.BackPulse = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, Deps{Vision: f.svc, Device: f.dev, Reader: f.reader, Flags: f.flags})
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	return c
}

var (
	keysFast    = []int{device.VKShift, 'W'}
	keysSlow    = []int{'W'}
	keysStopped = []int{}
)

func checkHeld(t *testing.T, c *Controller, want []int) {
	t.Helper()
	if got := c.HeldKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected held keys %v, got %v", want, got)
	}
}

func TestTickHysteresisHoldsTheRightKeys(t *testing.T) {
	f := newFixture()
	f.place(image.Pt(192, 142))
	c := f.controller(t, nil)

	answers := []string{"6m", "6m", "4m", "4m", "2m", "2m", "4m", "4m", "6m"}
	want := []Movement{WalkFast, WalkFast, WalkSlow, WalkSlow, Stopped, Stopped, Stopped, Stopped, WalkFast}
	keys := map[Movement][]int{WalkFast: keysFast, WalkSlow: keysSlow, Stopped: keysStopped}

	for i, a := range answers {
		f.reader.Answers = []string{a}
		f.reader.Err = nil
		if got := c.Tick(context.Background()); got != want[i] {
			t.Fatalf("Tick %d (%s): expected %s, got %s", i, a, want[i], got)
		}
		checkHeld(t, c, keys[want[i]])
		if c.Steering() != Straight {
			t.Errorf("Tick %d: expected straight with a centered marker", i)
		}
	}
}

func TestTickSteersAndToleratesFlicker(t *testing.T) {
	f := newFixture()
	f.place(image.Pt(20, 140))
	f.reader.Answers = []string{"30m"}
	c := f.controller(t, nil)

	c.Tick(context.Background())
	if c.Steering() != SteerLeft {
		t.Fatalf("Expected steer left, got %s", c.Steering())
	}
	checkHeld(t, c, []int{device.VKShift, 'A', 'W'})

	f.place(image.Pt(360, 140))
	c.Tick(context.Background())
	if c.Steering() != SteerRight {
		t.Fatalf("Expected steer right, got %s", c.Steering())
	}
	checkHeld(t, c, []int{device.VKShift, 'D', 'W'})

	f.place()
	if got := c.Tick(context.Background()); got != WalkFast {
		t.Errorf("Expected to keep walking when the marker flickers, got %s", got)
	}
	checkHeld(t, c, keysFast)
}

func TestTickOCRMissKeepsDistance(t *testing.T) {
	f := newFixture()
	f.place(image.Pt(192, 142))
	f.reader.Answers = []string{"4m", "", "m?"}
	c := f.controller(t, nil)

	for i := 0; i < 3; i++ {
		if got := c.Tick(context.Background()); got != WalkSlow {
			t.Fatalf("Tick %d: expected slow walk on retained distance, got %s", i, got)
		}
	}
	if d := c.Distance(); !d.Known || d.Distance != 4 {
		t.Errorf("Expected retained distance 4, got %+v", d)
	}
}

func TestTickExclusionSkipsDecoy(t *testing.T) {
	f := newFixture()
	// The decoy sits on the frame center, the real marker far right.
	f.place(image.Pt(192, 142), image.Pt(330, 20))
	f.reader.Answers = []string{"30m"}
	excl := image.Rect(150, 100, 250, 200)
	c := f.controller(t, func(cfg *Config) { cfg.Exclusion = &excl })

	c.Tick(context.Background())
	if c.Steering() != SteerRight {
		t.Errorf("Expected to steer towards the marker outside the exclusion, got %s", c.Steering())
	}
}

func TestTickOvershootPulsesBack(t *testing.T) {
	f := newFixture()
	f.place(image.Pt(192, 142))
	c := f.controller(t, nil)

	f.reader.Answers = []string{"1m"}
	if got := c.Tick(context.Background()); got != Stopped {
		t.Fatalf("Expected Stopped, got %s", got)
	}
	f.dev.Reset()

	f.reader.Answers = []string{"4m"}
	if got := c.Tick(context.Background()); got != Stopped {
		t.Fatalf("Expected to stay Stopped after overshoot, got %s", got)
	}
	var down, up bool
	for _, cmd := range f.dev.Commands() {
		if cmd.Kind == device.CmdKey && cmd.A == 'S' {
			if cmd.Down {
				down = true
			} else if down {
				up = true
			}
		}
	}
	if !down || !up {
		t.Errorf("Expected a back-key pulse, got %v", f.dev.Commands())
	}
	checkHeld(t, c, keysStopped)
}

func TestBattlePauseAndResume(t *testing.T) {
	f := newFixture()
	f.place(image.Pt(192, 142))
	f.reader.Answers = []string{"4m"}
	c := f.controller(t, nil)

	if got := c.Tick(context.Background()); got != WalkSlow {
		t.Fatalf("Expected slow walk, got %s", got)
	}

	f.flags.SetBattleStarted(true)
	if got := c.Tick(context.Background()); got != Paused {
		t.Fatalf("Expected Paused, got %s", got)
	}
	checkHeld(t, c, keysStopped)
	for _, vk := range []int{'W', 'A', 'D', device.VKShift} {
		if f.dev.IsKeyDown(vk) {
			t.Errorf("Key %s still down during battle", device.KeyString(vk))
		}
	}

	grabs := f.svc.Grabs()
	c.Tick(context.Background())
	if f.svc.Grabs() != grabs {
		t.Errorf("Expected no frame grabs while paused")
	}

	f.flags.SetBattleStarted(false)
	if got := c.Tick(context.Background()); got != WalkFast {
		t.Fatalf("Expected fast walk after the battle, got %s", got)
	}
	checkHeld(t, c, keysFast)
}

func TestRunReleasesEveryKey(t *testing.T) {
	f := newFixture()
	f.place(image.Pt(20, 140))
	f.reader.Answers = []string{"40m"}
	c := f.controller(t, func(cfg *Config) { cfg.Tick = MinTick })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !f.dev.IsKeyDown('A') {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for the walker to steer")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !f.flags.QuestWalking() {
		t.Errorf("Expected quest-walk flag while running")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if held := c.HeldKeys(); len(held) != 0 {
		t.Errorf("Expected nothing held after Run, got %v", held)
	}
	for _, vk := range []int{'W', 'A', 'D', 'S', device.VKShift} {
		if f.dev.IsKeyDown(vk) {
			t.Errorf("Key %s stuck down after Run", device.KeyString(vk))
		}
	}
	if f.flags.QuestWalking() {
		t.Errorf("Expected quest-walk flag cleared")
	}
}

func TestRunStopsOnStopKey(t *testing.T) {
	f := newFixture()
	c := f.controller(t, func(cfg *Config) { cfg.Tick = MinTick })
	f.dev.PressKey(device.VKEscape, true)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run ignored the stop key")
	}
	if f.dev.IsKeyDown('W') {
		t.Errorf("Forward key stuck after stop")
	}
}
