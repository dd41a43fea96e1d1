package hunt

import (
	"context"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/events"
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

type busRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *busRecorder) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *busRecorder) count(t events.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	scene  *cv.ImageCapturer
	svc    *cv.Service
	dev    *device.Virtual
	flags  *session.Flags
	status *session.Status
	bus    *busRecorder
	slime  cv.Template
	battle cv.Template
}

// newFixture builds a 400x300 screen with a slime at 100,50.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		slime:  cv.Template{Name: "slime", Image: noiseImage(16, 16, 7)},
		battle: cv.Template{Name: "battle", Image: noiseImage(24, 12, 9)},
		dev:    device.NewVirtual(image.Rect(0, 0, 400, 300)),
		flags:  &session.Flags{},
		status: &session.Status{},
		bus:    &busRecorder{},
	}
	img := noiseImage(400, 300, 1)
	paste(img, f.slime.Image, image.Pt(100, 50))
	f.scene = cv.NewImageCapturer(img, image.Point{})
	f.svc = cv.NewServiceWithCache(f.scene, nil, 0)
	f.dev.SetCursor(image.Pt(0, 0))
	return f
}

func (f *fixture) showBattle() {
	img := f.scene.Frame.Image
	paste(img, f.battle.Image, image.Pt(300, 250))
}

func (f *fixture) controller(t *testing.T, mutate func(*Config)) *Controller {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Targets = []cv.Template{f.slime}
	cfg.Battle = f.battle
	cfg.MoveSteps = 4
	cfg.MoveStepDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, Deps{
		Vision: f.svc,
		Device: f.dev,
		Flags:  f.flags,
		Status: f.status,
		Bus:    f.bus,
	})
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	return c
}

func TestHuntInertWhileNothingDrives(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, nil)

	if got := c.Tick(context.Background(), time.Now()); got != Idle {
		t.Errorf("Expected Idle, got %s", got)
	}
	if f.svc.Grabs() != 0 {
		t.Errorf("Expected no frame grabs, got %d", f.svc.Grabs())
	}
	if n := len(f.dev.Commands()); n != 0 {
		t.Errorf("Expected no commands, got %d", n)
	}
}

func TestHuntAttackRespectsCooldown(t *testing.T) {
	f := newFixture(t)
	f.flags.SetPlaying(true)
	c := f.controller(t, func(cfg *Config) { cfg.AttackCooldown = time.Second })

	now := time.Now()
	if got := c.Tick(context.Background(), now); got != Attacking {
		t.Fatalf("Expected Attacking, got %s", got)
	}

	cmds := f.dev.Commands()
	if len(cmds) != 6 {
		t.Fatalf("Expected 4 moves and a click, got %v", cmds)
	}
	for i := 0; i < 4; i++ {
		if cmds[i].Kind != device.CmdMoveAbsolute {
			t.Errorf("Command %d: expected absolute move, got %v", i, cmds[i])
		}
	}
	if cmds[4].Kind != device.CmdButton || !cmds[4].Down || cmds[5].Down {
		t.Errorf("Expected press then release, got %v %v", cmds[4], cmds[5])
	}
	if pos, _ := f.dev.CursorPos(); pos != image.Pt(108, 58) {
		t.Errorf("Expected pointer on the slime center, got %v", pos)
	}

	f.dev.Reset()
	if got := c.Tick(context.Background(), now.Add(500*time.Millisecond)); got != Scanning {
		t.Errorf("Expected Scanning during cooldown, got %s", got)
	}
	if n := len(f.dev.Commands()); n != 0 {
		t.Errorf("Expected no commands during cooldown, got %d", n)
	}

	if got := c.Tick(context.Background(), now.Add(1100*time.Millisecond)); got != Attacking {
		t.Errorf("Expected a second attack after cooldown, got %s", got)
	}
	if got := c.Metrics().Attacks; got != 2 {
		t.Errorf("Expected 2 attacks, got %d", got)
	}
	if got := f.bus.count(events.EventTypeHuntAttacked); got != 2 {
		t.Errorf("Expected 2 attack events, got %d", got)
	}
}

func TestHuntInterruptedAttackReturnsToScanning(t *testing.T) {
	f := newFixture(t)
	f.flags.SetPlaying(true)
	c := f.controller(t, func(cfg *Config) { cfg.MoveStepDelay = time.Second })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := c.Tick(ctx, time.Now()); got != Scanning {
		t.Errorf("Expected Scanning after an interrupted attack, got %s", got)
	}
	if got := c.State(); got != Scanning {
		t.Errorf("Expected controller state Scanning, got %s", got)
	}
	for _, cmd := range f.dev.Commands() {
		if cmd.Kind == device.CmdButton {
			t.Errorf("Expected no click on an interrupted attack, got %v", cmd)
		}
	}
	if got := c.Metrics().Attacks; got != 0 {
		t.Errorf("Expected 0 attacks, got %d", got)
	}
}

func TestHuntPassiveOnlyReports(t *testing.T) {
	f := newFixture(t)
	f.scene.Frame.Origin = image.Pt(50, 20)
	f.flags.SetQuestWalking(true)
	c := f.controller(t, func(cfg *Config) { cfg.Mode = Passive })

	if got := c.Tick(context.Background(), time.Now()); got != Scanning {
		t.Errorf("Expected Scanning, got %s", got)
	}
	if n := len(f.dev.Commands()); n != 0 {
		t.Errorf("Passive hunt sent %d commands", n)
	}
	d := f.status.View(nil).Hunt
	if d == nil || d.Template != "slime" {
		t.Fatalf("Expected a slime detection, got %+v", d)
	}
	if d.X != 158 || d.Y != 78 {
		t.Errorf("Expected detection in screen coordinates 158,78, got %d,%d", d.X, d.Y)
	}
}

func TestHuntBattleIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.showBattle()
	f.flags.SetRecording(true)
	c := f.controller(t, nil)

	if got := c.Tick(context.Background(), time.Now()); got != Idle {
		t.Fatalf("Expected Idle after battle, got %s", got)
	}
	if !c.BattleDetected() || !f.flags.BattleStarted() {
		t.Errorf("Expected battle flagged on controller and session")
	}
	if n := len(f.dev.Commands()); n != 0 {
		t.Errorf("Expected no attack when a battle is on screen, got %d commands", n)
	}

	grabs := f.svc.Grabs()
	c.Tick(context.Background(), time.Now())
	if f.svc.Grabs() != grabs {
		t.Errorf("Expected no scans after a battle")
	}
	if got := f.bus.count(events.EventTypeHuntBattleDetected); got != 1 {
		t.Errorf("Expected one battle event, got %d", got)
	}
}

func TestHuntRunEndsOnBattle(t *testing.T) {
	f := newFixture(t)
	f.showBattle()
	c := f.controller(t, func(cfg *Config) {
		cfg.Standalone = true
		cfg.ScanInterval = 0
	})
	if c.Config().ScanInterval != MinScanInterval {
		t.Errorf("Expected scan interval clamped to %v, got %v", MinScanInterval, c.Config().ScanInterval)
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on battle")
	}
	if c.State() != Idle {
		t.Errorf("Expected Idle, got %s", c.State())
	}
}

func TestHuntRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected error without targets")
	}
	cfg.Targets = []cv.Template{{Name: "empty"}}
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected error for unloaded target")
	}

	cfg.EnemyThreshold = 1.5
	cfg.BattleThreshold = -1
	cfg.MoveSteps = 0
	cfg.Clamp()
	if cfg.EnemyThreshold != 1 || cfg.BattleThreshold != 0 || cfg.MoveSteps != 1 {
		t.Errorf("Unexpected clamped config %+v", cfg)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"active", Active, true},
		{"Passive", Passive, true},
		{"scan", Passive, true},
		{"", Active, true},
		{"berserk", Active, false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
