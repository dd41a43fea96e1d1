package bot

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"jordanella.com/rmac/internal/config"
	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
)

func writePNG(t *testing.T, path string, seed int64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, noiseImage(12, 12, seed)); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"record", ModeRecord},
		{" PLAY-HUNT ", ModePlayHunt},
		{"quest-walk", ModeQuestWalk},
		{"full", ModeFull},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
	if _, err := ParseMode("inspect"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode for inspect, got %v", err)
	}
}

func TestModeUnits(t *testing.T) {
	if !ModeFull.NeedsLog() || !ModeFull.Records() || !ModeFull.NeedsVision() {
		t.Error("Expected full to record, need a log and need vision")
	}
	if ModeHunt.NeedsLog() {
		t.Error("Expected hunt to run without a log")
	}
	if ModePlay.NeedsVision() {
		t.Error("Expected play to run without vision")
	}
}

func TestRestartTrigger(t *testing.T) {
	var tr RestartTrigger
	steps := []struct {
		down bool
		want bool
	}{
		{false, false},
		{true, true},
		{true, false},
		{false, false},
		{true, true},
	}
	for i, s := range steps {
		if got := tr.Update(s.down); got != s.want {
			t.Errorf("Step %d: expected %t, got %t", i, s.want, got)
		}
	}
}

func TestRestartTriggerPrimedWhileHeld(t *testing.T) {
	var tr RestartTrigger
	tr.Prime(true)
	if tr.Update(true) {
		t.Error("Expected a key held before priming not to fire")
	}
	tr.Update(false)
	if !tr.Update(true) {
		t.Error("Expected a fresh press to fire")
	}
}

func TestResolveTemplate(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "enemies")
	if err := os.Mkdir(existing, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	tests := []struct {
		path, file, want string
	}{
		{"slime.png", "hunt.yaml", "slime.png"},
		{"hunt.yaml#enemies", "other.yaml", "hunt.yaml#enemies"},
		{existing, "hunt.yaml", existing},
		{"enemies", "hunt.yaml", "hunt.yaml#enemies"},
		{"enemies", "", "enemies"},
	}
	for _, tt := range tests {
		if got := resolveTemplate(tt.path, tt.file); got != tt.want {
			t.Errorf("resolveTemplate(%q, %q): expected %q, got %q", tt.path, tt.file, tt.want, got)
		}
	}
}

func TestNewCorrelator(t *testing.T) {
	s := config.NewDefaultSettings()
	s.Downsample = 2
	c, err := NewCorrelator(s)
	if err != nil {
		t.Fatalf("NewCorrelator failed: %v", err)
	}
	g, ok := c.(*cv.GrayNCC)
	if !ok || g.Downsample != 2 {
		t.Errorf("Expected GrayNCC with downsample 2, got %#v", c)
	}

	s.MatchMethod = "opencv"
	if c, _ := NewCorrelator(s); c != (cv.OpenCV{}) {
		t.Errorf("Expected OpenCV correlator, got %#v", c)
	}

	s.MatchMethod = "sad"
	if _, ok := mustCorrelator(t, s).(*cv.PixelCorrelator); !ok {
		t.Error("Expected pixel correlator for sad")
	}

	s.MatchMethod = "fourier"
	if _, err := NewCorrelator(s); err == nil {
		t.Error("Expected an error for an unknown method")
	}
}

func mustCorrelator(t *testing.T, s *config.Settings) cv.Correlator {
	t.Helper()
	c, err := NewCorrelator(s)
	if err != nil {
		t.Fatalf("NewCorrelator failed: %v", err)
	}
	return c
}

func TestLoadProfileRecordSkipsVisionTemplates(t *testing.T) {
	s := config.NewDefaultSettings()
	s.HuntTargets = filepath.Join(t.TempDir(), "missing.png")

	p, err := LoadProfile(s, ModeRecord, nil)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.StopKey != device.VKEscape {
		t.Errorf("Expected stop key ESC, got %d", p.StopKey)
	}
	if p.Capture.AbsMode.ModifierKey == 0 {
		t.Error("Expected the ALT modifier to enable absolute mode")
	}
	if p.Hunt.Targets != nil {
		t.Error("Expected no hunt targets for record")
	}
}

func TestLoadProfileHunt(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "slime.png"), 1)
	writePNG(t, filepath.Join(dir, "battle.png"), 2)

	s := config.NewDefaultSettings()
	s.HuntTargets = filepath.Join(dir, "slime.png")
	s.HuntBattle = filepath.Join(dir, "battle.png")
	s.HuntMode = "passive"

	p, err := LoadProfile(s, ModeHunt, nil)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if len(p.Hunt.Targets) != 1 || !p.Hunt.Battle.Loaded() {
		t.Fatalf("Expected one target and a battle template, got %d and %t", len(p.Hunt.Targets), p.Hunt.Battle.Loaded())
	}
	if !p.Hunt.Standalone {
		t.Error("Expected a hunt-only session to be standalone")
	}

	p, err = LoadProfile(s, ModePlayHunt, nil)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Hunt.Standalone {
		t.Error("Expected play-hunt to gate the hunt on playback")
	}
}

func TestLoadProfileHuntNeedsTargets(t *testing.T) {
	s := config.NewDefaultSettings()
	if _, err := LoadProfile(s, ModeHunt, nil); err == nil {
		t.Fatal("Expected an error without hunt targets")
	}
}

func TestLoadProfileQuestWalk(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "marker.png"), 3)

	s := config.NewDefaultSettings()
	s.Marker = filepath.Join(dir, "marker.png")
	s.Exclusion = "0,0,50,50"
	s.SprintKey = "none"

	p, err := LoadProfile(s, ModeQuestWalk, nil)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	qw := p.QuestWalk
	if !qw.Marker.Loaded() {
		t.Error("Expected the marker to be loaded")
	}
	if qw.Exclusion == nil || qw.Exclusion.Dx() != 50 {
		t.Errorf("Expected a 50px exclusion, got %v", qw.Exclusion)
	}
	if qw.Keys.Sprint != 0 {
		t.Errorf("Expected sprint disabled, got %d", qw.Keys.Sprint)
	}
	if qw.Keys.Stop != device.VKEscape {
		t.Errorf("Expected stop key ESC, got %d", qw.Keys.Stop)
	}
}

func TestLoadProfileRejectsBadKey(t *testing.T) {
	s := config.NewDefaultSettings()
	s.StopKey = "NOT-A-KEY"
	if _, err := LoadProfile(s, ModePlay, nil); err == nil {
		t.Fatal("Expected an error for an unknown stop key")
	}
}
