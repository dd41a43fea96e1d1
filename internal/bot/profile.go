package bot

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jordanella.com/rmac/internal/capture"
	"jordanella.com/rmac/internal/config"
	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/hunt"
	"jordanella.com/rmac/internal/playback"
	"jordanella.com/rmac/internal/questwalk"
	"jordanella.com/rmac/pkg/templates"
)

// Profile is Settings resolved for one mode: keys parsed, regions parsed
// and the templates the mode needs loaded.
type Profile struct {
	StopKey    int
	RestartKey int

	Capture   capture.Options
	Playback  playback.Options
	Hunt      hunt.Config
	QuestWalk questwalk.Config
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// LoadProfile resolves s for mode. Template paths are only loaded when
// the mode uses them, so recording never needs hunt images.
func LoadProfile(s *config.Settings, mode Mode, loader *templates.Loader) (*Profile, error) {
	if loader == nil {
		loader = templates.NewLoader(nil)
	}
	u := mode.units()
	if u == (units{}) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	stop, err := device.ParseKey(s.StopKey)
	if err != nil {
		return nil, fmt.Errorf("stop key: %w", err)
	}
	p := &Profile{StopKey: stop}
	if s.RestartKey != "" {
		if p.RestartKey, err = device.ParseKey(s.RestartKey); err != nil {
			return nil, fmt.Errorf("restart key: %w", err)
		}
	}

	if u.capture {
		if p.Capture, err = captureOptions(s, stop, loader); err != nil {
			return nil, err
		}
	}
	p.Playback = playback.Options{StopKey: stop, SpinWindow: ms(s.SpinWindowMs)}

	if u.hunt {
		if p.Hunt, err = huntConfig(s, loader); err != nil {
			return nil, err
		}
		p.Hunt.Standalone = mode == ModeHunt
	}
	if u.questWalk {
		if p.QuestWalk, err = questWalkConfig(s, stop, loader); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func captureOptions(s *config.Settings, stop int, loader *templates.Loader) (capture.Options, error) {
	abs := capture.DefaultAbsModeConfig()
	abs.PollInterval = ms(s.PollIntervalMs)
	abs.DetectInterval = ms(s.CursorDetectMs)
	abs.CursorThreshold = s.CursorThreshold
	abs.CursorRadius = s.CursorRadius

	if s.AbsModifier != "" && !strings.EqualFold(s.AbsModifier, "none") {
		vk, err := device.ParseKey(s.AbsModifier)
		if err != nil {
			return capture.Options{}, fmt.Errorf("absolute mode modifier: %w", err)
		}
		abs.ModifierKey = vk
	}
	if s.CursorTemplate != "" {
		set, err := loader.Load(resolveTemplate(s.CursorTemplate, s.TemplatesFile), s.CursorThreshold)
		if err != nil {
			return capture.Options{}, err
		}
		abs.Cursor = set.First()
	}
	return capture.Options{StopKey: stop, AbsMode: abs}, nil
}

func huntConfig(s *config.Settings, loader *templates.Loader) (hunt.Config, error) {
	cfg := hunt.DefaultConfig()
	cfg.EnemyThreshold = s.EnemyThreshold
	cfg.BattleThreshold = s.BattleThreshold
	cfg.ScanInterval = ms(s.ScanIntervalMs)
	cfg.AttackCooldown = ms(s.AttackCooldownMs)
	cfg.MoveSteps = s.MoveSteps
	cfg.MoveStepDelay = ms(s.MoveStepDelayMs)

	mode, err := hunt.ParseMode(s.HuntMode)
	if err != nil {
		return hunt.Config{}, err
	}
	cfg.Mode = mode

	if s.HuntTargets == "" {
		return hunt.Config{}, fmt.Errorf("hunt: no target templates configured")
	}
	targets, err := loader.Load(resolveTemplate(s.HuntTargets, s.TemplatesFile), s.EnemyThreshold)
	if err != nil {
		return hunt.Config{}, err
	}
	cfg.Targets = targets.Templates

	if s.HuntBattle != "" {
		battle, err := loader.Load(resolveTemplate(s.HuntBattle, s.TemplatesFile), s.BattleThreshold)
		if err != nil {
			return hunt.Config{}, err
		}
		cfg.Battle = battle.First()
	}

	cfg.Clamp()
	return cfg, cfg.Validate()
}

func questWalkConfig(s *config.Settings, stop int, loader *templates.Loader) (questwalk.Config, error) {
	cfg := questwalk.DefaultConfig()
	cfg.MarkerThreshold = s.MarkerThreshold
	cfg.Deadzone = s.Deadzone
	cfg.Tick = ms(s.TickMs)
	cfg.ArriveDistance = s.ArriveDistance
	cfg.ResumeDistance = s.ResumeDistance
	cfg.OvershootDelta = s.OvershootDelta
	cfg.BackPulse = ms(s.BackPulseMs)

	if s.Marker == "" {
		return questwalk.Config{}, fmt.Errorf("questwalk: no marker template configured")
	}
	marker, err := loader.Load(resolveTemplate(s.Marker, s.TemplatesFile), s.MarkerThreshold)
	if err != nil {
		return questwalk.Config{}, err
	}
	cfg.Marker = marker.First()

	if s.Exclusion != "" {
		r, err := cv.ParseRegion(s.Exclusion)
		if err != nil {
			return questwalk.Config{}, fmt.Errorf("questwalk exclusion: %w", err)
		}
		cfg.Exclusion = r.ToImageRectangle()
	}
	if s.DistanceBox != "" {
		r, err := cv.ParseRegion(s.DistanceBox)
		if err != nil {
			return questwalk.Config{}, fmt.Errorf("questwalk distance box: %w", err)
		}
		cfg.DistanceBox = image.Rect(r.X1, r.Y1, r.X2, r.Y2)
	}

	keys := questwalk.Keys{Stop: stop}
	for _, k := range []struct {
		name string
		raw  string
		dst  *int
	}{
		{"forward", s.ForwardKey, &keys.Forward},
		{"sprint", s.SprintKey, &keys.Sprint},
		{"left", s.LeftKey, &keys.Left},
		{"right", s.RightKey, &keys.Right},
		{"back", s.BackKey, &keys.Back},
	} {
		if k.raw == "" || strings.EqualFold(k.raw, "none") {
			continue
		}
		vk, err := device.ParseKey(k.raw)
		if err != nil {
			return questwalk.Config{}, fmt.Errorf("questwalk %s key: %w", k.name, err)
		}
		*k.dst = vk
	}
	cfg.Keys = keys

	cfg.Clamp()
	return cfg, cfg.Validate()
}

// resolveTemplate maps a bare set name to an entry of the templates file.
// Paths that exist on disk, carry an extension or already name a YAML set
// are used as they are.
func resolveTemplate(path, templatesFile string) string {
	if templatesFile == "" || strings.Contains(path, "#") || filepath.Ext(path) != "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return templatesFile + "#" + path
}

// NewCorrelator builds the matching primitive named by the settings.
// "opencv" needs a build with the gocv tag and otherwise falls back to the
// pure-Go correlator.
func NewCorrelator(s *config.Settings) (cv.Correlator, error) {
	if strings.EqualFold(strings.TrimSpace(s.MatchMethod), "opencv") {
		return cv.OpenCV{}, nil
	}
	method, err := cv.ParseMatchMethod(s.MatchMethod)
	if err != nil {
		return nil, err
	}
	if method == cv.MatchMethodGrayNCC {
		return &cv.GrayNCC{Downsample: s.Downsample}, nil
	}
	return cv.NewCorrelator(method), nil
}
