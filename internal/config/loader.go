package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// LoadFromINI loads settings from path. Missing keys keep their defaults;
// a missing file is an error, use LoadOrDefault to tolerate it.
func LoadFromINI(path string) (*Settings, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	d := NewDefaultSettings()
	s := &Settings{}

	general := cfg.Section("General")
	s.LogLevel = general.Key("logLevel").MustString(d.LogLevel)
	s.LoggingEnabled = general.Key("loggingEnabled").MustBool(d.LoggingEnabled)
	s.LogDir = general.Key("logDir").MustString(d.LogDir)
	s.Database = general.Key("database").MustString(d.Database)
	s.StatusAddr = general.Key("statusAddr").MustString(d.StatusAddr)
	s.Backend = general.Key("backend").MustString(d.Backend)
	s.BrowserURL = general.Key("browserURL").MustString(d.BrowserURL)
	s.Monitor = general.Key("monitor").MustInt(d.Monitor)
	s.StopKey = general.Key("stopKey").MustString(d.StopKey)
	s.RestartKey = general.Key("restartKey").MustString(d.RestartKey)

	capture := cfg.Section("Capture")
	s.AbsModifier = capture.Key("absModifier").MustString(d.AbsModifier)
	s.PollIntervalMs = capture.Key("pollIntervalMs").MustInt(d.PollIntervalMs)
	s.CursorTemplate = capture.Key("cursorTemplate").MustString(d.CursorTemplate)
	s.CursorThreshold = capture.Key("cursorThreshold").MustFloat64(d.CursorThreshold)
	s.CursorRadius = capture.Key("cursorRadius").MustInt(d.CursorRadius)
	s.CursorDetectMs = capture.Key("cursorDetectMs").MustInt(d.CursorDetectMs)
	s.AppendRecordings = capture.Key("append").MustBool(d.AppendRecordings)

	playback := cfg.Section("Playback")
	s.SpinWindowMs = playback.Key("spinWindowMs").MustInt(d.SpinWindowMs)

	hunt := cfg.Section("Hunt")
	s.HuntTargets = hunt.Key("targets").MustString(d.HuntTargets)
	s.HuntBattle = hunt.Key("battle").MustString(d.HuntBattle)
	s.EnemyThreshold = hunt.Key("enemyThreshold").MustFloat64(d.EnemyThreshold)
	s.BattleThreshold = hunt.Key("battleThreshold").MustFloat64(d.BattleThreshold)
	s.ScanIntervalMs = hunt.Key("scanIntervalMs").MustInt(d.ScanIntervalMs)
	s.AttackCooldownMs = hunt.Key("attackCooldownMs").MustInt(d.AttackCooldownMs)
	s.HuntMode = hunt.Key("mode").MustString(d.HuntMode)
	s.MoveSteps = hunt.Key("moveSteps").MustInt(d.MoveSteps)
	s.MoveStepDelayMs = hunt.Key("moveStepDelayMs").MustInt(d.MoveStepDelayMs)

	walk := cfg.Section("QuestWalk")
	s.Marker = walk.Key("marker").MustString(d.Marker)
	s.MarkerThreshold = walk.Key("markerThreshold").MustFloat64(d.MarkerThreshold)
	s.Deadzone = walk.Key("deadzone").MustInt(d.Deadzone)
	s.TickMs = walk.Key("tickMs").MustInt(d.TickMs)
	s.Exclusion = walk.Key("exclusion").MustString(d.Exclusion)
	s.DistanceBox = walk.Key("distanceBox").MustString(d.DistanceBox)
	s.ArriveDistance = walk.Key("arriveDistance").MustInt(d.ArriveDistance)
	s.ResumeDistance = walk.Key("resumeDistance").MustInt(d.ResumeDistance)
	s.OvershootDelta = walk.Key("overshootDelta").MustInt(d.OvershootDelta)
	s.BackPulseMs = walk.Key("backPulseMs").MustInt(d.BackPulseMs)
	s.ForwardKey = walk.Key("forwardKey").MustString(d.ForwardKey)
	s.SprintKey = walk.Key("sprintKey").MustString(d.SprintKey)
	s.LeftKey = walk.Key("leftKey").MustString(d.LeftKey)
	s.RightKey = walk.Key("rightKey").MustString(d.RightKey)
	s.BackKey = walk.Key("backKey").MustString(d.BackKey)

	vision := cfg.Section("Vision")
	s.MatchMethod = vision.Key("method").MustString(d.MatchMethod)
	s.Downsample = vision.Key("downsample").MustInt(d.Downsample)
	s.FrameCacheMs = vision.Key("frameCacheMs").MustInt(d.FrameCacheMs)
	s.TemplatesFile = vision.Key("templates").MustString(d.TemplatesFile)
	s.OCRLanguage = vision.Key("ocrLanguage").MustString(d.OCRLanguage)
	s.OCRUpscale = vision.Key("ocrUpscale").MustInt(d.OCRUpscale)

	s.Clamp()
	return s, nil
}

// LoadOrDefault loads path if it exists and falls back to defaults
// otherwise. The bool reports whether the file was read.
func LoadOrDefault(path string) (*Settings, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewDefaultSettings(), false, nil
	}
	s, err := LoadFromINI(path)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// SaveToINI saves settings to an INI file
func SaveToINI(s *Settings, path string) error {
	cfg := ini.Empty()

	general := cfg.Section("General")
	general.Key("logLevel").SetValue(s.LogLevel)
	general.Key("loggingEnabled").SetValue(fmt.Sprintf("%t", s.LoggingEnabled))
	general.Key("logDir").SetValue(s.LogDir)
	general.Key("database").SetValue(s.Database)
	general.Key("statusAddr").SetValue(s.StatusAddr)
	general.Key("backend").SetValue(s.Backend)
	general.Key("browserURL").SetValue(s.BrowserURL)
	general.Key("monitor").SetValue(fmt.Sprintf("%d", s.Monitor))
	general.Key("stopKey").SetValue(s.StopKey)
	general.Key("restartKey").SetValue(s.RestartKey)

	capture := cfg.Section("Capture")
	capture.Key("absModifier").SetValue(s.AbsModifier)
	capture.Key("pollIntervalMs").SetValue(fmt.Sprintf("%d", s.PollIntervalMs))
	capture.Key("cursorTemplate").SetValue(s.CursorTemplate)
	capture.Key("cursorThreshold").SetValue(fmt.Sprintf("%g", s.CursorThreshold))
	capture.Key("cursorRadius").SetValue(fmt.Sprintf("%d", s.CursorRadius))
	capture.Key("cursorDetectMs").SetValue(fmt.Sprintf("%d", s.CursorDetectMs))
	capture.Key("append").SetValue(fmt.Sprintf("%t", s.AppendRecordings))

	playback := cfg.Section("Playback")
	playback.Key("spinWindowMs").SetValue(fmt.Sprintf("%d", s.SpinWindowMs))

	hunt := cfg.Section("Hunt")
	hunt.Key("targets").SetValue(s.HuntTargets)
	hunt.Key("battle").SetValue(s.HuntBattle)
	hunt.Key("enemyThreshold").SetValue(fmt.Sprintf("%g", s.EnemyThreshold))
	hunt.Key("battleThreshold").SetValue(fmt.Sprintf("%g", s.BattleThreshold))
	hunt.Key("scanIntervalMs").SetValue(fmt.Sprintf("%d", s.ScanIntervalMs))
	hunt.Key("attackCooldownMs").SetValue(fmt.Sprintf("%d", s.AttackCooldownMs))
	hunt.Key("mode").SetValue(s.HuntMode)
	hunt.Key("moveSteps").SetValue(fmt.Sprintf("%d", s.MoveSteps))
	hunt.Key("moveStepDelayMs").SetValue(fmt.Sprintf("%d", s.MoveStepDelayMs))

	walk := cfg.Section("QuestWalk")
	walk.Key("marker").SetValue(s.Marker)
	walk.Key("markerThreshold").SetValue(fmt.Sprintf("%g", s.MarkerThreshold))
	walk.Key("deadzone").SetValue(fmt.Sprintf("%d", s.Deadzone))
	walk.Key("tickMs").SetValue(fmt.Sprintf("%d", s.TickMs))
	walk.Key("exclusion").SetValue(s.Exclusion)
	walk.Key("distanceBox").SetValue(s.DistanceBox)
	walk.Key("arriveDistance").SetValue(fmt.Sprintf("%d", s.ArriveDistance))
	walk.Key("resumeDistance").SetValue(fmt.Sprintf("%d", s.ResumeDistance))
	walk.Key("overshootDelta").SetValue(fmt.Sprintf("%d", s.OvershootDelta))
	walk.Key("backPulseMs").SetValue(fmt.Sprintf("%d", s.BackPulseMs))
	walk.Key("forwardKey").SetValue(s.ForwardKey)
	walk.Key("sprintKey").SetValue(s.SprintKey)
	walk.Key("leftKey").SetValue(s.LeftKey)
	walk.Key("rightKey").SetValue(s.RightKey)
	walk.Key("backKey").SetValue(s.BackKey)

	vision := cfg.Section("Vision")
	vision.Key("method").SetValue(s.MatchMethod)
	vision.Key("downsample").SetValue(fmt.Sprintf("%d", s.Downsample))
	vision.Key("frameCacheMs").SetValue(fmt.Sprintf("%d", s.FrameCacheMs))
	vision.Key("templates").SetValue(s.TemplatesFile)
	vision.Key("ocrLanguage").SetValue(s.OCRLanguage)
	vision.Key("ocrUpscale").SetValue(fmt.Sprintf("%d", s.OCRUpscale))

	return cfg.SaveTo(path)
}
