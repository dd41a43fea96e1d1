// Package config loads rmac settings from Settings.ini.
package config

// Settings is the flat, file-level configuration. Durations are kept in
// the milliseconds the ini file uses; keys and regions stay as text and
// are parsed where they are used.
type Settings struct {
	// [General]
	LogLevel       string
	LoggingEnabled bool
	LogDir         string
	Database       string
	StatusAddr     string
	Backend        string // native, virtual or browser
	BrowserURL     string
	Monitor        int
	StopKey        string
	RestartKey     string

	// [Capture]
	AbsModifier      string
	PollIntervalMs   int
	CursorTemplate   string
	CursorThreshold  float64
	CursorRadius     int
	CursorDetectMs   int
	AppendRecordings bool

	// [Playback]
	SpinWindowMs int

	// [Hunt]
	HuntTargets      string
	HuntBattle       string
	EnemyThreshold   float64
	BattleThreshold  float64
	ScanIntervalMs   int
	AttackCooldownMs int
	HuntMode         string
	MoveSteps        int
	MoveStepDelayMs  int

	// [QuestWalk]
	Marker          string
	MarkerThreshold float64
	Deadzone        int
	TickMs          int
	Exclusion       string
	DistanceBox     string
	ArriveDistance  int
	ResumeDistance  int
	OvershootDelta  int
	BackPulseMs     int
	ForwardKey      string
	SprintKey       string
	LeftKey         string
	RightKey        string
	BackKey         string

	// [Vision]
	MatchMethod   string
	Downsample    int
	FrameCacheMs  int
	TemplatesFile string
	OCRLanguage   string
	OCRUpscale    int
}

// NewDefaultSettings returns the settings used when no file is present.
func NewDefaultSettings() *Settings {
	return &Settings{
		LogLevel:       "INFO",
		LoggingEnabled: true,
		LogDir:         "logs",
		Database:       "rmac.db",
		Backend:        "native",
		Monitor:        0,
		StopKey:        "ESC",
		RestartKey:     "F8",

		AbsModifier:     "ALT",
		PollIntervalMs:  8,
		CursorThreshold: 0.8,
		CursorRadius:    48,
		CursorDetectMs:  100,

		SpinWindowMs: 2,

		EnemyThreshold:   0.8,
		BattleThreshold:  0.85,
		ScanIntervalMs:   250,
		AttackCooldownMs: 1500,
		HuntMode:         "active",
		MoveSteps:        12,
		MoveStepDelayMs:  10,

		MarkerThreshold: 0.8,
		Deadzone:        40,
		TickMs:          100,
		DistanceBox:     "-40,2,40,26",
		ArriveDistance:  3,
		ResumeDistance:  5,
		OvershootDelta:  2,
		BackPulseMs:     250,
		ForwardKey:      "W",
		SprintKey:       "SHIFT",
		LeftKey:         "A",
		RightKey:        "D",
		BackKey:         "S",

		MatchMethod:  "gray-ncc",
		Downsample:   1,
		FrameCacheMs: 40,
		OCRLanguage:  "eng",
		OCRUpscale:   3,
	}
}

// Floors applied by Clamp.
const (
	MinScanIntervalMs = 100
	MinTickMs         = 20
	MinPollIntervalMs = 1
	MinDetectMs       = 20
)

// Clamp forces every numeric setting into its sane range: interval floors
// and thresholds within 0..1.
func (s *Settings) Clamp() {
	s.ScanIntervalMs = max(s.ScanIntervalMs, MinScanIntervalMs)
	s.TickMs = max(s.TickMs, MinTickMs)
	s.PollIntervalMs = max(s.PollIntervalMs, MinPollIntervalMs)
	s.CursorDetectMs = max(s.CursorDetectMs, MinDetectMs)
	s.AttackCooldownMs = max(s.AttackCooldownMs, 0)
	s.MoveSteps = max(s.MoveSteps, 1)
	s.MoveStepDelayMs = max(s.MoveStepDelayMs, 0)
	s.BackPulseMs = max(s.BackPulseMs, 0)
	s.SpinWindowMs = max(s.SpinWindowMs, 0)
	s.FrameCacheMs = max(s.FrameCacheMs, 0)
	s.Deadzone = max(s.Deadzone, 0)
	s.CursorRadius = max(s.CursorRadius, 4)
	s.Downsample = max(s.Downsample, 1)
	s.OCRUpscale = max(s.OCRUpscale, 1)
	s.Monitor = max(s.Monitor, 0)
	s.OvershootDelta = max(s.OvershootDelta, 0)
	s.ResumeDistance = max(s.ResumeDistance, s.ArriveDistance)

	s.CursorThreshold = clampUnit(s.CursorThreshold)
	s.EnemyThreshold = clampUnit(s.EnemyThreshold)
	s.BattleThreshold = clampUnit(s.BattleThreshold)
	s.MarkerThreshold = clampUnit(s.MarkerThreshold)
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
