// Package hunt scans the screen for targets and attacks them until a
// battle starts.
package hunt

import (
	"fmt"
	"strings"
	"time"

	"jordanella.com/rmac/internal/cv"
)

// Mode selects what the controller does with a target.
type Mode int

const (
	// Active moves to and clicks the target.
	Active Mode = iota
	// Passive only reports what it sees.
	Passive
)

func (m Mode) String() string {
	if m == Passive {
		return "passive"
	}
	return "active"
}

// ParseMode accepts "active", "passive" or "scan".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active", "attack":
		return Active, nil
	case "passive", "scan":
		return Passive, nil
	}
	return Active, fmt.Errorf("unknown hunt mode %q", s)
}

// MinScanInterval bounds the frame grab and correlation cost.
const MinScanInterval = 100 * time.Millisecond

// Config is everything needed to (re)launch a hunt.
type Config struct {
	Targets []cv.Template
	// Battle stops the hunt when seen. Optional.
	Battle cv.Template

	EnemyThreshold  float64
	BattleThreshold float64

	ScanInterval   time.Duration
	AttackCooldown time.Duration
	Mode           Mode

	// The pointer reaches a target in MoveSteps moves MoveStepDelay apart.
	MoveSteps     int
	MoveStepDelay time.Duration

	// Standalone hunts run without capture, playback or quest-walk
	// driving the session.
	Standalone bool
}

// DefaultConfig has no templates; callers fill Targets and Battle.
func DefaultConfig() Config {
	return Config{
		EnemyThreshold:  0.8,
		BattleThreshold: 0.85,
		ScanInterval:    250 * time.Millisecond,
		AttackCooldown:  1500 * time.Millisecond,
		Mode:            Active,
		MoveSteps:       12,
		MoveStepDelay:   10 * time.Millisecond,
	}
}

// Clamp applies floors and ranges.
func (c *Config) Clamp() {
	if c.ScanInterval < MinScanInterval {
		c.ScanInterval = MinScanInterval
	}
	if c.AttackCooldown < 0 {
		c.AttackCooldown = 0
	}
	if c.MoveSteps < 1 {
		c.MoveSteps = 1
	}
	if c.MoveStepDelay < 0 {
		c.MoveStepDelay = 0
	}
	c.EnemyThreshold = clamp01(c.EnemyThreshold)
	c.BattleThreshold = clamp01(c.BattleThreshold)
}

// Validate reports a configuration the controller cannot start with.
func (c Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("hunt: no target templates")
	}
	for i, t := range c.Targets {
		if !t.Loaded() {
			return fmt.Errorf("hunt: target %d (%s) has no image", i, t.Name)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
