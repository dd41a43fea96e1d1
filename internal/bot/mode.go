// Package bot runs a session: it resolves settings into unit configs and
// drives capture, playback, hunt and quest-walk together until the
// session's primary unit finishes or the stop key is pressed.
package bot

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is a command: which units run together.
type Mode string

const (
	ModeRecord     Mode = "record"
	ModePlay       Mode = "play"
	ModeHunt       Mode = "hunt"
	ModeQuestWalk  Mode = "questwalk"
	ModeRecordHunt Mode = "record-hunt"
	ModePlayHunt   Mode = "play-hunt"
	ModeFull       Mode = "full"
)

// Modes lists every runnable mode.
var Modes = []Mode{ModeRecord, ModePlay, ModeHunt, ModeQuestWalk, ModeRecordHunt, ModePlayHunt, ModeFull}

// ErrUnknownMode is returned for a mode name that is not in Modes.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode accepts a mode name; "quest-walk" is an alias.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "quest-walk" {
		name = string(ModeQuestWalk)
	}
	for _, m := range Modes {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type units struct {
	capture   bool
	playback  bool
	hunt      bool
	questWalk bool
}

func (m Mode) units() units {
	switch m {
	case ModeRecord:
		return units{capture: true}
	case ModePlay:
		return units{playback: true}
	case ModeHunt:
		return units{hunt: true}
	case ModeQuestWalk:
		return units{questWalk: true}
	case ModeRecordHunt:
		return units{capture: true, hunt: true}
	case ModePlayHunt:
		return units{playback: true, hunt: true}
	case ModeFull:
		return units{capture: true, hunt: true, questWalk: true}
	}
	return units{}
}

// NeedsLog reports whether the mode reads or writes an event log.
func (m Mode) NeedsLog() bool {
	u := m.units()
	return u.capture || u.playback
}

// NeedsVision reports whether the mode matches templates.
func (m Mode) NeedsVision() bool {
	u := m.units()
	return u.hunt || u.questWalk
}

// Records reports whether the mode captures live input.
func (m Mode) Records() bool {
	return m.units().capture
}
