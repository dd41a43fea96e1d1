// Package session holds the state shared by the units of one run.
package session

import "sync/atomic"

// Flags are the cross-unit coordination bits. Each flag has exactly one
// writer: capture sets Recording, playback sets Playing, quest-walk sets
// QuestWalking, and the hunt controller (or the restart trigger) sets
// BattleStarted. Every unit may read any flag.
type Flags struct {
	recording     atomic.Bool
	playing       atomic.Bool
	questWalking  atomic.Bool
	battleStarted atomic.Bool
}

func (f *Flags) Recording() bool     { return f.recording.Load() }
func (f *Flags) Playing() bool       { return f.playing.Load() }
func (f *Flags) QuestWalking() bool  { return f.questWalking.Load() }
func (f *Flags) BattleStarted() bool { return f.battleStarted.Load() }

func (f *Flags) SetRecording(v bool)     { f.recording.Store(v) }
func (f *Flags) SetPlaying(v bool)       { f.playing.Store(v) }
func (f *Flags) SetQuestWalking(v bool)  { f.questWalking.Store(v) }
func (f *Flags) SetBattleStarted(v bool) { f.battleStarted.Store(v) }

// Driving reports whether anything is currently moving the character,
// which is when the hunt controller is allowed to scan.
func (f *Flags) Driving() bool {
	return f.Recording() || f.Playing() || f.QuestWalking()
}

// Snapshot is a copy of the flags for display.
type Snapshot struct {
	Recording     bool `json:"recording"`
	Playing       bool `json:"playing"`
	QuestWalking  bool `json:"quest_walking"`
	BattleStarted bool `json:"battle_started"`
}

func (f *Flags) Snapshot() Snapshot {
	return Snapshot{
		Recording:     f.Recording(),
		Playing:       f.Playing(),
		QuestWalking:  f.QuestWalking(),
		BattleStarted: f.BattleStarted(),
	}
}
