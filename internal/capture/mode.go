package capture

import "sync/atomic"

// PointerMode decides how pointer motion is recorded.
type PointerMode int

const (
	// Relative records raw motion deltas.
	Relative PointerMode = iota
	// AbsoluteModifier records positions while the modifier key is held.
	AbsoluteModifier
	// AbsoluteVision records positions while a cursor is visible on screen.
	AbsoluteVision
)

func (m PointerMode) String() string {
	switch m {
	case AbsoluteModifier:
		return "absolute-modifier"
	case AbsoluteVision:
		return "absolute-vision"
	default:
		return "relative"
	}
}

// Absolute reports whether positions rather than deltas are recorded.
func (m PointerMode) Absolute() bool {
	return m != Relative
}

// ModeSelector resolves the inputs that pick a pointer mode into exactly
// one mode. The modifier wins when both apply.
type ModeSelector struct {
	modifierHeld  atomic.Bool
	cursorVisible atomic.Bool
}

func (s *ModeSelector) SetModifier(held bool)     { s.modifierHeld.Store(held) }
func (s *ModeSelector) SetCursorVisible(vis bool) { s.cursorVisible.Store(vis) }

func (s *ModeSelector) Mode() PointerMode {
	switch {
	case s.modifierHeld.Load():
		return AbsoluteModifier
	case s.cursorVisible.Load():
		return AbsoluteVision
	default:
		return Relative
	}
}
