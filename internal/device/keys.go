package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Windows virtual-key codes. The event log stores these values regardless
// of the backend that produced or consumes them.
const (
	VKBack    = 0x08
	VKTab     = 0x09
	VKReturn  = 0x0D
	VKShift   = 0x10
	VKControl = 0x11
	VKMenu    = 0x12 // Alt
	VKPause   = 0x13
	VKEscape  = 0x1B
	VKSpace   = 0x20
	VKLeft    = 0x25
	VKUp      = 0x26
	VKRight   = 0x27
	VKDown    = 0x28
	VKF1      = 0x70
	VKF12     = 0x7B

	// VKFakeExtended is emitted by some keyboard drivers alongside real
	// keys and is never recorded.
	VKFakeExtended = 0xFF
)

// KeyName describes a virtual key for the backends that address keys by name.
type KeyName struct {
	VK      int
	Name    string // settings and robotgo name
	DOMKey  string // KeyboardEvent.key
	DOMCode string // KeyboardEvent.code
}

var keyNames = buildKeyNames()

func buildKeyNames() map[int]KeyName {
	m := map[int]KeyName{
		VKBack:    {VKBack, "backspace", "Backspace", "Backspace"},
		VKTab:     {VKTab, "tab", "Tab", "Tab"},
		VKReturn:  {VKReturn, "enter", "Enter", "Enter"},
		VKShift:   {VKShift, "shift", "Shift", "ShiftLeft"},
		VKControl: {VKControl, "ctrl", "Control", "ControlLeft"},
		VKMenu:    {VKMenu, "alt", "Alt", "AltLeft"},
		VKPause:   {VKPause, "pause", "Pause", "Pause"},
		VKEscape:  {VKEscape, "esc", "Escape", "Escape"},
		VKSpace:   {VKSpace, "space", " ", "Space"},
		VKLeft:    {VKLeft, "left", "ArrowLeft", "ArrowLeft"},
		VKUp:      {VKUp, "up", "ArrowUp", "ArrowUp"},
		VKRight:   {VKRight, "right", "ArrowRight", "ArrowRight"},
		VKDown:    {VKDown, "down", "ArrowDown", "ArrowDown"},
	}
	for c := 'A'; c <= 'Z'; c++ {
		lower := strings.ToLower(string(c))
		m[int(c)] = KeyName{int(c), lower, lower, "Key" + string(c)}
	}
	for c := '0'; c <= '9'; c++ {
		m[int(c)] = KeyName{int(c), string(c), string(c), "Digit" + string(c)}
	}
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("f%d", i+1)
		m[VKF1+i] = KeyName{VKF1 + i, name, strings.ToUpper(name), strings.ToUpper(name)}
	}
	return m
}

// LookupKey returns the names of a virtual key.
func LookupKey(vk int) (KeyName, bool) {
	k, ok := keyNames[vk]
	return k, ok
}

// ParseKey accepts a key name ("esc", "F8", "w"), a hex code ("0x1B")
// or a decimal code ("27").
func ParseKey(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty key")
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		v, err := strconv.ParseInt(lower[2:], 16, 32)
		if err != nil || v < 1 || v > 0xFE {
			return 0, fmt.Errorf("invalid key code %q", s)
		}
		return int(v), nil
	}
	if len(lower) > 1 {
		if v, err := strconv.Atoi(lower); err == nil {
			if v < 1 || v > 0xFE {
				return 0, fmt.Errorf("invalid key code %q", s)
			}
			return v, nil
		}
	}
	switch lower {
	case "escape":
		lower = "esc"
	case "menu":
		lower = "alt"
	case "control":
		lower = "ctrl"
	case "return":
		lower = "enter"
	}
	for vk, k := range keyNames {
		if k.Name == lower {
			return vk, nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// KeyString renders a virtual key for logs and settings files.
func KeyString(vk int) string {
	if k, ok := keyNames[vk]; ok {
		return k.Name
	}
	return fmt.Sprintf("0x%02X", vk)
}
