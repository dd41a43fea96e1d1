//go:build robotgo

package capture

import (
	"context"
	"sync"

	hook "github.com/robotn/gohook"

	"jordanella.com/rmac/internal/device"
)

// gohook delivers one process-wide stream; only one NativeSource may be
// streaming at a time, which is why callers share it through a Hub.
var hookMu sync.Mutex

type nativeSource struct{}

// NewNativeSource returns the global keyboard and mouse hook. Key codes are
// the platform raw codes, which are virtual-key codes on Windows.
func NewNativeSource() (Source, error) {
	return nativeSource{}, nil
}

func (nativeSource) Stream(ctx context.Context, emit func(Notification) error) error {
	if !hookMu.TryLock() {
		return device.ErrUnavailable
	}
	defer hookMu.Unlock()

	evs := hook.Start()
	defer hook.End()

	var last struct {
		x, y int
		ok   bool
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, open := <-evs:
			if !open {
				return ErrSourceClosed
			}
			var n Notification
			switch ev.Kind {
			case hook.KeyHold:
				n = KeyNote(int(ev.Rawcode), true)
			case hook.KeyUp:
				n = KeyNote(int(ev.Rawcode), false)
			case hook.MouseHold:
				n = ButtonNote(buttonFromHook(ev.Button), true)
			case hook.MouseUp:
				n = ButtonNote(buttonFromHook(ev.Button), false)
			case hook.MouseWheel:
				if ev.Rotation == 0 {
					continue
				}
				// Positive rotation scrolls towards the user.
				delta := 120
				if ev.Rotation > 0 {
					delta = -120
				}
				n = WheelNote(delta)
			case hook.MouseMove, hook.MouseDrag:
				x, y := int(ev.X), int(ev.Y)
				if !last.ok {
					last.x, last.y, last.ok = x, y, true
					continue
				}
				n = MotionNote(x-last.x, y-last.y)
				last.x, last.y = x, y
			default:
				continue
			}
			if n.Kind == ButtonPress && n.Button == 0 {
				continue
			}
			if err := emit(n); err != nil {
				return err
			}
		}
	}
}

// gohook numbers left, right and middle as 1, 2, 3 and has no side buttons.
func buttonFromHook(b uint16) int {
	switch b {
	case 1:
		return device.ButtonLeft
	case 2:
		return device.ButtonRight
	case 3:
		return device.ButtonMiddle
	}
	return 0
}
