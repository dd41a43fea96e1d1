//go:build robotgo

package device

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
)

// native drives the local mouse and keyboard through robotgo. robotgo has
// no key-state query, so IsKeyDown is answered from a table fed by the
// capture hook.
type native struct {
	keys KeyState
}

// NewNative returns the robotgo-backed device.
func NewNative(keys KeyState) (Device, error) {
	if keys == nil {
		keys = &KeyTable{}
	}
	return &native{keys: keys}, nil
}

func (n *native) MoveRelative(dx, dy int) error {
	robotgo.MoveRelative(dx, dy)
	return nil
}

func (n *native) MoveAbsolute(nx, ny int) error {
	bounds, err := n.Bounds()
	if err != nil {
		return err
	}
	p := Denormalize(nx, ny, bounds)
	robotgo.Move(p.X, p.Y)
	return nil
}

func (n *native) Wheel(delta int) error {
	// One detent is 120 units; robotgo scrolls in detents.
	robotgo.Scroll(0, delta/120)
	return nil
}

func (n *native) Key(vk int, down bool) error {
	k, ok := LookupKey(vk)
	if !ok {
		return fmt.Errorf("no native name for key 0x%02X", vk)
	}
	robotgo.KeyToggle(k.Name, upDown(down))
	return nil
}

func (n *native) Button(button int, down bool) error {
	var name string
	switch button {
	case ButtonLeft:
		name = "left"
	case ButtonRight:
		name = "right"
	case ButtonMiddle:
		name = "center"
	default:
		return fmt.Errorf("button %d not supported natively", button)
	}
	robotgo.Toggle(name, upDown(down))
	return nil
}

func (n *native) IsKeyDown(vk int) bool { return n.keys.IsKeyDown(vk) }

func (n *native) CursorPos() (image.Point, error) {
	x, y := robotgo.Location()
	return image.Pt(x, y), nil
}

func (n *native) Bounds() (image.Rectangle, error) {
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("screen size %dx%d: %w", w, h, ErrUnavailable)
	}
	return image.Rect(0, 0, w, h), nil
}

func upDown(down bool) string {
	if down {
		return "down"
	}
	return "up"
}
