package browser

import (
	"fmt"
	"image"

	"github.com/chromedp/cdproto/input"

	"jordanella.com/rmac/internal/device"
)

// DevTools pressed-buttons bits.
var buttonBits = map[int]int64{
	device.ButtonLeft:   1,
	device.ButtonRight:  2,
	device.ButtonMiddle: 4,
	device.ButtonX1:     8,
	device.ButtonX2:     16,
}

var buttonNames = map[int]input.MouseButton{
	device.ButtonLeft:   input.Left,
	device.ButtonRight:  input.Right,
	device.ButtonMiddle: input.Middle,
	device.ButtonX1:     input.Back,
	device.ButtonX2:     input.Forward,
}

func (b *Browser) viewport() image.Rectangle {
	return image.Rect(0, 0, b.opts.Width, b.opts.Height)
}

// MoveRelative moves the page's synthetic cursor. The page has no real
// pointer, so the position is tracked here and clamped to the viewport.
func (b *Browser) MoveRelative(dx, dy int) error {
	b.mu.Lock()
	p := clampPoint(b.cursor.Add(image.Pt(dx, dy)), b.viewport())
	b.cursor = p
	buttons := b.buttons
	b.mu.Unlock()
	return b.mouseMoved(p, buttons)
}

func (b *Browser) MoveAbsolute(nx, ny int) error {
	p := device.Denormalize(nx, ny, b.viewport())
	b.mu.Lock()
	b.cursor = p
	buttons := b.buttons
	b.mu.Unlock()
	return b.mouseMoved(p, buttons)
}

func (b *Browser) mouseMoved(p image.Point, buttons int64) error {
	return b.run(input.DispatchMouseEvent(input.MouseMoved, float64(p.X), float64(p.Y)).
		WithButtons(buttons))
}

// Wheel scrolls at the cursor. Positive log deltas scroll up, DOM deltas
// the other way round.
func (b *Browser) Wheel(delta int) error {
	p, _ := b.CursorPos()
	return b.run(input.DispatchMouseEvent(input.MouseWheel, float64(p.X), float64(p.Y)).
		WithDeltaX(0).
		WithDeltaY(float64(-delta)))
}

func (b *Browser) Button(button int, down bool) error {
	name, ok := buttonNames[button]
	if !ok {
		return fmt.Errorf("browser: unknown button %d", button)
	}

	b.mu.Lock()
	if down {
		b.buttons |= buttonBits[button]
	} else {
		b.buttons &^= buttonBits[button]
	}
	p, buttons := b.cursor, b.buttons
	b.mu.Unlock()

	typ := input.MouseReleased
	if down {
		typ = input.MousePressed
	}
	return b.run(input.DispatchMouseEvent(typ, float64(p.X), float64(p.Y)).
		WithButton(name).
		WithButtons(buttons).
		WithClickCount(1))
}

func (b *Browser) Key(vk int, down bool) error {
	k, ok := device.LookupKey(vk)
	if !ok {
		return fmt.Errorf("browser: no DOM name for key 0x%02X", vk)
	}
	b.own.Set(vk, down)

	ev := input.DispatchKeyEvent(input.KeyUp)
	if down {
		ev = input.DispatchKeyEvent(input.KeyDown)
		if len([]rune(k.DOMKey)) == 1 {
			ev = ev.WithText(k.DOMKey)
		}
	}
	return b.run(ev.
		WithKey(k.DOMKey).
		WithCode(k.DOMCode).
		WithWindowsVirtualKeyCode(int64(vk)).
		WithNativeVirtualKeyCode(int64(vk)))
}

func (b *Browser) IsKeyDown(vk int) bool {
	return b.keys.IsKeyDown(vk)
}

// CursorPos is the last dispatched pointer position in viewport coordinates.
func (b *Browser) CursorPos() (image.Point, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor, nil
}

func (b *Browser) Bounds() (image.Rectangle, error) {
	return b.viewport(), nil
}

func clampPoint(p image.Point, r image.Rectangle) image.Point {
	p.X = min(max(p.X, r.Min.X), r.Max.X-1)
	p.Y = min(max(p.Y, r.Min.Y), r.Max.Y-1)
	return p
}
