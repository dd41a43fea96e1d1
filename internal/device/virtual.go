package device

import (
	"fmt"
	"image"
	"sync"
	"time"

	"jordanella.com/rmac/internal/logging"
)

// CommandKind names a delivered command.
type CommandKind string

const (
	CmdMoveRelative CommandKind = "move_rel"
	CmdMoveAbsolute CommandKind = "move_abs"
	CmdWheel        CommandKind = "wheel"
	CmdKey          CommandKind = "key"
	CmdButton       CommandKind = "button"
)

// Command is one input delivered to a Virtual device.
type Command struct {
	Kind CommandKind
	A, B int
	Down bool
	At   time.Time
}

func (c Command) String() string {
	switch c.Kind {
	case CmdKey:
		return fmt.Sprintf("key %s down=%t", KeyString(c.A), c.Down)
	case CmdButton:
		return fmt.Sprintf("button %d down=%t", c.A, c.Down)
	case CmdWheel:
		return fmt.Sprintf("wheel %d", c.A)
	default:
		return fmt.Sprintf("%s %d,%d", c.Kind, c.A, c.B)
	}
}

// Virtual is an in-memory device. It keeps a cursor that follows injected
// moves, a key table that follows injected keys, and a log of every command.
// It backs the dry-run backend and stands in for hardware in tests.
type Virtual struct {
	mu       sync.Mutex
	bounds   image.Rectangle
	cursor   image.Point
	keys     KeyTable
	commands []Command
	failWith error
	logger   *logging.Logger
}

// NewVirtual creates a virtual device with the given screen bounds and the
// cursor in the center.
func NewVirtual(bounds image.Rectangle) *Virtual {
	return &Virtual{
		bounds: bounds,
		cursor: image.Pt((bounds.Min.X+bounds.Max.X)/2, (bounds.Min.Y+bounds.Max.Y)/2),
		logger: logging.Discard(),
	}
}

// WithLogger makes the device log every command at debug level.
func (v *Virtual) WithLogger(l *logging.Logger) *Virtual {
	v.logger = l
	return v
}

// FailWith makes every following command fail with err. nil restores success.
func (v *Virtual) FailWith(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failWith = err
}

// PressKey simulates the user holding a key (for stop and trigger keys).
func (v *Virtual) PressKey(vk int, down bool) { v.keys.Set(vk, down) }

// SetCursor moves the cursor without recording a command.
func (v *Virtual) SetCursor(p image.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cursor = p
}

// Commands returns a copy of the delivered commands.
func (v *Virtual) Commands() []Command {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Command(nil), v.commands...)
}

// Reset forgets delivered commands.
func (v *Virtual) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands = nil
}

func (v *Virtual) record(c Command) error {
	if v.failWith != nil {
		return v.failWith
	}
	c.At = time.Now()
	v.commands = append(v.commands, c)
	v.logger.Debug(c.String())
	return nil
}

func (v *Virtual) MoveRelative(dx, dy int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.record(Command{Kind: CmdMoveRelative, A: dx, B: dy}); err != nil {
		return err
	}
	v.cursor = v.cursor.Add(image.Pt(dx, dy))
	return nil
}

func (v *Virtual) MoveAbsolute(nx, ny int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.record(Command{Kind: CmdMoveAbsolute, A: nx, B: ny}); err != nil {
		return err
	}
	v.cursor = Denormalize(nx, ny, v.bounds)
	return nil
}

func (v *Virtual) Wheel(delta int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record(Command{Kind: CmdWheel, A: delta})
}

func (v *Virtual) Key(vk int, down bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.record(Command{Kind: CmdKey, A: vk, Down: down}); err != nil {
		return err
	}
	v.keys.Set(vk, down)
	return nil
}

func (v *Virtual) Button(button int, down bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record(Command{Kind: CmdButton, A: button, Down: down})
}

func (v *Virtual) IsKeyDown(vk int) bool { return v.keys.IsKeyDown(vk) }

func (v *Virtual) CursorPos() (image.Point, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor, nil
}

func (v *Virtual) Bounds() (image.Rectangle, error) {
	return v.bounds, nil
}
