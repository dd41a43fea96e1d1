package device

import (
	"fmt"

	"jordanella.com/rmac/internal/logging"
)

// FailureCounter receives a tick for every failed injection.
type FailureCounter interface {
	InjectFailed()
}

// Guard wraps an Injector so that failed commands are logged and counted.
// The error is still returned; callers treat it as non-fatal.
type Guard struct {
	inj     Injector
	logger  *logging.Logger
	counter FailureCounter
}

// NewGuard wraps inj. counter may be nil.
func NewGuard(inj Injector, logger *logging.Logger, counter FailureCounter) *Guard {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Guard{inj: inj, logger: logger, counter: counter}
}

func (g *Guard) check(op string, err error) error {
	if err == nil {
		return nil
	}
	g.logger.Warn(fmt.Sprintf("injection failed: %s: %v", op, err))
	if g.counter != nil {
		g.counter.InjectFailed()
	}
	return err
}

func (g *Guard) MoveRelative(dx, dy int) error {
	return g.check(fmt.Sprintf("move %d,%d", dx, dy), g.inj.MoveRelative(dx, dy))
}

func (g *Guard) MoveAbsolute(nx, ny int) error {
	return g.check(fmt.Sprintf("move to %d,%d", nx, ny), g.inj.MoveAbsolute(nx, ny))
}

func (g *Guard) Wheel(delta int) error {
	return g.check(fmt.Sprintf("wheel %d", delta), g.inj.Wheel(delta))
}

func (g *Guard) Key(vk int, down bool) error {
	return g.check(fmt.Sprintf("key %s down=%t", KeyString(vk), down), g.inj.Key(vk, down))
}

func (g *Guard) Button(button int, down bool) error {
	return g.check(fmt.Sprintf("button %d down=%t", button, down), g.inj.Button(button, down))
}
