// Package playback replays an event log through an input device with the
// recorded timing.
package playback

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sort"
	"time"

	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/eventlog"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/logging"
	"jordanella.com/rmac/internal/session"
)

const (
	// DefaultSpinWindow is how long before a deadline the player stops
	// sleeping and yields in a loop instead.
	DefaultSpinWindow = 2 * time.Millisecond
	// stopPollSlice bounds how long a single wait goes without looking at
	// the stop key.
	stopPollSlice = 50 * time.Millisecond
)

// Options configure a Player.
type Options struct {
	StopKey    int
	SpinWindow time.Duration
}

// Deps are the device and reporting collaborators of a Player.
type Deps struct {
	Device device.Device
	Flags  *session.Flags
	Status *session.Status
	Bus    events.Publisher
	Logger *logging.Logger
}

// Result summarizes one playback.
type Result struct {
	Events   int // records dispatched
	Skipped  int // unknown record types
	Failed   int // commands the device rejected
	Stopped  bool
	Duration time.Duration
}

// Player injects recorded events.
type Player struct {
	opts   Options
	deps   Deps
	inj    *device.Guard
	failed int

	heldKeys    map[int]bool
	heldButtons map[int]bool
}

// NewPlayer builds a player on deps.Device.
func NewPlayer(opts Options, deps Deps) *Player {
	if opts.StopKey == 0 {
		opts.StopKey = device.VKEscape
	}
	if opts.SpinWindow <= 0 {
		opts.SpinWindow = DefaultSpinWindow
	}
	if deps.Flags == nil {
		deps.Flags = &session.Flags{}
	}
	if deps.Status == nil {
		deps.Status = &session.Status{}
	}
	if deps.Bus == nil {
		deps.Bus = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	p := &Player{opts: opts, deps: deps}
	p.inj = device.NewGuard(deps.Device, deps.Logger, p)
	return p
}

// InjectFailed counts a rejected command for the current run.
func (p *Player) InjectFailed() {
	p.failed++
	p.deps.Status.InjectFailed()
}

// PlayFile reads the whole log before touching the device, so a damaged
// file fails without side effects.
func (p *Player) PlayFile(ctx context.Context, path string) (Result, error) {
	_, evs, err := eventlog.ReadAll(path)
	if err != nil {
		return Result{}, err
	}
	p.deps.Logger.InfoWithContext("Playing log", logging.Fields{"path": path, "events": len(evs)})
	return p.Play(ctx, evs)
}

// Play dispatches evs at start+TUs each, measured from a single monotonic
// start so that sleep overshoot never accumulates. It returns early when
// the stop key is down or ctx ends. However it ends, every key and button
// still pressed by the log is released.
func (p *Player) Play(ctx context.Context, evs []eventlog.Event) (Result, error) {
	bounds, err := p.deps.Device.Bounds()
	if err != nil {
		return Result{}, fmt.Errorf("playback: screen bounds: %w", err)
	}

	p.failed = 0
	p.heldKeys = make(map[int]bool)
	p.heldButtons = make(map[int]bool)

	p.deps.Flags.SetPlaying(true)
	defer p.deps.Flags.SetPlaying(false)

	var res Result
	start := time.Now()

loop:
	for _, e := range evs {
		if !p.waitUntil(ctx, start.Add(time.Duration(e.TUs)*time.Microsecond)) {
			res.Stopped = true
			break loop
		}
		if ctx.Err() != nil || p.deps.Device.IsKeyDown(p.opts.StopKey) {
			res.Stopped = true
			break loop
		}
		if !e.Type.Known() {
			res.Skipped++
			continue
		}
		p.dispatch(e, bounds)
		p.deps.Status.RecordEvent(e.Type.String())
		res.Events++
	}

	// A log may end with input still down; never leave it pressed.
	p.releaseHeld()
	res.Failed = p.failed
	res.Duration = time.Since(start)

	p.deps.Logger.InfoWithContext("Playback finished", logging.Fields{
		"events":  res.Events,
		"skipped": res.Skipped,
		"failed":  res.Failed,
		"stopped": res.Stopped,
	})
	p.deps.Bus.Publish(events.New(events.EventTypePlaybackCompleted, "playback", map[string]interface{}{
		"events":   res.Events,
		"failed":   res.Failed,
		"stopped":  res.Stopped,
		"duration": res.Duration.String(),
	}))
	return res, nil
}

// waitUntil sleeps until just before deadline and yields for the rest.
// It returns false if ctx ended or the stop key went down while waiting.
func (p *Player) waitUntil(ctx context.Context, deadline time.Time) bool {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining <= p.opts.SpinWindow {
			for time.Now().Before(deadline) {
				runtime.Gosched()
			}
			return true
		}

		nap := min(remaining-p.opts.SpinWindow, stopPollSlice)
		t := time.NewTimer(nap)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if nap == stopPollSlice && p.deps.Device.IsKeyDown(p.opts.StopKey) {
			return false
		}
	}
}

// dispatch sends one record. Failures are already logged and counted by
// the guard.
func (p *Player) dispatch(e eventlog.Event, bounds image.Rectangle) {
	switch e.Type {
	case eventlog.MouseMoveRel:
		p.inj.MoveRelative(int(e.A), int(e.B))
	case eventlog.MousePosAbs:
		nx, ny := device.Normalize(image.Pt(int(e.A), int(e.B)), bounds)
		p.inj.MoveAbsolute(nx, ny)
	case eventlog.MouseWheel:
		p.inj.Wheel(int(e.A))
	case eventlog.KeyDown:
		if p.inj.Key(int(e.A), true) == nil {
			p.heldKeys[int(e.A)] = true
		}
	case eventlog.KeyUp:
		p.inj.Key(int(e.A), false)
		delete(p.heldKeys, int(e.A))
	case eventlog.MouseButton:
		down := e.B != 0
		if p.inj.Button(int(e.A), down) == nil && down {
			p.heldButtons[int(e.A)] = true
		} else if !down {
			delete(p.heldButtons, int(e.A))
		}
	}
}

func (p *Player) releaseHeld() {
	for _, vk := range sortedKeys(p.heldKeys) {
		p.inj.Key(vk, false)
	}
	for _, b := range sortedKeys(p.heldButtons) {
		p.inj.Button(b, false)
	}
	p.heldKeys = map[int]bool{}
	p.heldButtons = map[int]bool{}
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
