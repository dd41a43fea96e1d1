package questwalk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/logging"
	"jordanella.com/rmac/internal/ocr"
	"jordanella.com/rmac/internal/session"
)

// Deps are the collaborators of a Controller. Reader may be nil, in which
// case the distance is never known and the walker always walks fast.
type Deps struct {
	Vision *cv.Service
	Device device.Device
	Reader ocr.TextReader
	Flags  *session.Flags
	Status *session.Status
	Bus    events.Publisher
	Logger *logging.Logger
}

// Controller steers towards the marker. Every key it presses goes through
// a KeyHolder so that Run can release all of them on the way out.
type Controller struct {
	cfg  Config
	deps Deps
	keys *device.KeyHolder

	movement atomic.Int32
	steering atomic.Int32
	// distance is -1 until the label has been read.
	distance atomic.Int64
}

func New(cfg Config, deps Deps) (*Controller, error) {
	cfg.Clamp()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Vision == nil || deps.Device == nil {
		return nil, errors.New("questwalk: vision and device are required")
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
	c := &Controller{
		cfg:  cfg,
		deps: deps,
		keys: device.NewKeyHolder(device.NewGuard(deps.Device, deps.Logger, deps.Status)),
	}
	c.distance.Store(-1)
	return c, nil
}

func (c *Controller) Movement() Movement { return Movement(c.movement.Load()) }
func (c *Controller) Steering() Steering { return Steering(c.steering.Load()) }

// Distance returns the last distance read.
func (c *Controller) Distance() Reading {
	d := c.distance.Load()
	if d < 0 {
		return Reading{}
	}
	return Reading{Distance: int(d), Known: true}
}

// HeldKeys lists the keys the walker is holding.
func (c *Controller) HeldKeys() []int { return c.keys.Held() }

// Run walks until ctx ends or the stop key is held. Every held key is
// released before it returns.
func (c *Controller) Run(ctx context.Context) error {
	c.deps.Flags.SetQuestWalking(true)
	defer c.deps.Flags.SetQuestWalking(false)
	defer c.Release()

	c.deps.Logger.InfoWithContext("Quest-walk started", logging.Fields{
		"marker":   c.cfg.Marker.Name,
		"deadzone": c.cfg.Deadzone,
		"tick":     c.cfg.Tick,
	})

	// Unknown distance means walk fast until the first reading.
	c.apply(c.Movement())

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.deps.Logger.Info("Quest-walk stopped")
			return nil
		case <-ticker.C:
			if sk := c.cfg.Keys.Stop; sk != 0 && c.deps.Device.IsKeyDown(sk) {
				c.deps.Logger.Info("Quest-walk stopped by stop key")
				return nil
			}
			c.Tick(ctx)
		}
	}
}

// Release lets go of every key the walker holds.
func (c *Controller) Release() {
	if err := c.keys.ReleaseAll(); err != nil {
		c.deps.Logger.Warn(fmt.Sprintf("questwalk: release failed: %v", err))
	}
	c.steering.Store(int32(Straight))
}

// Tick runs one step and returns the resulting movement. It never blocks
// on the battle flag; while a battle is on, ticks only keep the walker
// paused.
func (c *Controller) Tick(ctx context.Context) Movement {
	cur := c.Movement()

	if c.deps.Flags.BattleStarted() {
		if cur != Paused {
			c.Release()
			c.setMovement(cur, Paused)
		}
		return Paused
	}
	if cur == Paused {
		// A battle restarts the approach from scratch.
		c.distance.Store(-1)
		c.apply(WalkFast)
		c.setMovement(cur, WalkFast)
		return WalkFast
	}

	frame, err := c.deps.Vision.CaptureFrame()
	if err != nil {
		c.deps.Logger.Debug(fmt.Sprintf("questwalk: frame grab failed: %v", err))
		c.steer(Straight)
		return cur
	}

	marker, ok := c.findMarker(frame)
	if !ok {
		// Flicker: stop turning but keep walking.
		c.steer(Straight)
		return cur
	}
	ref := frame.ToScreen(frame.Center())
	c.steer(Steer(marker.Center().X-ref.X, c.cfg.Deadzone))

	prev := c.Distance()
	now := prev
	if d, ok := c.readDistance(marker); ok {
		now = Reading{Distance: d, Known: true}
		c.distance.Store(int64(d))
	}

	dec := Decide(cur, prev, now, c.cfg)
	c.apply(dec.Next)
	c.setMovement(cur, dec.Next)

	c.deps.Status.SetQuestWalk(session.Detection{
		Unit:     "questwalk",
		Template: c.cfg.Marker.Name,
		X:        marker.Center().X,
		Y:        marker.Center().Y,
		Score:    marker.Score,
		Distance: now.Distance,
		State:    dec.Next.String(),
		At:       time.Now(),
	})

	if dec.Overshoot {
		c.deps.Bus.Publish(events.New(events.EventTypeQuestWalkOvershoot, "questwalk", map[string]interface{}{
			"from": prev.Distance,
			"to":   now.Distance,
		}))
		if c.cfg.Keys.Back != 0 {
			if err := c.keys.Pulse(ctx, c.cfg.Keys.Back, c.cfg.BackPulse); err != nil {
				c.deps.Logger.Debug(fmt.Sprintf("questwalk: back pulse failed: %v", err))
			}
		}
	}
	return dec.Next
}

// findMarker returns the marker nearest the frame center in screen
// coordinates, ignoring hits inside the exclusion.
func (c *Controller) findMarker(frame *cv.Frame) (cv.Hit, bool) {
	hits := c.deps.Vision.Matcher().FindAll(frame, c.cfg.Marker, c.cfg.MarkerThreshold)
	for i := range hits {
		hits[i].TopLeft = frame.ToScreen(hits[i].TopLeft)
	}
	return cv.PickNearest(hits, frame.ToScreen(frame.Center()), c.cfg.Exclusion)
}

func (c *Controller) readDistance(marker cv.Hit) (int, bool) {
	if c.deps.Reader == nil || c.cfg.DistanceBox.Empty() {
		return 0, false
	}
	r := marker.Rect()
	anchor := image.Pt((r.Min.X+r.Max.X)/2, r.Max.Y)
	crop, err := c.deps.Vision.CaptureRegion(c.cfg.DistanceBox.Add(anchor))
	if err != nil || crop == nil || crop.Image.Bounds().Empty() {
		return 0, false
	}
	text, err := c.deps.Reader.ReadText(crop.Image)
	if err != nil {
		return 0, false
	}
	return ocr.ParseDistance(text)
}

// apply presses and releases the movement keys for m.
func (c *Controller) apply(m Movement) {
	k := c.cfg.Keys
	switch m {
	case WalkFast:
		c.keys.Hold(k.Forward)
		c.setOptional(k.Sprint, true)
	case WalkSlow:
		c.keys.Hold(k.Forward)
		c.setOptional(k.Sprint, false)
	case Stopped, Paused:
		c.keys.Release(k.Forward)
		c.setOptional(k.Sprint, false)
	}
}

func (c *Controller) steer(s Steering) {
	k := c.cfg.Keys
	c.setOptional(k.Left, s == SteerLeft)
	c.setOptional(k.Right, s == SteerRight)
	c.steering.Store(int32(s))
}

func (c *Controller) setOptional(vk int, down bool) {
	if vk != 0 {
		c.keys.Set(vk, down)
	}
}

func (c *Controller) setMovement(from, to Movement) {
	if from == to {
		return
	}
	c.movement.Store(int32(to))
	c.deps.Logger.DebugWithContext("questwalk state", logging.Fields{"from": from.String(), "to": to.String()})
	c.deps.Bus.Publish(events.New(events.EventTypeQuestWalkStateChanged, "questwalk", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	}))
	if to == Stopped {
		c.deps.Bus.Publish(events.New(events.EventTypeQuestWalkArrived, "questwalk", map[string]interface{}{
			"distance": c.Distance().Distance,
		}))
	}
}
