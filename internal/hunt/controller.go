package hunt

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
	"jordanella.com/rmac/internal/session"
)

// State is the controller's position in its state machine.
type State int32

const (
	Idle State = iota
	Scanning
	Attacking
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Attacking:
		return "attacking"
	default:
		return "idle"
	}
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Vision *cv.Service
	Device device.Device
	Flags  *session.Flags
	Status *session.Status
	Bus    events.Publisher
	Logger *logging.Logger
}

// Controller runs the hunt loop. A battle sighting is terminal: the
// controller goes Idle and stays there until a new one is launched.
type Controller struct {
	cfg     Config
	deps    Deps
	inj     *device.Guard
	metrics *Metrics

	state      atomic.Int32
	battle     atomic.Bool
	lastAttack time.Time
}

// New validates cfg and builds an idle controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	cfg.Clamp()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Vision == nil || deps.Device == nil {
		return nil, errors.New("hunt: vision and device are required")
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
	return &Controller{
		cfg:     cfg,
		deps:    deps,
		inj:     device.NewGuard(deps.Device, deps.Logger, deps.Status),
		metrics: NewMetrics(),
	}, nil
}

// Config returns the clamped configuration, used to relaunch the hunt.
func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) State() State { return State(c.state.Load()) }

// BattleDetected reports whether the hunt ended on the battle template.
func (c *Controller) BattleDetected() bool { return c.battle.Load() }

func (c *Controller) Metrics() Snapshot { return c.metrics.Snapshot() }

func (c *Controller) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		c.deps.Logger.Debug(fmt.Sprintf("hunt state -> %s", s))
	}
}

// Run ticks every ScanInterval until ctx ends or a battle is seen.
func (c *Controller) Run(ctx context.Context) error {
	c.setState(Scanning)
	c.deps.Logger.InfoWithContext("Hunt started", logging.Fields{
		"targets":  len(c.cfg.Targets),
		"mode":     c.cfg.Mode.String(),
		"interval": c.cfg.ScanInterval,
	})

	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.setState(Idle)
			c.deps.Logger.Info("Hunt stopped")
			return nil
		case now := <-ticker.C:
			if c.Tick(ctx, now) == Idle && c.BattleDetected() {
				return nil
			}
		}
	}
}

// Tick runs one scan at now and returns the state it left the controller
// in. Nothing is grabbed while no unit drives the session, unless the hunt
// is standalone.
func (c *Controller) Tick(ctx context.Context, now time.Time) State {
	if c.BattleDetected() {
		return Idle
	}
	if !c.cfg.Standalone && !c.deps.Flags.Driving() {
		return c.State()
	}

	started := time.Now()
	frame, err := c.deps.Vision.CaptureFrame()
	if err != nil {
		c.deps.Logger.Debug(fmt.Sprintf("hunt: frame grab failed: %v", err))
		return c.State()
	}
	m := c.deps.Vision.Matcher()

	if c.cfg.Battle.Loaded() {
		if hit, ok := m.Best(frame, c.cfg.Battle); ok && hit.Score >= c.cfg.BattleThreshold {
			c.metrics.RecordScan(time.Since(started), true)
			c.onBattle(frame, hit, now)
			return Idle
		}
	}

	hit, idx, ok := m.FindBest(frame, c.cfg.Targets, c.cfg.EnemyThreshold)
	c.metrics.RecordScan(time.Since(started), ok)
	if !ok {
		c.setState(Scanning)
		return Scanning
	}

	target := frame.ToScreen(hit.Center())
	name := c.cfg.Targets[idx].Name
	c.deps.Status.SetHunt(session.Detection{
		Unit: "hunt", Template: name, X: target.X, Y: target.Y,
		Score: hit.Score, State: Scanning.String(), At: now,
	})
	c.deps.Bus.Publish(events.New(events.EventTypeHuntTargetFound, "hunt", map[string]interface{}{
		"template": name,
		"x":        target.X,
		"y":        target.Y,
		"score":    hit.Score,
	}))

	if c.cfg.Mode == Passive {
		c.setState(Scanning)
		return Scanning
	}
	if !c.lastAttack.IsZero() && now.Sub(c.lastAttack) < c.cfg.AttackCooldown {
		c.setState(Scanning)
		return Scanning
	}

	c.setState(Attacking)
	if err := c.attack(ctx, target); err != nil {
		c.deps.Logger.Debug(fmt.Sprintf("hunt: attack interrupted: %v", err))
		c.setState(Scanning)
		return Scanning
	}
	c.lastAttack = now
	c.metrics.RecordAttack()
	c.deps.Bus.Publish(events.New(events.EventTypeHuntAttacked, "hunt", map[string]interface{}{
		"template": name,
		"x":        target.X,
		"y":        target.Y,
	}))
	return Attacking
}

func (c *Controller) onBattle(frame *cv.Frame, hit cv.Hit, now time.Time) {
	c.battle.Store(true)
	c.setState(Idle)
	c.deps.Flags.SetBattleStarted(true)

	at := frame.ToScreen(hit.Center())
	c.deps.Status.SetHunt(session.Detection{
		Unit: "hunt", Template: c.cfg.Battle.Name, X: at.X, Y: at.Y,
		Score: hit.Score, State: "battle", At: now,
	})
	c.deps.Bus.Publish(events.New(events.EventTypeHuntBattleDetected, "hunt", map[string]interface{}{
		"template": c.cfg.Battle.Name,
		"score":    hit.Score,
	}))
	c.deps.Logger.InfoWithContext("Battle detected, hunt stopped", logging.Fields{"score": hit.Score})
}

// attack glides the pointer to target and clicks it. The move is cut short
// without clicking if ctx ends; a pressed button is always released.
func (c *Controller) attack(ctx context.Context, target image.Point) error {
	bounds, err := c.deps.Device.Bounds()
	if err != nil {
		return err
	}
	from, err := c.deps.Device.CursorPos()
	if err != nil {
		from = target
	}

	steps := c.cfg.MoveSteps
	for i := 1; i <= steps; i++ {
		p := image.Pt(
			from.X+(target.X-from.X)*i/steps,
			from.Y+(target.Y-from.Y)*i/steps,
		)
		nx, ny := device.Normalize(p, bounds)
		c.inj.MoveAbsolute(nx, ny)
		if i < steps && c.cfg.MoveStepDelay > 0 {
			if err := sleep(ctx, c.cfg.MoveStepDelay); err != nil {
				return err
			}
		}
	}

	c.inj.Button(device.ButtonLeft, true)
	c.inj.Button(device.ButtonLeft, false)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
