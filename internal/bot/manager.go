package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jordanella.com/rmac/internal/capture"
	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/eventlog"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/hunt"
	"jordanella.com/rmac/internal/logging"
	"jordanella.com/rmac/internal/monitor"
	"jordanella.com/rmac/internal/ocr"
	"jordanella.com/rmac/internal/playback"
	"jordanella.com/rmac/internal/questwalk"
	"jordanella.com/rmac/internal/session"
)

// keyPollInterval is how often the stop and restart keys are sampled.
const keyPollInterval = 50 * time.Millisecond

// Session status values reported in session.stopped.
const (
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// Env holds the collaborators shared by every unit of a session.
type Env struct {
	Device device.Device
	// Hub is the live input source. Required for recording modes.
	Hub    *capture.Hub
	Vision *cv.Service
	Reader ocr.TextReader
	Flags  *session.Flags
	Status *session.Status
	Bus    events.Publisher
	Logger *logging.Logger
	// HealthInterval is how often the session health is checked; zero
	// uses the checker's default.
	HealthInterval time.Duration
}

// Plan is one session to run.
type Plan struct {
	Mode    Mode
	LogPath string
	Append  bool
	Profile *Profile
}

// Summary reports how a session went.
type Summary struct {
	SessionID    string
	Mode         Mode
	Status       string
	Duration     time.Duration
	Capture      capture.Result
	Playback     playback.Result
	Hunt         hunt.Snapshot
	HuntRestarts int
}

// Manager runs sessions. Each unit is a goroutine joined before Run
// returns; the primary unit ending, the stop key or ctx ends the session.
type Manager struct {
	env Env

	mu       sync.Mutex
	lastHunt *hunt.Config
	summary  Summary
}

func NewManager(env Env) *Manager {
	if env.Flags == nil {
		env.Flags = &session.Flags{}
	}
	if env.Status == nil {
		env.Status = &session.Status{}
	}
	if env.Bus == nil {
		env.Bus = events.Nop{}
	}
	if env.Logger == nil {
		env.Logger = logging.Discard()
	}
	return &Manager{env: env}
}

// LastHuntConfig is the configuration the last hunt ran with; a restart
// relaunches with exactly this.
func (m *Manager) LastHuntConfig() (hunt.Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastHunt == nil {
		return hunt.Config{}, false
	}
	return *m.lastHunt, true
}

func (m *Manager) validate(plan Plan) error {
	u := plan.Mode.units()
	if u == (units{}) {
		return fmt.Errorf("%w: %q", ErrUnknownMode, plan.Mode)
	}
	if plan.Profile == nil {
		return errors.New("bot: plan has no profile")
	}
	if m.env.Device == nil {
		return errors.New("bot: no input device")
	}
	if u.capture && m.env.Hub == nil {
		return fmt.Errorf("bot: %s needs a live input source", plan.Mode)
	}
	if (u.hunt || u.questWalk) && m.env.Vision == nil {
		return fmt.Errorf("bot: %s needs a frame grabber", plan.Mode)
	}
	if plan.Mode.NeedsLog() && plan.LogPath == "" {
		return fmt.Errorf("bot: %s needs a log path", plan.Mode)
	}
	return nil
}

// Run executes plan and blocks until every unit has exited.
func (m *Manager) Run(ctx context.Context, plan Plan) (Summary, error) {
	if err := m.validate(plan); err != nil {
		return Summary{}, err
	}
	u := plan.Mode.units()
	prof := plan.Profile
	log := m.env.Logger

	// The log is read up front so a damaged file fails before any unit
	// touches the device.
	var recorded []eventlog.Event
	if u.playback {
		var err error
		if _, recorded, err = eventlog.ReadAll(plan.LogPath); err != nil {
			return Summary{}, err
		}
	}

	id := uuid.NewString()
	start := time.Now()
	m.mu.Lock()
	m.summary = Summary{SessionID: id, Mode: plan.Mode}
	m.mu.Unlock()

	m.publish(id, events.EventTypeSessionStarted, map[string]interface{}{
		"mode":     string(plan.Mode),
		"log_path": plan.LogPath,
	})
	log.InfoWithContext("Session started", logging.Fields{"session": id, "mode": plan.Mode, "log": plan.LogPath})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var primaryErr error
	var stoppedByKey bool
	var primaryMu sync.Mutex

	// primary runs fn and ends the session when it returns.
	primary := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			if err := fn(runCtx); err != nil {
				primaryMu.Lock()
				primaryErr = fmt.Errorf("%s: %w", name, err)
				primaryMu.Unlock()
			}
		}()
	}
	// secondary failures are reported but leave the other units running.
	secondary := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil {
				log.Error(fmt.Sprintf("%s unit failed", name), err)
				m.env.Bus.Publish(events.NewErrorEvent(name, err))
			}
		}()
	}

	if m.env.Hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.env.Hub.Run(runCtx); err != nil && runCtx.Err() == nil {
				log.Error("Input source ended", err)
			}
		}()
	}

	health := monitor.NewHealthChecker(m.env.Status, m.env.Flags).
		WithCheckInterval(m.env.HealthInterval).
		WithScreen(m.env.Device).
		WithUnhealthyCallback(func(reason monitor.Reason, err error) {
			log.WarnWithContext("Session unhealthy", logging.Fields{"reason": reason, "error": err})
			m.env.Bus.Publish(events.NewErrorEvent("monitor", fmt.Errorf("%s: %w", reason, err)))
		})
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if m.watchStopKey(runCtx, prof.StopKey) {
			primaryMu.Lock()
			stoppedByKey = true
			primaryMu.Unlock()
			cancel()
		}
	}()

	switch {
	case u.capture:
		primary("capture", func(ctx context.Context) error { return m.runCapture(ctx, plan) })
	case u.playback:
		primary("playback", func(ctx context.Context) error { return m.runPlayback(ctx, prof, recorded) })
	case u.questWalk:
		primary("questwalk", func(ctx context.Context) error { return m.runQuestWalk(ctx, prof.QuestWalk) })
	}
	if u.questWalk && u.capture {
		secondary("questwalk", func(ctx context.Context) error { return m.runQuestWalk(ctx, prof.QuestWalk) })
	}
	if u.hunt {
		hunter := func(ctx context.Context) error { return m.runHunt(ctx, prof.Hunt, prof.RestartKey) }
		if plan.Mode == ModeHunt {
			primary("hunt", hunter)
		} else {
			secondary("hunt", hunter)
		}
	}

	wg.Wait()

	primaryMu.Lock()
	err := primaryErr
	byKey := stoppedByKey
	primaryMu.Unlock()

	m.mu.Lock()
	sum := m.summary
	m.mu.Unlock()
	sum.Duration = time.Since(start)
	switch {
	case err != nil:
		sum.Status = StatusFailed
	case byKey || ctx.Err() != nil || sum.Capture.Stopped || sum.Playback.Stopped:
		sum.Status = StatusStopped
	default:
		sum.Status = StatusCompleted
	}

	data := map[string]interface{}{
		"status":   sum.Status,
		"events":   m.env.Status.View(m.env.Flags).Events,
		"duration": sum.Duration.String(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	m.publish(id, events.EventTypeSessionStopped, data)
	log.InfoWithContext("Session finished", logging.Fields{"session": id, "status": sum.Status, "duration": sum.Duration})

	return sum, err
}

func (m *Manager) publish(id string, typ events.EventType, data map[string]interface{}) {
	e := events.New(typ, "bot", data)
	e.SessionID = id
	m.env.Bus.Publish(e)
}

// watchStopKey polls the stop key and reports whether it was pressed
// before ctx ended.
func (m *Manager) watchStopKey(ctx context.Context, vk int) bool {
	if vk == 0 {
		<-ctx.Done()
		return false
	}
	ticker := time.NewTicker(keyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if m.env.Device.IsKeyDown(vk) {
				m.env.Logger.Info("Stop key pressed")
				return true
			}
		}
	}
}

func (m *Manager) runCapture(ctx context.Context, plan Plan) error {
	mode := eventlog.ModeCreate
	if plan.Append {
		mode = eventlog.ModeAppend
	}
	w, err := eventlog.Open(plan.LogPath, mode)
	if err != nil {
		return err
	}

	rec := capture.NewRecorder(w, plan.Profile.Capture, capture.Deps{
		Pointer: m.env.Device,
		Vision:  m.env.Vision,
		Flags:   m.env.Flags,
		Status:  m.env.Status,
		Bus:     m.env.Bus,
		Logger:  m.env.Logger.Named("capture"),
	})
	res, err := rec.Run(ctx, m.env.Hub)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}

	m.mu.Lock()
	m.summary.Capture = res
	m.mu.Unlock()
	return err
}

func (m *Manager) runPlayback(ctx context.Context, prof *Profile, evs []eventlog.Event) error {
	p := playback.NewPlayer(prof.Playback, playback.Deps{
		Device: m.env.Device,
		Flags:  m.env.Flags,
		Status: m.env.Status,
		Bus:    m.env.Bus,
		Logger: m.env.Logger.Named("playback"),
	})
	res, err := p.Play(ctx, evs)

	m.mu.Lock()
	m.summary.Playback = res
	m.mu.Unlock()
	return err
}

func (m *Manager) runQuestWalk(ctx context.Context, cfg questwalk.Config) error {
	c, err := questwalk.New(cfg, questwalk.Deps{
		Vision: m.env.Vision,
		Device: m.env.Device,
		Reader: m.env.Reader,
		Flags:  m.env.Flags,
		Status: m.env.Status,
		Bus:    m.env.Bus,
		Logger: m.env.Logger.Named("questwalk"),
	})
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// runHunt runs the hunt and, each time a battle stops it, waits for a
// press of restartKey to relaunch it with the same config. Presses while
// the hunt is running are ignored.
func (m *Manager) runHunt(ctx context.Context, cfg hunt.Config, restartKey int) error {
	for {
		c, err := hunt.New(cfg, hunt.Deps{
			Vision: m.env.Vision,
			Device: m.env.Device,
			Flags:  m.env.Flags,
			Status: m.env.Status,
			Bus:    m.env.Bus,
			Logger: m.env.Logger.Named("hunt"),
		})
		if err != nil {
			return err
		}
		launched := c.Config()
		m.mu.Lock()
		m.lastHunt = &launched
		m.mu.Unlock()

		err = c.Run(ctx)

		m.mu.Lock()
		m.summary.Hunt = c.Metrics()
		m.mu.Unlock()

		if err != nil || ctx.Err() != nil || !c.BattleDetected() {
			return err
		}
		if restartKey == 0 || !m.waitRestart(ctx, restartKey) {
			return nil
		}

		last, _ := m.LastHuntConfig()
		cfg = last
		m.env.Flags.SetBattleStarted(false)
		m.mu.Lock()
		m.summary.HuntRestarts++
		restarts := m.summary.HuntRestarts
		m.mu.Unlock()
		m.env.Bus.Publish(events.New(events.EventTypeHuntRestarted, "hunt", map[string]interface{}{
			"restarts": restarts,
		}))
		m.env.Logger.InfoWithContext("Hunt restarted", logging.Fields{"restarts": restarts})
	}
}

// waitRestart blocks until vk goes from up to down or ctx ends.
func (m *Manager) waitRestart(ctx context.Context, vk int) bool {
	var trigger RestartTrigger
	trigger.Prime(m.env.Device.IsKeyDown(vk))

	ticker := time.NewTicker(keyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if trigger.Update(m.env.Device.IsKeyDown(vk)) {
				return true
			}
		}
	}
}
