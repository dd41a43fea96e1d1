package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/eventlog"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/logging"
	"jordanella.com/rmac/internal/session"
)

// AbsModeConfig controls when pointer motion is recorded as absolute
// positions instead of deltas.
type AbsModeConfig struct {
	// ModifierKey switches to absolute mode while held; 0 disables.
	ModifierKey int
	// PollInterval is how often the pointer position is sampled in
	// absolute mode.
	PollInterval time.Duration

	// Cursor, when loaded, enables vision detection of a visible cursor.
	Cursor          cv.Template
	CursorThreshold float64
	// CursorRadius is the half-size of the square probed around the pointer.
	CursorRadius   int
	DetectInterval time.Duration
}

// Enabled reports whether absolute positions can ever be recorded.
func (c AbsModeConfig) Enabled() bool {
	return c.ModifierKey != 0 || c.Cursor.Loaded()
}

// DefaultAbsModeConfig samples at 125 Hz and probes for the cursor ten
// times a second.
func DefaultAbsModeConfig() AbsModeConfig {
	return AbsModeConfig{
		PollInterval:    8 * time.Millisecond,
		CursorThreshold: 0.8,
		CursorRadius:    48,
		DetectInterval:  100 * time.Millisecond,
	}
}

// Options configure a Recorder.
type Options struct {
	StopKey int
	AbsMode AbsModeConfig
	Clock   Clock
}

// Deps are the collaborators a Recorder reads from and reports to. Pointer
// is required when absolute mode is enabled; Vision when cursor detection is.
type Deps struct {
	Pointer device.Pointer
	Vision  *cv.Service
	Flags   *session.Flags
	Status  *session.Status
	Bus     events.Publisher
	Logger  *logging.Logger
}

// Result summarizes a finished capture.
type Result struct {
	Events   int
	Duration time.Duration
	Stopped  bool // ended by the stop key
}

// Recorder writes notifications from a Source into an event log. The
// writer is shared by the stream callback and the absolute poller; both
// take timestamps under the same lock so records stay in time order.
type Recorder struct {
	opts Options
	deps Deps

	mu      sync.Mutex
	writer  *eventlog.Writer
	start   time.Time
	base    uint64
	written int
	lastPos image.Point
	havePos bool

	modes ModeSelector
}

// NewRecorder prepares a capture into w. The writer stays owned by the
// caller, who closes it after Run returns.
func NewRecorder(w *eventlog.Writer, opts Options, deps Deps) *Recorder {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.StopKey == 0 {
		opts.StopKey = device.VKEscape
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
	return &Recorder{opts: opts, deps: deps, writer: w}
}

// Modes exposes the pointer mode selector.
func (r *Recorder) Modes() *ModeSelector {
	return &r.modes
}

// Run records until the stop key, ctx cancellation, or a write failure.
// Reaching the stop key or cancellation is a normal end.
func (r *Recorder) Run(ctx context.Context, src Source) (Result, error) {
	abs := r.opts.AbsMode
	if abs.Enabled() && r.deps.Pointer == nil {
		return Result{}, errors.New("capture: absolute mode needs a pointer")
	}
	if abs.Cursor.Loaded() && r.deps.Vision == nil {
		return Result{}, errors.New("capture: cursor detection needs a vision service")
	}

	r.mu.Lock()
	r.start = r.opts.Clock.Now()
	r.base = r.writer.LastTUs()
	r.mu.Unlock()

	r.deps.Flags.SetRecording(true)
	defer r.deps.Flags.SetRecording(false)
	r.deps.Status.SetPointerMode(r.modes.Mode().String())

	r.deps.Logger.InfoWithContext("Recording started", logging.Fields{
		"log":      r.writer.Path(),
		"stop_key": device.KeyString(r.opts.StopKey),
		"abs_mode": abs.Enabled(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if abs.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.pollAbsolute(runCtx)
		}()
	}
	if abs.Cursor.Loaded() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.detectCursor(runCtx)
		}()
	}

	err := src.Stream(runCtx, r.handle)
	cancel()
	wg.Wait()

	r.mu.Lock()
	ferr := r.writer.Flush()
	r.mu.Unlock()
	if ferr != nil && err == nil {
		err = ferr
	}

	res := r.result(errors.Is(err, ErrStopKey))
	switch {
	case err == nil, errors.Is(err, ErrStopKey), errors.Is(err, context.Canceled), errors.Is(err, ErrSourceClosed):
		r.deps.Logger.InfoWithContext("Recording finished", logging.Fields{"events": res.Events, "duration": res.Duration})
		return res, nil
	default:
		return res, err
	}
}

func (r *Recorder) result(stopped bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Result{
		Events:   r.written,
		Duration: r.opts.Clock.Now().Sub(r.start),
		Stopped:  stopped,
	}
}

// handle is the Source callback.
func (r *Recorder) handle(n Notification) error {
	switch n.Kind {
	case KeyPress:
		if n.VK == device.VKFakeExtended {
			return nil
		}
		if n.VK == r.opts.StopKey {
			if n.Down {
				return ErrStopKey
			}
			return nil
		}
		if mk := r.opts.AbsMode.ModifierKey; mk != 0 && n.VK == mk {
			r.modes.SetModifier(n.Down)
		}
		return r.write(func(tus uint64) eventlog.Event {
			return eventlog.Key(tus, int32(n.VK), n.Down)
		})

	case Motion:
		if r.modes.Mode().Absolute() {
			// The poller records positions in absolute modes.
			return nil
		}
		if n.DX == 0 && n.DY == 0 {
			return nil
		}
		return r.write(func(tus uint64) eventlog.Event {
			return eventlog.Move(tus, int32(n.DX), int32(n.DY))
		})

	case WheelTurn:
		if n.Delta == 0 {
			return nil
		}
		return r.write(func(tus uint64) eventlog.Event {
			return eventlog.Wheel(tus, int32(n.Delta))
		})

	case ButtonPress:
		return r.write(func(tus uint64) eventlog.Event {
			return eventlog.Button(tus, int32(n.Button), n.Down)
		})
	}
	return nil
}

// write stamps and appends one record under the writer lock.
func (r *Recorder) write(build func(tus uint64) eventlog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(build)
}

func (r *Recorder) writeLocked(build func(tus uint64) eventlog.Event) error {
	elapsed := r.opts.Clock.Now().Sub(r.start)
	if elapsed < 0 {
		elapsed = 0
	}
	e := build(r.base + uint64(elapsed.Microseconds()))
	if err := r.writer.Append(e); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	r.written++
	r.deps.Status.RecordEvent(e.Type.String())
	return nil
}

// pollAbsolute samples the pointer while an absolute mode is active and
// records a position whenever it changed.
func (r *Recorder) pollAbsolute(ctx context.Context) {
	interval := r.opts.AbsMode.PollInterval
	if interval <= 0 {
		interval = DefaultAbsModeConfig().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := Relative
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.pollOnce(&last); err != nil {
				r.deps.Logger.Error("Absolute position write failed", err)
				return
			}
		}
	}
}

func (r *Recorder) pollOnce(last *PointerMode) error {
	mode := r.modes.Mode()
	if mode != *last {
		r.deps.Status.SetPointerMode(mode.String())
		r.deps.Bus.Publish(events.New(events.EventTypeCaptureModeChanged, "capture", map[string]interface{}{
			"from": last.String(),
			"to":   mode.String(),
		}))
		*last = mode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !mode.Absolute() {
		r.havePos = false
		return nil
	}
	p, err := r.deps.Pointer.CursorPos()
	if err != nil {
		r.deps.Logger.Debug(fmt.Sprintf("cursor position unavailable: %v", err))
		return nil
	}
	if r.havePos && p == r.lastPos {
		return nil
	}
	r.lastPos, r.havePos = p, true
	return r.writeLocked(func(tus uint64) eventlog.Event {
		return eventlog.Position(tus, int32(p.X), int32(p.Y))
	})
}

// detectCursor probes the area around the pointer for the cursor template.
func (r *Recorder) detectCursor(ctx context.Context) {
	abs := r.opts.AbsMode
	interval := abs.DetectInterval
	if interval <= 0 {
		interval = DefaultAbsModeConfig().DetectInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.modes.SetCursorVisible(r.cursorVisible())
		}
	}
}

func (r *Recorder) cursorVisible() bool {
	abs := r.opts.AbsMode
	p, err := r.deps.Pointer.CursorPos()
	if err != nil {
		return false
	}
	radius := abs.CursorRadius
	if radius <= 0 {
		radius = DefaultAbsModeConfig().CursorRadius
	}
	probe := image.Rect(p.X-radius, p.Y-radius, p.X+radius, p.Y+radius)

	frame, err := r.deps.Vision.CaptureRegion(probe)
	if err != nil {
		return false
	}
	hit, ok := r.deps.Vision.Matcher().Best(frame, abs.Cursor)
	return ok && hit.Score >= abs.CursorThreshold
}
