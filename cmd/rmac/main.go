package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"jordanella.com/rmac/internal/bot"
	"jordanella.com/rmac/internal/browser"
	"jordanella.com/rmac/internal/capture"
	"jordanella.com/rmac/internal/config"
	"jordanella.com/rmac/internal/cv"
	"jordanella.com/rmac/internal/database"
	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/eventlog"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/logging"
	"jordanella.com/rmac/internal/ocr"
	"jordanella.com/rmac/internal/screen"
	"jordanella.com/rmac/internal/session"
	"jordanella.com/rmac/internal/status"
	"jordanella.com/rmac/pkg/templates"
)

const defaultLogPath = "recording.rmac"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: rmac <command> [flags] [log]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  record       capture live input into a log until the stop key")
	fmt.Fprintln(w, "  play         replay a log")
	fmt.Fprintln(w, "  hunt         scan for targets and attack them until a battle")
	fmt.Fprintln(w, "  questwalk    walk towards the quest marker")
	fmt.Fprintln(w, "  record-hunt  record while hunting")
	fmt.Fprintln(w, "  play-hunt    replay while hunting")
	fmt.Fprintln(w, "  full         record while hunting and quest-walking")
	fmt.Fprintln(w, "  inspect      print a summary of a log")
}

type cliFlags struct {
	config     string
	backend    string
	url        string
	headless   bool
	monitor    int
	appendLog  bool
	logLevel   string
	statusAddr string
	database   string
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return 2
	}
	command := args[0]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f cliFlags
	fs.StringVar(&f.config, "config", "Settings.ini", "settings file")
	fs.StringVar(&f.backend, "backend", "", "input backend: native, virtual or browser")
	fs.StringVar(&f.url, "url", "", "page to open with the browser backend")
	fs.BoolVar(&f.headless, "headless", false, "run the browser backend headless")
	fs.IntVar(&f.monitor, "monitor", 0, "display to capture, -1 for the leftmost")
	fs.BoolVar(&f.appendLog, "append", false, "append to an existing log instead of replacing it")
	fs.StringVar(&f.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&f.statusAddr, "status", "", "serve the status feed on this address")
	fs.StringVar(&f.database, "db", "", "session journal database")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	if command == "inspect" {
		return inspect(fs.Args(), stdout, stderr)
	}
	mode, err := bot.ParseMode(command)
	if err != nil {
		fmt.Fprintln(stderr, err)
		usage(stderr)
		return 2
	}

	settings, found, err := config.LoadOrDefault(f.config)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load %s: %v\n", f.config, err)
		return 1
	}
	applyFlags(fs, &f, settings)

	logger := logging.NewLogger("rmac")
	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		logger.Warn(err.Error())
	}
	logger.SetMinLevel(level)
	if !found {
		logger.InfoWithContext("No settings file, using defaults", logging.Fields{"path": f.config})
	}

	logPath := defaultLogPath
	if fs.NArg() > 0 {
		logPath = fs.Arg(0)
	}

	if err := runSession(mode, logPath, settings, logger); err != nil {
		logger.Error("Session failed", err)
		return 1
	}
	return 0
}

// applyFlags lets explicitly set flags override the settings file.
func applyFlags(fs *flag.FlagSet, f *cliFlags, s *config.Settings) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			s.Backend = f.backend
		case "url":
			s.BrowserURL = f.url
		case "monitor":
			s.Monitor = f.monitor
		case "append":
			s.AppendRecordings = f.appendLog
		case "log-level":
			s.LogLevel = f.logLevel
		case "status":
			s.StatusAddr = f.statusAddr
		case "db":
			s.Database = f.database
		}
	})
}

func runSession(mode bot.Mode, logPath string, s *config.Settings, logger *logging.Logger) error {
	profile, err := bot.LoadProfile(s, mode, templates.NewLoader(nil))
	if err != nil {
		return err
	}

	bus := events.NewEventBus(256)
	// Stopped before the journal and database close so queued events land.
	defer bus.Stop()

	if s.LoggingEnabled {
		el, err := logging.NewEventLogger(bus, s.LogDir)
		if err != nil {
			logger.Warn(fmt.Sprintf("Event log disabled: %v", err))
		} else {
			defer el.Close()
			logger.InfoWithContext("Writing events", logging.Fields{"path": el.Path()})
		}
	}

	var db *database.DB
	if s.Database != "" {
		db, err = openJournal(s.Database, logger)
		if err != nil {
			logger.Warn(fmt.Sprintf("Session journal disabled: %v", err))
		} else {
			defer db.Close()
			journal := database.NewJournal(db, bus, logger.Named("journal"))
			defer journal.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := &session.Flags{}
	st := &session.Status{}

	be, err := openBackend(s, mode, logger)
	if err != nil {
		return err
	}
	defer be.close()

	env := bot.Env{
		Device: be.device,
		Hub:    be.hub,
		Flags:  flags,
		Status: st,
		Bus:    bus,
		Logger: logger,
	}
	if mode.NeedsVision() || profile.Capture.AbsMode.Cursor.Loaded() {
		if be.capturer == nil {
			return fmt.Errorf("%s needs screen capture: %w", mode, be.captureErr)
		}
		corr, err := bot.NewCorrelator(s)
		if err != nil {
			return err
		}
		env.Vision = cv.NewServiceWithCache(be.capturer, cv.NewMatcher(corr), time.Duration(s.FrameCacheMs)*time.Millisecond)
	}
	if mode == bot.ModeQuestWalk || mode == bot.ModeFull {
		reader, err := ocr.NewTesseract(s.OCRLanguage, s.OCRUpscale)
		if err != nil {
			logger.Warn(fmt.Sprintf("Distance reading disabled: %v", err))
		} else {
			env.Reader = reader
		}
	}

	if s.StatusAddr != "" {
		srv := status.NewServer(status.Deps{Status: st, Flags: flags, Bus: bus, DB: db, Logger: logger.Named("status")})
		defer srv.Close()
		go func() {
			if err := srv.ListenAndServe(ctx, s.StatusAddr); err != nil {
				logger.Error("Status feed stopped", err)
			}
		}()
		logger.InfoWithContext("Status feed listening", logging.Fields{"addr": s.StatusAddr})
	}

	mgr := bot.NewManager(env)
	sum, err := mgr.Run(ctx, bot.Plan{
		Mode:    mode,
		LogPath: logPath,
		Append:  s.AppendRecordings,
		Profile: profile,
	})
	report(logger, sum)
	return err
}

func openJournal(path string, logger *logging.Logger) (*database.DB, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	applied, err := db.RunMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}
	if applied > 0 {
		logger.InfoWithContext("Database migrated", logging.Fields{"path": path, "applied": applied})
	}
	return db, nil
}

type backend struct {
	device     device.Device
	hub        *capture.Hub
	capturer   cv.Capturer
	captureErr error
	closers    []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend wires the input device, the live input hub and the frame
// source for s.Backend.
func openBackend(s *config.Settings, mode bot.Mode, logger *logging.Logger) (*backend, error) {
	be := &backend{}
	switch s.Backend {
	case "", "native":
		src, err := capture.NewNativeSource()
		if err != nil {
			return nil, err
		}
		be.hub = capture.NewHub(src, logger.Named("hook"))
		if be.device, err = device.NewNative(be.hub.Keys()); err != nil {
			return nil, err
		}
		be.openScreen(s.Monitor)

	case "virtual":
		be.openScreen(s.Monitor)
		bounds := image.Rect(0, 0, 1920, 1080)
		if c, ok := be.capturer.(*screen.Capturer); ok {
			bounds, _ = c.Bounds()
		}
		be.device = device.NewVirtual(bounds).WithLogger(logger.Named("virtual"))
		// Recording still needs real input; without a hook the virtual
		// backend can only replay and hunt.
		if src, err := capture.NewNativeSource(); err == nil {
			be.hub = capture.NewHub(src, logger.Named("hook"))
		} else if mode.Records() {
			return nil, err
		}

	case "browser":
		if s.BrowserURL == "" {
			return nil, errors.New("browser backend needs a url")
		}
		var b *browser.Browser
		be.hub = capture.NewHub(capture.SourceFunc(func(ctx context.Context, emit func(capture.Notification) error) error {
			return b.Stream(ctx, emit)
		}), logger.Named("page"))
		opts := browser.DefaultOptions(s.BrowserURL)
		opts.Keys = be.hub.Keys()
		opts.Logger = logger.Named("browser")
		var err error
		if b, err = browser.Start(opts); err != nil {
			return nil, err
		}
		be.closers = append(be.closers, b.Close)
		be.device = b
		be.capturer = b

	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
	return be, nil
}

func (be *backend) openScreen(monitor int) {
	c, err := screen.New(monitor)
	if err != nil {
		be.captureErr = err
		return
	}
	be.capturer = c
}

func report(logger *logging.Logger, sum bot.Summary) {
	fields := logging.Fields{
		"session":  sum.SessionID,
		"mode":     sum.Mode,
		"status":   sum.Status,
		"duration": sum.Duration.Round(time.Millisecond),
	}
	if sum.Capture.Events > 0 {
		fields["recorded"] = sum.Capture.Events
	}
	if sum.Playback.Events > 0 {
		fields["played"] = sum.Playback.Events
		fields["failed"] = sum.Playback.Failed
	}
	if sum.Hunt.Scans > 0 {
		fields["scans"] = sum.Hunt.Scans
		fields["attacks"] = sum.Hunt.Attacks
		fields["restarts"] = sum.HuntRestarts
	}
	logger.InfoWithContext("Summary", fields)
}

func inspect(paths []string, stdout, stderr io.Writer) int {
	if len(paths) == 0 {
		paths = []string{defaultLogPath}
	}
	code := 0
	for _, path := range paths {
		h, evs, err := eventlog.ReadAll(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			code = 1
			continue
		}
		sum := eventlog.Summarize(h, evs)
		fmt.Fprintf(stdout, "%s\n", path)
		fmt.Fprintf(stdout, "  version   %d\n", h.Version)
		fmt.Fprintf(stdout, "  recorded  %s\n", sum.Started().Format(time.RFC3339))
		fmt.Fprintf(stdout, "  events    %d\n", sum.Events)
		fmt.Fprintf(stdout, "  duration  %s\n", sum.Duration)

		types := make([]eventlog.EventType, 0, len(sum.ByType))
		for t := range sum.ByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			fmt.Fprintf(stdout, "  %-14s %d\n", t, sum.ByType[t])
		}
	}
	return code
}
