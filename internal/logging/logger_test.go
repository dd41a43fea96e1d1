package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"jordanella.com/rmac/internal/events"
)

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("capture").SetOutput(&buf).SetMinLevel(LogLevelWarn)

	log.Info("dropped")
	log.Warn("kept")
	log.Error("failed", errors.New("disk full"))

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("Expected INFO to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN [capture] kept") {
		t.Errorf("Expected warn line, got %q", out)
	}
	if !strings.Contains(out, "error=disk full") {
		t.Errorf("Expected error field, got %q", out)
	}
}

func TestNamedSharesOutputs(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger("rmac").SetOutput(&buf)
	child := root.Named("hunt")

	child.InfoWithContext("target", Fields{"score": 0.91, "name": "slime"})

	if got := buf.String(); !strings.Contains(got, "[hunt] target | name=slime score=0.91") {
		t.Errorf("Unexpected line %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" debug ")
	if err != nil || level != LogLevelDebug {
		t.Fatalf("ParseLevel(debug) = %v, %v", level, err)
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatal("Expected error for unknown level")
	}
}

func TestEventLoggerWritesEvents(t *testing.T) {
	bus := events.NewEventBus(8)
	el, err := NewEventLogger(bus, t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create event logger: %v", err)
	}

	bus.Publish(events.New(events.EventTypeHuntAttacked, "hunt", map[string]interface{}{"template": "slime"}))
	bus.Stop()
	if err := el.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	data, err := os.ReadFile(el.Path())
	if err != nil {
		t.Fatalf("Failed to read event log: %v", err)
	}
	if !strings.Contains(string(data), "Event: hunt.attacked") || !strings.Contains(string(data), "template=slime") {
		t.Errorf("Unexpected event log contents %q", data)
	}
}
