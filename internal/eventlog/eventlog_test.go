package eventlog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func sampleEvents() []Event {
	return []Event{
		Move(0, 5, -3),
		Key(100000, 65, true),
		Key(150000, 65, false),
		Wheel(160000, -120),
		Button(170000, 2, true),
		Button(175000, 2, false),
		Position(180000, 1919, 0),
	}
}

func writeLog(t *testing.T, path string, events []Event) {
	t.Helper()
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}
	for _, e := range events {
		if err := w.Append(e); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.rmac")
	want := sampleEvents()
	writeLog(t, path, want)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat: %v", err)
	}
	if got := info.Size(); got != int64(HeaderSize+len(want)*RecordSize) {
		t.Fatalf("Expected file size %d, got %d", HeaderSize+len(want)*RecordSize, got)
	}

	h, got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if h.Magic != Magic || h.Version != Version {
		t.Errorf("Unexpected header %+v", h)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestRoundTripManyRecordsCrossesFlushThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.rmac")
	var want []Event
	for i := 0; i < flushRecords*3+7; i++ {
		want = append(want, Move(uint64(i*1000), int32(i), int32(-i)))
	}
	writeLog(t, path, want)

	_, got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	if got[len(got)-1] != want[len(want)-1] {
		t.Errorf("Last event mismatch: %+v vs %+v", got[len(got)-1], want[len(want)-1])
	}
}

func TestHeaderOnlyLogIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rmac")
	writeLog(t, path, nil)

	_, got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no events, got %d", len(got))
	}
}

func TestTrailingPartialRecordIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.rmac")
	writeLog(t, path, sampleEvents()[:2])

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	f.Write(make([]byte, RecordSize-5))
	f.Close()

	_, got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("Expected partial record to be a normal end, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 whole events, got %d", len(got))
	}
}

func TestFormatErrors(t *testing.T) {
	valid := make([]byte, HeaderSize)
	NewHeader(0).encode(valid)

	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'

	badVersion := append([]byte(nil), valid...)
	le.PutUint32(badVersion[4:8], 2)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:10]},
		{"bad magic", badMagic},
		{"bad version", badVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(tt.data))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected FormatError, got %v", err)
			}
		})
	}
}

func TestReadAllMissingFileIsIOError(t *testing.T) {
	_, _, err := ReadAll(filepath.Join(t.TempDir(), "nope.rmac"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected IOError to unwrap to ErrNotExist, got %v", err)
	}
}

func TestCreateInMissingDirectoryIsIOError(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "x.rmac"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected IOError, got %v", err)
	}
}

func TestAppendModeContinuesAfterLastRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.rmac")
	first := sampleEvents()[:3]
	writeLog(t, path, first)

	// Simulate a torn tail from an interrupted writer.
	f, _ := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	f.Write([]byte{1, 2, 3})
	f.Close()

	w, err := Open(path, ModeAppend)
	if err != nil {
		t.Fatalf("Failed to open for append: %v", err)
	}
	if w.Count() != 3 {
		t.Errorf("Expected 3 existing records, got %d", w.Count())
	}
	if w.LastTUs() != 150000 {
		t.Errorf("Expected last timestamp 150000, got %d", w.LastTUs())
	}
	if err := w.Append(Wheel(w.LastTUs()+10, 120)); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	_, got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(got))
	}
	if got[3] != Wheel(150010, 120) {
		t.Errorf("Unexpected appended event %+v", got[3])
	}
}

func TestAppendToForeignFileIsFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(path, []byte("this is not an input log at all"), 0644)

	_, err := OpenAppend(path)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FormatError, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(NewHeader(1_700_000_000_000_000), sampleEvents())
	if s.Events != 7 {
		t.Errorf("Expected 7 events, got %d", s.Events)
	}
	if s.ByType[KeyDown] != 1 || s.ByType[MouseButton] != 2 {
		t.Errorf("Unexpected per-type counts %v", s.ByType)
	}
	if s.Duration.Microseconds() != 180000 {
		t.Errorf("Expected 180ms span, got %v", s.Duration)
	}
}

// fullDisk writes at most room more bytes, then fails like a full disk.
type fullDisk struct {
	*os.File
	room int
}

func (d *fullDisk) Write(p []byte) (int, error) {
	if d.room < 0 || len(p) <= d.room {
		if d.room >= 0 {
			d.room -= len(p)
		}
		return d.File.Write(p)
	}
	n, _ := d.File.Write(p[:d.room])
	d.room = 0
	return n, fmt.Errorf("no space left on device")
}

func TestShortWriteLeavesNoTornRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "full.rmac")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}
	disk := &fullDisk{File: w.f.(*os.File), room: 1520}
	w.f = disk

	var want []Event
	var writeErr error
	for i := 0; i < flushRecords; i++ {
		e := Event{Type: MouseMoveRel, TUs: uint64(i), A: int32(i), B: int32(-i)}
		want = append(want, e)
		if err := w.Append(e); err != nil {
			writeErr = err
		}
	}
	var ioErr *IOError
	if !errors.As(writeErr, &ioErr) {
		t.Fatalf("Expected an IOError from the short write, got %v", writeErr)
	}

	disk.room = -1
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}
