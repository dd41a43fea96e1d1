package eventlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Mode selects how Open treats an existing file.
type Mode int

const (
	// ModeCreate truncates any existing file and writes a fresh header.
	ModeCreate Mode = iota
	// ModeAppend keeps existing records and continues after the last one.
	ModeAppend
)

func (m Mode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "create"
}

// flushRecords is how many buffered records trigger a write.
const flushRecords = 64

// logFile is the part of *os.File a Writer uses.
type logFile interface {
	io.WriteCloser
	io.Seeker
	Truncate(size int64) error
}

// Writer appends records to a log file. Records are buffered and written
// whole, so a crash leaves at most a missing tail, never a torn record in
// the middle of the file. A Writer is not safe for concurrent use.
type Writer struct {
	f    logFile
	path string
	// end is the file offset just past the last whole record written.
	end     int64
	header  Header
	buf     []byte
	lastTUs uint64
	count   int
}

// Open opens path for writing in the given mode.
func Open(path string, mode Mode) (*Writer, error) {
	switch mode {
	case ModeCreate:
		return Create(path)
	case ModeAppend:
		return OpenAppend(path)
	default:
		return nil, fmt.Errorf("eventlog: unknown mode %d", mode)
	}
}

// Create creates or truncates path and writes the header.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}

	h := NewHeader(uint64(time.Now().UnixMicro()))
	var hb [HeaderSize]byte
	h.encode(hb[:])
	if _, err := f.Write(hb[:]); err != nil {
		f.Close()
		return nil, &IOError{Op: "write header", Path: path, Err: err}
	}

	return &Writer{f: f, path: path, header: h, end: HeaderSize, buf: make([]byte, 0, flushRecords*RecordSize)}, nil
}

// OpenAppend opens an existing log and positions after its last whole
// record. A trailing partial record is cut off. A missing file is created.
func OpenAppend(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		return Create(path)
	}
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	w, err := resume(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func resume(f *os.File, path string) (*Writer, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	if info.Size() < HeaderSize {
		return nil, &FormatError{Path: path, Reason: "truncated header"}
	}

	var hb [HeaderSize]byte
	if _, err := io.ReadFull(f, hb[:]); err != nil {
		return nil, &IOError{Op: "read header", Path: path, Err: err}
	}
	h := decodeHeader(hb[:])
	if reason := h.validate(); reason != "" {
		return nil, &FormatError{Path: path, Reason: reason}
	}

	records := (info.Size() - HeaderSize) / RecordSize
	end := HeaderSize + records*RecordSize
	if end != info.Size() {
		if err := f.Truncate(end); err != nil {
			return nil, &IOError{Op: "truncate", Path: path, Err: err}
		}
	}

	w := &Writer{f: f, path: path, header: h, end: end, buf: make([]byte, 0, flushRecords*RecordSize), count: int(records)}
	if records > 0 {
		var rb [RecordSize]byte
		if _, err := f.ReadAt(rb[:], end-RecordSize); err != nil {
			return nil, &IOError{Op: "read", Path: path, Err: err}
		}
		w.lastTUs = decodeEvent(rb[:]).TUs
	}

	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return nil, &IOError{Op: "seek", Path: path, Err: err}
	}
	return w, nil
}

// Append buffers one record.
func (w *Writer) Append(e Event) error {
	if w.f == nil {
		return &IOError{Op: "append", Path: w.path, Err: os.ErrClosed}
	}

	var rb [RecordSize]byte
	e.encode(rb[:])
	w.buf = append(w.buf, rb[:]...)
	w.lastTUs = e.TUs
	w.count++

	if len(w.buf) >= flushRecords*RecordSize {
		return w.Flush()
	}
	return nil
}

// Flush writes every buffered record in a single call. After a short
// write the file is cut back to the last whole record, so a later Flush
// continues on a record boundary.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 || w.f == nil {
		return nil
	}
	n, err := w.f.Write(w.buf)
	if err != nil {
		written := n - n%RecordSize
		if n != written {
			if terr := w.cut(w.end + int64(written)); terr != nil {
				return &IOError{Op: "write", Path: w.path, Err: errors.Join(err, terr)}
			}
		}
		w.end += int64(written)
		// Keep the unwritten whole records for a retry.
		w.buf = w.buf[:copy(w.buf, w.buf[written:])]
		return &IOError{Op: "write", Path: w.path, Err: err}
	}
	w.end += int64(n)
	w.buf = w.buf[:0]
	return nil
}

// cut drops a torn tail and moves the write position back to size.
func (w *Writer) cut(size int64) error {
	if err := w.f.Truncate(size); err != nil {
		return fmt.Errorf("truncate torn record: %w", err)
	}
	if _, err := w.f.Seek(size, io.SeekStart); err != nil {
		return fmt.Errorf("seek after truncate: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Calling Close twice is a no-op.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	flushErr := w.Flush()
	closeErr := w.f.Close()
	w.f = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return &IOError{Op: "close", Path: w.path, Err: closeErr}
	}
	return nil
}

// Header returns the header the file started with.
func (w *Writer) Header() Header { return w.header }

// LastTUs is the timestamp of the newest record, including records that
// were already in the file when it was opened for append.
func (w *Writer) LastTUs() uint64 { return w.lastTUs }

// Count is the number of records in the file once buffered ones are flushed.
func (w *Writer) Count() int { return w.count }

// Path returns the file path
func (w *Writer) Path() string { return w.path }
