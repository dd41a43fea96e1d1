package eventlog

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"
)

// Reader decodes records from a stream.
type Reader struct {
	r      *bufio.Reader
	path   string
	header Header
	rec    [RecordSize]byte
}

// NewReader reads and validates the header.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r, "")
}

func newReader(r io.Reader, path string) (*Reader, error) {
	br := bufio.NewReaderSize(r, 256*RecordSize)

	var hb [HeaderSize]byte
	if _, err := io.ReadFull(br, hb[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FormatError{Path: path, Reason: "truncated header"}
		}
		return nil, &IOError{Op: "read header", Path: path, Err: err}
	}

	h := decodeHeader(hb[:])
	if reason := h.validate(); reason != "" {
		return nil, &FormatError{Path: path, Reason: reason}
	}
	return &Reader{r: br, path: path, header: h}, nil
}

// Header returns the validated header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next record, or io.EOF at the end of the stream.
// A trailing partial record is treated as the end.
func (r *Reader) Next() (Event, error) {
	if _, err := io.ReadFull(r.r, r.rec[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, io.EOF
		}
		return Event{}, &IOError{Op: "read", Path: r.path, Err: err}
	}
	return decodeEvent(r.rec[:]), nil
}

// Read decodes a whole stream.
func Read(rd io.Reader) (Header, []Event, error) {
	return readAll(rd, "")
}

// ReadAll reads every whole record in the file at path.
func ReadAll(path string) (Header, []Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return readAll(f, path)
}

func readAll(rd io.Reader, path string) (Header, []Event, error) {
	r, err := newReader(rd, path)
	if err != nil {
		return Header{}, nil, err
	}

	var out []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.header, out, nil
		}
		if err != nil {
			return r.header, out, err
		}
		out = append(out, e)
	}
}

// Summary describes a log for display.
type Summary struct {
	Header   Header
	Events   int
	Duration time.Duration
	ByType   map[EventType]int
}

// Summarize counts events per type and measures the span of the log.
func Summarize(h Header, events []Event) Summary {
	s := Summary{Header: h, Events: len(events), ByType: make(map[EventType]int)}
	for _, e := range events {
		s.ByType[e.Type]++
	}
	if len(events) > 0 {
		s.Duration = time.Duration(events[len(events)-1].TUs) * time.Microsecond
	}
	return s
}

// Started returns the recording start time from the header.
func (s Summary) Started() time.Time {
	return time.UnixMicro(int64(s.Header.StartTime))
}
