package eventlog

import "fmt"

// IOError reports a failure to open, read or write a log file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("eventlog: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError reports a header that is truncated or not ours.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "eventlog: " + e.Reason
	}
	return fmt.Sprintf("eventlog: %s: %s", e.Path, e.Reason)
}
