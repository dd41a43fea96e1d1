package templates

import "fmt"

// ResourceLoadError reports a template file or directory that could not be
// turned into a usable set.
type ResourceLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ResourceLoadError) Error() string {
	msg := fmt.Sprintf("templates: %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }
