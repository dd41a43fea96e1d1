//go:build !robotgo

package device

import "fmt"

// NewNative is only available in builds tagged robotgo.
func NewNative(keys KeyState) (Device, error) {
	return nil, fmt.Errorf("native input: %w (rebuild with -tags robotgo)", ErrUnavailable)
}
