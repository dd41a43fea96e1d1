//go:build !robotgo

package capture

import "jordanella.com/rmac/internal/device"

// NewNativeSource is unavailable without the robotgo build tag.
func NewNativeSource() (Source, error) {
	return nil, device.ErrUnavailable
}
