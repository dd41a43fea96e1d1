//go:build !tesseract

package ocr

import "fmt"

// NewTesseract is only available in builds tagged tesseract.
func NewTesseract(language string, upscale int) (TextReader, error) {
	return nil, fmt.Errorf("tesseract: %w (rebuild with -tags tesseract)", ErrUnavailable)
}
