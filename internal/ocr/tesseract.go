//go:build tesseract

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract"
)

// Tesseract reads digits through libtesseract.
type Tesseract struct {
	client *gosseract.Client
	upscale int
	buf     bytes.Buffer
}

// NewTesseract creates a client restricted to a single line of digits.
func NewTesseract(language string, upscale int) (TextReader, error) {
	client := gosseract.NewClient()
	if language != "" {
		client.SetLanguage(language)
	}
	client.SetWhitelist("0123456789m")
	client.SetPageSegMode(gosseract.PSM_SINGLE_LINE)
	return &Tesseract{client: client, upscale: upscale}, nil
}

func (t *Tesseract) ReadText(img *image.RGBA) (string, error) {
	t.buf.Reset()
	if err := png.Encode(&t.buf, Prepare(img, t.upscale)); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	if err := t.client.SetImageFromBytes(t.buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

func (t *Tesseract) Close() error {
	return t.client.Close()
}
