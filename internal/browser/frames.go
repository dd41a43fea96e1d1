package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/image/draw"

	"jordanella.com/rmac/internal/cv"
)

const captureTimeout = 5 * time.Second

// CaptureFrame screenshots the viewport.
func (b *Browser) CaptureFrame() (*cv.Frame, error) {
	return b.CaptureRegion(image.Rect(0, 0, b.opts.Width, b.opts.Height))
}

// CaptureRegion screenshots r in viewport coordinates.
func (b *Browser) CaptureRegion(r image.Rectangle) (*cv.Frame, error) {
	clip := r.Intersect(image.Rect(0, 0, b.opts.Width, b.opts.Height))
	if clip.Empty() {
		return nil, cv.ErrOutsideFrame
	}

	var buf []byte
	err := b.run(chromedp.ActionFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, captureTimeout)
		defer cancel()
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      float64(clip.Min.X),
				Y:      float64(clip.Min.Y),
				Width:  float64(clip.Dx()),
				Height: float64(clip.Dy()),
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("browser screenshot: %w", err)
	}

	img, err := decodeRGBA(buf)
	if err != nil {
		return nil, err
	}
	return &cv.Frame{Image: img, Origin: clip.Min}, nil
}

func decodeRGBA(buf []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}
