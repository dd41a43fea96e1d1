// Package browser drives a Chromium page over the DevTools protocol for
// games that run in a browser: frames come from page screenshots, input
// is dispatched as DevTools input events and live input is captured with
// a page binding.
package browser

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/logging"
)

// Options configure the browser session.
type Options struct {
	URL      string
	Headless bool
	Width    int
	Height   int
	// NavTimeout bounds the initial navigation.
	NavTimeout time.Duration
	// Keys answers IsKeyDown. When nil the browser tracks the keys it
	// injected itself.
	Keys   device.KeyState
	Logger *logging.Logger
}

// DefaultOptions opens an 800x600 visible window.
func DefaultOptions(url string) Options {
	return Options{URL: url, Width: 800, Height: 600, NavTimeout: 60 * time.Second}
}

// Browser is one page. It satisfies cv.Capturer, device.Device and
// capture.Source.
type Browser struct {
	opts        Options
	logger      *logging.Logger
	allocCancel context.CancelFunc
	cancel      context.CancelFunc
	ctx         context.Context

	mu      sync.Mutex
	cursor  image.Point
	buttons int64 // DevTools pressed-buttons bitmask
	keys    device.KeyState
	own     *device.KeyTable

	// sink receives binding payloads while a Stream is active.
	sink atomic.Pointer[chan string]
}

// Start launches the browser and navigates to opts.URL.
func Start(opts Options) (*Browser, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 800, 600
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", false),
		chromedp.WindowSize(opts.Width, opts.Height),
	)

	b := &Browser{opts: opts, logger: logger}
	b.own = &device.KeyTable{}
	b.keys = opts.Keys
	if b.keys == nil {
		b.keys = b.own
	}

	var allocCtx context.Context
	allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	b.ctx, b.cancel = chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	chromedp.ListenTarget(b.ctx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != bindingName {
			return
		}
		if ch := b.sink.Load(); ch != nil {
			select {
			case *ch <- called.Payload:
			default:
				// Stream is behind; a dropped move is better than a
				// stalled DevTools connection.
			}
		}
	})

	navCtx, navCancel := context.WithTimeout(b.ctx, opts.NavTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(opts.URL)); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", opts.URL, err)
	}

	logger.InfoWithContext("Browser started", logging.Fields{
		"url":      opts.URL,
		"viewport": fmt.Sprintf("%dx%d", opts.Width, opts.Height),
	})
	return b, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

func (b *Browser) run(actions ...chromedp.Action) error {
	if b.ctx == nil || b.ctx.Err() != nil {
		return fmt.Errorf("browser context closed: %w", device.ErrUnavailable)
	}
	return chromedp.Run(b.ctx, actions...)
}
