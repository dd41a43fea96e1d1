package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"jordanella.com/rmac/internal/capture"
	"jordanella.com/rmac/internal/device"
)

const bindingName = "__rmacInput"

// listenerJS forwards page input to the binding. keyCode carries the
// Windows virtual-key code the log stores.
const listenerJS = `(() => {
	if (window.__rmacListening) return;
	window.__rmacListening = true;
	const send = (o) => window.` + bindingName + `(JSON.stringify(o));
	addEventListener('keydown', e => { if (!e.repeat) send({k: 'key', vk: e.keyCode, d: true}); }, true);
	addEventListener('keyup', e => send({k: 'key', vk: e.keyCode, d: false}), true);
	addEventListener('mousemove', e => send({k: 'move', dx: e.movementX, dy: e.movementY}), true);
	addEventListener('mousedown', e => send({k: 'button', b: e.button, d: true}), true);
	addEventListener('mouseup', e => send({k: 'button', b: e.button, d: false}), true);
	addEventListener('wheel', e => send({k: 'wheel', dy: e.deltaY}), true);
})()`

const streamBuffer = 1024

type pageInput struct {
	Kind string  `json:"k"`
	VK   int     `json:"vk"`
	Down bool    `json:"d"`
	DX   int     `json:"dx"`
	DY   float64 `json:"dy"`
	Btn  int     `json:"b"`
}

// DOM MouseEvent.button values.
var domButtons = map[int]int{
	0: device.ButtonLeft,
	1: device.ButtonMiddle,
	2: device.ButtonRight,
	3: device.ButtonX1,
	4: device.ButtonX2,
}

// parseInput converts one binding payload. ok is false for payloads that
// carry nothing to record.
func parseInput(payload string) (capture.Notification, bool, error) {
	var in pageInput
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return capture.Notification{}, false, fmt.Errorf("browser input %q: %w", payload, err)
	}
	switch in.Kind {
	case "key":
		if in.VK <= 0 || in.VK > 0xFF {
			return capture.Notification{}, false, nil
		}
		return capture.KeyNote(in.VK, in.Down), true, nil
	case "move":
		return capture.MotionNote(in.DX, int(in.DY)), true, nil
	case "button":
		b, ok := domButtons[in.Btn]
		if !ok {
			return capture.Notification{}, false, nil
		}
		return capture.ButtonNote(b, in.Down), true, nil
	case "wheel":
		switch {
		case in.DY < 0:
			return capture.WheelNote(120), true, nil
		case in.DY > 0:
			return capture.WheelNote(-120), true, nil
		}
		return capture.Notification{}, false, nil
	}
	return capture.Notification{}, false, fmt.Errorf("browser input: unknown kind %q", in.Kind)
}

// Stream installs the page listeners and delivers page input until ctx
// ends or emit fails. Only one Stream may run at a time.
func (b *Browser) Stream(ctx context.Context, emit func(capture.Notification) error) error {
	ch := make(chan string, streamBuffer)
	if !b.sink.CompareAndSwap(nil, &ch) {
		return fmt.Errorf("browser: input stream already running")
	}
	defer b.sink.Store(nil)

	err := b.run(
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(listenerJS).Do(ctx)
			return err
		}),
		chromedp.Evaluate(listenerJS, nil),
	)
	if err != nil {
		return fmt.Errorf("browser: install input listeners: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.ctx.Done():
			return capture.ErrSourceClosed
		case payload := <-ch:
			n, ok, err := parseInput(payload)
			if err != nil {
				b.logger.Debug(err.Error())
				continue
			}
			if !ok {
				continue
			}
			if n.Kind == capture.KeyPress {
				b.own.Set(n.VK, n.Down)
			}
			if err := emit(n); err != nil {
				return err
			}
		}
	}
}
