package capture

import (
	"context"
	"errors"
	"sync"

	"jordanella.com/rmac/internal/device"
	"jordanella.com/rmac/internal/logging"
)

// Hub runs one device Source and fans its notifications out to every
// subscriber, so capture, the stop key watch and the restart trigger can
// share a single hook. It also keeps a key table for backends that cannot
// poll key state.
type Hub struct {
	src    Source
	keys   device.KeyTable
	logger *logging.Logger

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	emit func(Notification) error
	done chan error
}

func NewHub(src Source, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{src: src, logger: logger, subs: make(map[int]*subscriber)}
}

// Keys returns the key table fed by the stream.
func (h *Hub) Keys() *device.KeyTable {
	return &h.keys
}

// Run pumps the underlying source until ctx ends or the source closes.
func (h *Hub) Run(ctx context.Context) error {
	err := h.src.Stream(ctx, h.dispatch)

	h.mu.Lock()
	for id, s := range h.subs {
		s.done <- ErrSourceClosed
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) dispatch(n Notification) error {
	if n.Kind == KeyPress {
		h.keys.Set(n.VK, n.Down)
	}

	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.mu.Lock()
		s, ok := h.subs[id]
		h.mu.Unlock()
		if !ok {
			continue
		}
		if err := s.emit(n); err != nil {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			s.done <- err
		}
	}
	return nil
}

// Stream subscribes emit to the hub; Hub satisfies Source.
func (h *Hub) Stream(ctx context.Context, emit func(Notification) error) error {
	s := &subscriber{emit: emit, done: make(chan error, 1)}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.mu.Unlock()

	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		return ctx.Err()
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
