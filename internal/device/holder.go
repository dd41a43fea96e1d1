package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

// KeyHolder tracks which keys a controller is holding down so that every
// exit path can release exactly those keys. Hold and Release are
// idempotent: a key already in the requested state sends nothing.
type KeyHolder struct {
	inj  Injector
	mu   sync.Mutex
	held map[int]bool
}

func NewKeyHolder(inj Injector) *KeyHolder {
	return &KeyHolder{inj: inj, held: make(map[int]bool)}
}

// Hold presses vk unless it is already held.
func (h *KeyHolder) Hold(vk int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held[vk] {
		return nil
	}
	if err := h.inj.Key(vk, true); err != nil {
		return err
	}
	h.held[vk] = true
	return nil
}

// Release lets go of vk if it is held.
func (h *KeyHolder) Release(vk int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.held[vk] {
		return nil
	}
	delete(h.held, vk)
	return h.inj.Key(vk, false)
}

// Set holds or releases vk.
func (h *KeyHolder) Set(vk int, down bool) error {
	if down {
		return h.Hold(vk)
	}
	return h.Release(vk)
}

// IsHeld reports whether vk is currently held by this holder.
func (h *KeyHolder) IsHeld(vk int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.held[vk]
}

// Held returns the held keys in ascending order.
func (h *KeyHolder) Held() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]int, 0, len(h.held))
	for vk := range h.held {
		keys = append(keys, vk)
	}
	sort.Ints(keys)
	return keys
}

// ReleaseAll releases every held key. The holder is empty afterwards even
// if some releases failed; the first error is returned.
func (h *KeyHolder) ReleaseAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]int, 0, len(h.held))
	for vk := range h.held {
		keys = append(keys, vk)
	}
	sort.Ints(keys)

	var first error
	for _, vk := range keys {
		if err := h.inj.Key(vk, false); err != nil && first == nil {
			first = err
		}
		delete(h.held, vk)
	}
	return first
}

// Pulse holds vk for d and releases it, returning early if ctx ends.
func (h *KeyHolder) Pulse(ctx context.Context, vk int, d time.Duration) error {
	if err := h.Hold(vk); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return h.Release(vk)
}
