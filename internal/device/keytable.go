package device

import "sync/atomic"

// KeyTable is a KeyState fed by an input capture stream. Backends that
// cannot poll the keyboard directly answer IsKeyDown from it.
type KeyTable struct {
	down [256]atomic.Bool
}

// Set records a key transition. Out of range codes are ignored.
func (t *KeyTable) Set(vk int, down bool) {
	if vk < 0 || vk >= len(t.down) {
		return
	}
	t.down[vk].Store(down)
}

func (t *KeyTable) IsKeyDown(vk int) bool {
	if vk < 0 || vk >= len(t.down) {
		return false
	}
	return t.down[vk].Load()
}

// Reset marks every key released.
func (t *KeyTable) Reset() {
	for i := range t.down {
		t.down[i].Store(false)
	}
}
