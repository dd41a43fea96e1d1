package bot

// RestartTrigger turns a polled key state into press events: it fires
// once when the key goes from up to down and not again until it has been
// released.
type RestartTrigger struct {
	prev bool
}

// Update feeds the current key state and reports a press.
func (t *RestartTrigger) Update(down bool) bool {
	pressed := down && !t.prev
	t.prev = down
	return pressed
}

// Prime records the current state without firing, so a key already held
// when watching starts is not taken as a press.
func (t *RestartTrigger) Prime(down bool) {
	t.prev = down
}
