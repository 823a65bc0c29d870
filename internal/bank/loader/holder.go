package loader

import "sync/atomic"

// Holder publishes the current snapshot. Readers take the pointer once per
// request and keep working against it even if a reload swaps in a newer one.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns a holder seeded with initial.
func NewHolder(initial *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(initial)
	return h
}

// Current returns the snapshot in effect. Never blocks.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}
