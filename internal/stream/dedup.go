package stream

import (
	"sync"
	"time"
)

// DedupWindow tracks recently applied ack identifiers so redelivered
// envelopes can be dropped before they reach the reducer. Identifiers expire
// in arrival order after a fixed horizon, which bounds memory; the horizon
// must be longer than any expected redelivery delay.
type DedupWindow struct {
	mu      sync.Mutex
	horizon time.Duration
	order   []uint64
	seen    map[uint64]struct{}
}

// NewDedupWindow builds a window with the given expiry horizon.
func NewDedupWindow(horizon time.Duration) *DedupWindow {
	return &DedupWindow{
		horizon: horizon,
		seen:    make(map[uint64]struct{}),
	}
}

// Admit reports whether the ack identifier has not been seen within the
// window, recording it if so. Each admitted identifier schedules its own
// removal, oldest first.
func (w *DedupWindow) Admit(ack uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[ack]; ok {
		return false
	}

	w.seen[ack] = struct{}{}
	w.order = append(w.order, ack)
	time.AfterFunc(w.horizon, w.evictOldest)
	return true
}

// Len returns the number of identifiers currently held.
func (w *DedupWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *DedupWindow) evictOldest() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.order) == 0 {
		return
	}
	delete(w.seen, w.order[0])
	w.order = w.order[1:]
}
