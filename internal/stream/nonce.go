package stream

import (
	"math/rand/v2"
	"sync"
	"time"
)

// NewNonce returns a fresh correlation token for an optimistic operation.
// Tokens only need to be unlikely to collide within a single session.
func NewNonce() uint64 {
	return rand.Uint64N(1_000_000_000)
}

// nonceWindow remembers recently issued correlation tokens for a bounded
// time, oldest expiring first. Used to recognize echoed confirmations of
// our own commands.
type nonceWindow struct {
	mu     sync.Mutex
	ttl    time.Duration
	order  []uint64
	active map[uint64]struct{}
}

func newNonceWindow(ttl time.Duration) *nonceWindow {
	return &nonceWindow{
		ttl:    ttl,
		active: make(map[uint64]struct{}),
	}
}

func (w *nonceWindow) add(nonce uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.active[nonce]; ok {
		return
	}
	w.active[nonce] = struct{}{}
	w.order = append(w.order, nonce)
	time.AfterFunc(w.ttl, w.expireOldest)
}

func (w *nonceWindow) has(nonce uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[nonce]
	return ok
}

func (w *nonceWindow) expireOldest() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.order) == 0 {
		return
	}
	delete(w.active, w.order[0])
	w.order = w.order[1:]
}
