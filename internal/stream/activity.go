package stream

import (
	"sync"

	"github.com/rs/zerolog"
)

// ActivityFunc receives a client's connectivity transition. state is
// proto.ActivityOnline or proto.ActivityOffline.
type ActivityFunc func(state string, id uint16)

// activityNotifier fans out online/offline transitions to any number of
// subscribers. Safe with zero subscribers; a panicking subscriber is
// contained and logged, never propagated into the reducer.
type activityNotifier struct {
	mu   sync.Mutex
	subs map[uint64]ActivityFunc
	next uint64
	log  *zerolog.Logger
}

func newActivityNotifier(logger *zerolog.Logger) *activityNotifier {
	return &activityNotifier{
		subs: make(map[uint64]ActivityFunc),
		log:  logger,
	}
}

// subscribe registers fn and returns its unsubscribe function. Unsubscribing
// twice is a no-op.
func (n *activityNotifier) subscribe(fn ActivityFunc) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *activityNotifier) notify(state string, id uint16) {
	n.mu.Lock()
	fns := make([]ActivityFunc, 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		n.call(fn, state, id)
	}
}

func (n *activityNotifier) call(fn ActivityFunc, state string, id uint16) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Any("panic", r).Msg("activity observer panicked")
		}
	}()
	fn(state, id)
}
