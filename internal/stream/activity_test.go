package stream

import (
	"testing"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

func TestActivityNotifierZeroSubscribers(t *testing.T) {
	n := newActivityNotifier(testLogger())
	// Must not panic with nobody listening.
	n.notify(proto.ActivityOnline, 1)
}

func TestActivityNotifierSubscribeUnsubscribe(t *testing.T) {
	n := newActivityNotifier(testLogger())

	var first, second []uint16
	unsub1 := n.subscribe(func(_ string, id uint16) { first = append(first, id) })
	unsub2 := n.subscribe(func(_ string, id uint16) { second = append(second, id) })

	n.notify(proto.ActivityOffline, 1)

	unsub1()
	unsub1() // double unsubscribe is a no-op
	n.notify(proto.ActivityOffline, 2)
	unsub2()

	if len(first) != 1 || first[0] != 1 {
		t.Fatalf("first subscriber saw %v, want [1]", first)
	}
	if len(second) != 2 {
		t.Fatalf("second subscriber saw %v, want [1 2]", second)
	}
}

func TestActivityNotifierContainsPanic(t *testing.T) {
	n := newActivityNotifier(testLogger())

	n.subscribe(func(string, uint16) { panic("listener bug") })
	called := false
	n.subscribe(func(string, uint16) { called = true })

	n.notify(proto.ActivityOnline, 3)

	if !called {
		t.Fatal("panicking subscriber must not starve the others")
	}
}
