package stream

import (
	"testing"
	"time"
)

func TestDedupAdmitAndReject(t *testing.T) {
	w := NewDedupWindow(time.Minute)

	if !w.Admit(1) {
		t.Fatal("first delivery should be admitted")
	}
	if w.Admit(1) {
		t.Fatal("redelivery should be rejected")
	}
	if !w.Admit(2) {
		t.Fatal("distinct ack should be admitted")
	}
	if w.Len() != 2 {
		t.Fatalf("expected 2 held identifiers, got %d", w.Len())
	}
}

func TestDedupExpiry(t *testing.T) {
	w := NewDedupWindow(20 * time.Millisecond)

	if !w.Admit(1) {
		t.Fatal("first delivery should be admitted")
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("identifier never expired, window len %d", w.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !w.Admit(1) {
		t.Fatal("ack should be admittable again after expiry")
	}
}

func TestDedupExpiresOldestFirst(t *testing.T) {
	w := NewDedupWindow(30 * time.Millisecond)

	w.Admit(1)
	time.Sleep(15 * time.Millisecond)
	w.Admit(2)

	// After the first horizon only ack 1 should have expired.
	time.Sleep(25 * time.Millisecond)
	if w.Admit(2) {
		t.Fatal("ack 2 should still be in the window")
	}
	if !w.Admit(1) {
		t.Fatal("ack 1 should have expired")
	}
}
