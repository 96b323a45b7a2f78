package stream

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(0, time.Minute, testLogger())
}

func envelope(t *testing.T, ack uint64, nonce *uint64, kind string, payload any) proto.Envelope {
	t.Helper()
	ev, err := proto.NewEvent(kind, payload)
	if err != nil {
		t.Fatalf("encode %s payload: %v", kind, err)
	}
	return proto.Envelope{Payload: ev, Nonce: nonce, Ack: ack}
}

func nonceOf(n uint64) *uint64 {
	return &n
}

func countLogs(s *Store, substr string) int {
	count := 0
	for _, entry := range s.Logs() {
		if strings.Contains(entry.Message, substr) {
			count++
		}
	}
	return count
}

func testClient(id uint16, hostname string, activity proto.Activity) proto.Client {
	return proto.Client{
		ID:       id,
		IP:       "192.168.0.10",
		Hostname: hostname,
		Username: "pi",
		Activity: activity,
	}
}
