package simserver

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

const defaultGroupColor uint32 = 0xf5c2e7

// state is the simulator's in-memory world: the authoritative library,
// client list, groups and playing set, plus the dashboard subscriber
// registry. Every mutation broadcasts the corresponding event with a fresh
// ack, mirroring the real backend.
type state struct {
	mu      sync.Mutex
	nextID  uint16
	ack     uint64
	library []proto.Media
	clients []proto.Client
	groups  []proto.Group
	playing map[uint16]struct{}
	subs    map[string]chan []byte
	log     *zerolog.Logger
}

func newState(logger *zerolog.Logger) *state {
	return &state{
		playing: make(map[uint16]struct{}),
		subs:    make(map[string]chan []byte),
		log:     logger,
	}
}

// subscribe registers a dashboard stream and queues its initial Ready
// snapshot. The returned id releases the subscription via unsubscribe.
func (s *state) subscribe() (string, <-chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan []byte, 32)
	s.subs[id] = ch

	playing := make([]uint16, 0, len(s.playing))
	for client := range s.playing {
		playing = append(playing, client)
	}

	ready := proto.ReadyData{
		Library: append([]proto.Media(nil), s.library...),
		Clients: append([]proto.Client(nil), s.clients...),
		Groups:  append([]proto.Group(nil), s.groups...),
		Playing: playing,
	}
	if frame, ok := s.frame(proto.EventReady, ready, nil); ok {
		ch <- frame
	}

	s.log.Info().Str("subscriber", id).Msg("dashboard connected")
	return id, ch
}

func (s *state) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
		s.log.Info().Str("subscriber", id).Msg("dashboard disconnected")
	}
}

// frame builds one SSE frame carrying the event with the next ack.
// Must be called with mu held.
func (s *state) frame(kind string, payload any, nonce *uint64) ([]byte, bool) {
	ev, err := proto.NewEvent(kind, payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", kind).Msg("encode event")
		return nil, false
	}

	s.ack++
	data, err := json.Marshal(proto.Envelope{Payload: ev, Nonce: nonce, Ack: s.ack})
	if err != nil {
		s.log.Error().Err(err).Str("type", kind).Msg("encode envelope")
		return nil, false
	}

	return []byte(fmt.Sprintf("data: %s\n\n", data)), true
}

// broadcast sends the event to every dashboard subscriber. Slow subscribers
// drop frames rather than stall the caller. Must be called with mu held.
func (s *state) broadcast(kind string, payload any, nonce *uint64) {
	frame, ok := s.frame(kind, payload, nonce)
	if !ok {
		return
	}
	for id, ch := range s.subs {
		select {
		case ch <- frame:
		default:
			s.log.Warn().Str("subscriber", id).Str("type", kind).Msg("subscriber lagging, frame dropped")
		}
	}
}

func (s *state) newID() uint16 {
	s.nextID++
	return s.nextID
}

func (s *state) findClient(id uint16) *proto.Client {
	for i := range s.clients {
		if s.clients[i].ID == id {
			return &s.clients[i]
		}
	}
	return nil
}

func (s *state) findMedia(id uint16) *proto.Media {
	for i := range s.library {
		if s.library[i].ID == id {
			return &s.library[i]
		}
	}
	return nil
}

func (s *state) findGroup(id uint16) *proto.Group {
	for i := range s.groups {
		if s.groups[i].ID == id {
			return &s.groups[i]
		}
	}
	return nil
}

func unixNow() uint64 {
	return uint64(time.Now().Unix())
}
