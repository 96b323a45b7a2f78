package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

// placeholderGroupColor is the color assigned to groups before the server
// delivers their real settings.
const placeholderGroupColor uint32 = 0xf5c2e7

// TempMedia is a placeholder for an upload the server has not confirmed yet.
// It is keyed by the upload's correlation nonce and removed when the matching
// MediaCreated event arrives. A failed upload leaves it in place until the
// process restarts; there is deliberately no eviction timer.
type TempMedia struct {
	Nonce uint64
	Name  string
}

// LogEntry is one line of the dashboard activity log, newest first.
type LogEntry struct {
	Time    time.Time
	Message string
}

// Store holds the derived projections and applies one event at a time.
// All mutation goes through Apply or the optimistic helpers; readers get
// copies, so no caller ever observes a half-applied transition.
type Store struct {
	mu        sync.RWMutex
	media     []proto.Media
	tempMedia []TempMedia
	clients   []proto.Client
	groups    []proto.Group
	playing   map[uint16]struct{}
	logs      []LogEntry

	retention int
	renames   *nonceWindow
	notifier  *activityNotifier
	log       *zerolog.Logger
	now       func() time.Time
}

// NewStore builds an empty store. retention caps the activity log length
// (0 keeps everything); renameTTL bounds rename-echo suppression.
func NewStore(retention int, renameTTL time.Duration, logger *zerolog.Logger) *Store {
	return &Store{
		playing:   make(map[uint16]struct{}),
		retention: retention,
		renames:   newNonceWindow(renameTTL),
		notifier:  newActivityNotifier(logger),
		log:       logger,
		now:       time.Now,
	}
}

// OnActivity registers fn for online/offline transitions and returns its
// unsubscribe function.
func (s *Store) OnActivity(fn ActivityFunc) func() {
	return s.notifier.subscribe(fn)
}

// Log appends one activity-log line. Used by the connection manager and the
// command layer for locally originated entries.
func (s *Store) Log(message string) {
	s.mu.Lock()
	s.appendLog(message)
	s.mu.Unlock()
}

// appendLog must be called with mu held.
func (s *Store) appendLog(message string) {
	s.logs = append([]LogEntry{{Time: s.now(), Message: message}}, s.logs...)
	if s.retention > 0 && len(s.logs) > s.retention {
		s.logs = s.logs[:s.retention]
	}
}

// Apply performs exactly one state transition for the envelope's event.
// Unknown event kinds are logged and skipped; decode failures never crash
// the pipeline.
func (s *Store) Apply(env proto.Envelope) {
	ev := env.Payload

	var notify []activityChange
	s.mu.Lock()

	switch ev.Type {
	case proto.EventReady:
		var data proto.ReadyData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Received initial data from server, received %d media, %d clients and %d groups",
			len(data.Library), len(data.Clients), len(data.Groups)))
		s.media = data.Library
		s.clients = data.Clients
		s.groups = reversed(data.Groups)
		s.playing = make(map[uint16]struct{}, len(data.Playing))
		for _, id := range data.Playing {
			s.playing[id] = struct{}{}
		}

	case proto.EventClientCreated:
		var client proto.Client
		if !s.decode(ev, &client) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %s has been created", client.Hostname))
		s.clients = append(s.clients, client)

	case proto.EventClientConnected:
		var id uint16
		if !s.decode(ev, &id) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %d has connected", id))
		for i := range s.clients {
			if s.clients[i].ID == id {
				s.clients[i].Activity = proto.Online()
			}
		}
		notify = append(notify, activityChange{proto.ActivityOnline, id})

	case proto.EventClientDisconnected:
		var ids []uint16
		if !s.decode(ev, &ids) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %s has disconnected", joinIDs(ids)))
		since := uint64(s.now().Unix())
		for i := range s.clients {
			if containsID(ids, s.clients[i].ID) {
				s.clients[i].Activity = proto.Offline(since)
			}
		}
		for _, id := range ids {
			delete(s.playing, id)
			notify = append(notify, activityChange{proto.ActivityOffline, id})
		}

	case proto.EventClientDeleted:
		var id uint16
		if !s.decode(ev, &id) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %d has been deleted", id))
		s.clients = removeClient(s.clients, id)
		delete(s.playing, id)
		for i := range s.media {
			s.media[i].Downloaded = removeID(s.media[i].Downloaded, id)
		}

	case proto.EventClientRenamed:
		if env.Nonce != nil && s.renames.has(*env.Nonce) {
			// Our own rename echoed back; already applied optimistically.
			break
		}
		var data proto.RenameData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %d has been renamed to %s", data.ID, aliasString(data.Alias)))
		for i := range s.clients {
			if s.clients[i].ID == data.ID {
				s.clients[i].Alias = data.Alias
			}
		}

	case proto.EventMediaCreated:
		var data proto.MediaCreatedData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Media %s has been uploaded", data.Name))
		s.media = append(s.media, proto.Media{
			ID:         data.ID,
			Name:       data.Name,
			Length:     data.Length,
			Downloaded: []uint16{},
		})
		if env.Nonce != nil {
			s.tempMedia = removeTemp(s.tempMedia, *env.Nonce)
		}

	case proto.EventMediaDeleted:
		var id uint16
		if !s.decode(ev, &id) {
			break
		}
		s.appendLog(fmt.Sprintf("Media %d has been deleted", id))
		s.media = removeMedia(s.media, id)

	case proto.EventMediaDownloaded:
		var data proto.MediaClientData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Media %d has been downloaded by client %d", data.Media, data.Client))
		for i := range s.media {
			if s.media[i].ID == data.Media && !containsID(s.media[i].Downloaded, data.Client) {
				s.media[i].Downloaded = append(s.media[i].Downloaded, data.Client)
			}
		}

	case proto.EventMediaStarted:
		var data proto.MediaClientData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Media %d has been started by client %d", data.Media, data.Client))
		s.playing[data.Client] = struct{}{}

	case proto.EventMediaStopped:
		var id uint16
		if !s.decode(ev, &id) {
			break
		}
		s.appendLog(fmt.Sprintf("Playback has been stopped for client %d", id))
		delete(s.playing, id)

	case proto.EventGroupCreated:
		var id uint16
		if !s.decode(ev, &id) {
			break
		}
		if !containsGroup(s.groups, id) {
			s.appendLog("Group has been created")
			s.groups = append([]proto.Group{{
				ID:      id,
				Name:    fmt.Sprintf("Group #%d", id),
				Members: []uint16{},
				Color:   placeholderGroupColor,
			}}, s.groups...)
		}

	case proto.EventGroupEdited:
		var group proto.Group
		if !s.decode(ev, &group) {
			break
		}
		s.appendLog(fmt.Sprintf("Group %s has been updated", group.Name))
		replaced := false
		for i := range s.groups {
			if s.groups[i].ID == group.ID {
				s.groups[i] = group
				replaced = true
			}
		}
		if !replaced {
			s.groups = append([]proto.Group{group}, s.groups...)
		}

	case proto.EventGroupMemberAdded:
		var data proto.MemberData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %d has been added to group %d", data.Client, data.Group))
		for i := range s.groups {
			if s.groups[i].ID == data.Group && !containsID(s.groups[i].Members, data.Client) {
				s.groups[i].Members = append(s.groups[i].Members, data.Client)
			}
		}

	case proto.EventGroupMemberDeleted:
		var data proto.MemberData
		if !s.decode(ev, &data) {
			break
		}
		s.appendLog(fmt.Sprintf("Client %d has been removed from group %d", data.Client, data.Group))
		for i := range s.groups {
			if s.groups[i].ID == data.Group {
				s.groups[i].Members = removeID(s.groups[i].Members, data.Client)
			}
		}

	case proto.EventGroupDeleted:
		var id uint16
		if !s.decode(ev, &id) {
			break
		}
		s.appendLog(fmt.Sprintf("Group %d has been deleted", id))
		s.groups = removeGroup(s.groups, id)

	default:
		s.log.Warn().Str("type", ev.Type).Msg("unhandled event")
	}

	s.mu.Unlock()

	for _, change := range notify {
		s.notifier.notify(change.state, change.id)
	}
}

// decode must be called with mu held.
func (s *Store) decode(ev proto.Event, dst any) bool {
	if err := json.Unmarshal(ev.Data, dst); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Msg("malformed event payload")
		return false
	}
	return true
}

type activityChange struct {
	state string
	id    uint16
}

// --- optimistic local updates, used by the command layer ---

// AddTempMedia records an in-flight upload placeholder and its intent log line.
func (s *Store) AddTempMedia(nonce uint64, name string) {
	s.mu.Lock()
	s.tempMedia = append(s.tempMedia, TempMedia{Nonce: nonce, Name: name})
	s.appendLog(fmt.Sprintf("Media %s has been set for upload", name))
	s.mu.Unlock()
}

// ApplyLocalRename sets a client's alias optimistically and marks the nonce
// so the echoed ClientRenamed confirmation is suppressed. Best effort: a
// concurrent rename from another dashboard still wins on the next Ready.
func (s *Store) ApplyLocalRename(id uint16, alias string, nonce uint64) {
	s.mu.Lock()
	s.appendLog(fmt.Sprintf("Client %d alias has been changed to %s", id, alias))
	for i := range s.clients {
		if s.clients[i].ID == id {
			a := alias
			s.clients[i].Alias = &a
		}
	}
	s.renames.add(nonce)
	s.mu.Unlock()
}

// --- snapshot accessors ---

// Media returns a copy of the library projection.
func (s *Store) Media() []proto.Media {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]proto.Media, len(s.media))
	for i, m := range s.media {
		m.Downloaded = append([]uint16(nil), m.Downloaded...)
		out[i] = m
	}
	return out
}

// TempMedia returns a copy of the pending upload placeholders.
func (s *Store) TempMedia() []TempMedia {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TempMedia(nil), s.tempMedia...)
}

// Clients returns a copy of the client projection.
func (s *Store) Clients() []proto.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]proto.Client(nil), s.clients...)
}

// Groups returns a copy of the group projection, newest first.
func (s *Store) Groups() []proto.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]proto.Group, len(s.groups))
	for i, g := range s.groups {
		g.Members = append([]uint16(nil), g.Members...)
		out[i] = g
	}
	return out
}

// Playing reports whether the given client is currently playing.
func (s *Store) Playing(id uint16) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.playing[id]
	return ok
}

// PlayingSet returns the ids of all currently playing clients.
func (s *Store) PlayingSet() []uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint16, 0, len(s.playing))
	for id := range s.playing {
		out = append(out, id)
	}
	return out
}

// Logs returns a copy of the activity log, newest first.
func (s *Store) Logs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

// --- small slice helpers ---

func reversed(groups []proto.Group) []proto.Group {
	out := make([]proto.Group, len(groups))
	for i, g := range groups {
		out[len(groups)-1-i] = g
	}
	return out
}

func containsID(ids []uint16, id uint16) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []uint16, id uint16) []uint16 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeClient(clients []proto.Client, id uint16) []proto.Client {
	out := clients[:0]
	for _, c := range clients {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func removeMedia(media []proto.Media, id uint16) []proto.Media {
	out := media[:0]
	for _, m := range media {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func removeGroup(groups []proto.Group, id uint16) []proto.Group {
	out := groups[:0]
	for _, g := range groups {
		if g.ID != id {
			out = append(out, g)
		}
	}
	return out
}

func removeTemp(temp []TempMedia, nonce uint64) []TempMedia {
	out := temp[:0]
	for _, t := range temp {
		if t.Nonce != nonce {
			out = append(out, t)
		}
	}
	return out
}

func containsGroup(groups []proto.Group, id uint16) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

func joinIDs(ids []uint16) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

func aliasString(alias *string) string {
	if alias == nil {
		return "<none>"
	}
	return *alias
}
