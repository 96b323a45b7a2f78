package stream

import (
	"reflect"
	"testing"
	"time"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

func TestReadyReplacesEverything(t *testing.T) {
	s := testStore(t)

	// Seed some unrelated state first.
	s.Apply(envelope(t, 1, nil, proto.EventClientCreated, testClient(99, "stale", proto.Online())))
	s.Apply(envelope(t, 2, nil, proto.EventMediaStarted, proto.MediaClientData{Media: 1, Client: 99}))

	ready := proto.ReadyData{
		Library: []proto.Media{{ID: 1, Name: "a.mp3", Downloaded: []uint16{2}, Length: 1000}},
		Clients: []proto.Client{testClient(2, "pi2", proto.Online())},
		Groups: []proto.Group{
			{ID: 1, Name: "Old", Members: []uint16{}, Color: 1},
			{ID: 2, Name: "New", Members: []uint16{}, Color: 2},
		},
		Playing: []uint16{2},
	}
	s.Apply(envelope(t, 3, nil, proto.EventReady, ready))

	clients := s.Clients()
	if len(clients) != 1 || clients[0].ID != 2 {
		t.Fatalf("expected only client 2 after Ready, got %+v", clients)
	}
	media := s.Media()
	if len(media) != 1 || media[0].ID != 1 {
		t.Fatalf("expected only media 1 after Ready, got %+v", media)
	}

	// Groups come back reversed: newest-created first.
	groups := s.Groups()
	if len(groups) != 2 || groups[0].ID != 2 || groups[1].ID != 1 {
		t.Fatalf("expected groups [2 1], got %+v", groups)
	}

	if !s.Playing(2) || s.Playing(99) {
		t.Fatalf("unexpected playing set %v", s.PlayingSet())
	}
}

func TestReadyReappliedIsStateNoop(t *testing.T) {
	s := testStore(t)

	ready := proto.ReadyData{
		Library: []proto.Media{{ID: 1, Name: "a.mp3", Downloaded: []uint16{}, Length: 1000}},
		Clients: []proto.Client{testClient(1, "pi1", proto.Online())},
		Groups:  []proto.Group{{ID: 1, Name: "G", Members: []uint16{}, Color: 1}},
		Playing: []uint16{1},
	}

	s.Apply(envelope(t, 1, nil, proto.EventReady, ready))
	before := snapshot(s)

	s.Apply(envelope(t, 2, nil, proto.EventReady, ready))
	after := snapshot(s)

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("redelivered Ready changed state:\nbefore %+v\nafter  %+v", before, after)
	}
}

type stateSnapshot struct {
	Media   []proto.Media
	Clients []proto.Client
	Groups  []proto.Group
	Playing []uint16
}

func snapshot(s *Store) stateSnapshot {
	return stateSnapshot{
		Media:   s.Media(),
		Clients: s.Clients(),
		Groups:  s.Groups(),
		Playing: s.PlayingSet(),
	}
}

func TestClientConnectedSetsOnlineAndNotifies(t *testing.T) {
	s := testStore(t)

	var gotState string
	var gotID uint16
	fired := 0
	unsubscribe := s.OnActivity(func(state string, id uint16) {
		gotState, gotID = state, id
		fired++
	})
	defer unsubscribe()

	s.Apply(envelope(t, 1, nil, proto.EventClientCreated, testClient(1, "pi1", proto.Offline(100))))
	s.Apply(envelope(t, 2, nil, proto.EventClientConnected, uint16(1)))

	clients := s.Clients()
	if len(clients) != 1 || clients[0].Activity.State != proto.ActivityOnline {
		t.Fatalf("expected client 1 online, got %+v", clients)
	}
	if fired != 1 || gotState != proto.ActivityOnline || gotID != 1 {
		t.Fatalf("expected one Online notification for client 1, got fired=%d state=%q id=%d", fired, gotState, gotID)
	}
}

func TestClientDisconnectedPrunesPlayingAndNotifies(t *testing.T) {
	s := testStore(t)

	s.Apply(envelope(t, 1, nil, proto.EventClientCreated, testClient(1, "pi1", proto.Online())))
	s.Apply(envelope(t, 2, nil, proto.EventClientCreated, testClient(2, "pi2", proto.Online())))
	s.Apply(envelope(t, 3, nil, proto.EventMediaStarted, proto.MediaClientData{Media: 5, Client: 1}))
	s.Apply(envelope(t, 4, nil, proto.EventMediaStarted, proto.MediaClientData{Media: 5, Client: 2}))

	var offline []uint16
	unsubscribe := s.OnActivity(func(state string, id uint16) {
		if state == proto.ActivityOffline {
			offline = append(offline, id)
		}
	})
	defer unsubscribe()

	s.Apply(envelope(t, 5, nil, proto.EventClientDisconnected, []uint16{1, 2}))

	for _, client := range s.Clients() {
		if client.Activity.State != proto.ActivityOffline {
			t.Fatalf("client %d should be offline, got %+v", client.ID, client.Activity)
		}
		if client.Activity.Since == 0 {
			t.Fatalf("client %d offline timestamp not set", client.ID)
		}
	}
	if len(s.PlayingSet()) != 0 {
		t.Fatalf("playing set should be empty, got %v", s.PlayingSet())
	}
	if len(offline) != 2 {
		t.Fatalf("expected 2 offline notifications, got %v", offline)
	}
}

func TestClientDeletedPrunesEverywhere(t *testing.T) {
	s := testStore(t)

	s.Apply(envelope(t, 1, nil, proto.EventReady, proto.ReadyData{
		Library: []proto.Media{{ID: 1, Name: "a.mp3", Downloaded: []uint16{1, 2}, Length: 100}},
		Clients: []proto.Client{testClient(1, "pi1", proto.Online()), testClient(2, "pi2", proto.Online())},
		Groups:  []proto.Group{},
		Playing: []uint16{1},
	}))

	s.Apply(envelope(t, 2, nil, proto.EventClientDeleted, uint16(1)))

	if len(s.Clients()) != 1 {
		t.Fatalf("expected one client left, got %+v", s.Clients())
	}
	if s.Playing(1) {
		t.Fatal("deleted client still in playing set")
	}
	media := s.Media()
	if !reflect.DeepEqual(media[0].Downloaded, []uint16{2}) {
		t.Fatalf("deleted client still in downloaded set: %v", media[0].Downloaded)
	}
}

func TestMediaDownloadedSetSemantics(t *testing.T) {
	s := testStore(t)

	s.Apply(envelope(t, 1, nil, proto.EventMediaCreated, proto.MediaCreatedData{ID: 1, Name: "a.mp3", Length: 100}))

	// Same transition delivered twice with distinct acks, bypassing dedup.
	s.Apply(envelope(t, 2, nil, proto.EventMediaDownloaded, proto.MediaClientData{Media: 1, Client: 7}))
	s.Apply(envelope(t, 3, nil, proto.EventMediaDownloaded, proto.MediaClientData{Media: 1, Client: 7}))

	media := s.Media()
	if len(media) != 1 {
		t.Fatalf("expected one media, got %+v", media)
	}
	if !reflect.DeepEqual(media[0].Downloaded, []uint16{7}) {
		t.Fatalf("expected downloaded=[7] exactly once, got %v", media[0].Downloaded)
	}
}

func TestMediaCreatedPromotesTempMedia(t *testing.T) {
	s := testStore(t)

	s.AddTempMedia(555, "upload.mp3")
	if len(s.TempMedia()) != 1 {
		t.Fatalf("expected one temp media, got %+v", s.TempMedia())
	}

	s.Apply(envelope(t, 1, nonceOf(555), proto.EventMediaCreated, proto.MediaCreatedData{ID: 9, Name: "upload.mp3", Length: 3000}))

	if len(s.TempMedia()) != 0 {
		t.Fatalf("temp media not promoted: %+v", s.TempMedia())
	}
	media := s.Media()
	if len(media) != 1 || media[0].Name != "upload.mp3" || len(media[0].Downloaded) != 0 {
		t.Fatalf("unexpected media after promotion: %+v", media)
	}
}

func TestMediaCreatedWithoutMatchingNonceAppends(t *testing.T) {
	s := testStore(t)

	// Another dashboard uploaded this; we have no placeholder for it.
	s.Apply(envelope(t, 1, nonceOf(111), proto.EventMediaCreated, proto.MediaCreatedData{ID: 3, Name: "other.mp3", Length: 100}))

	if len(s.Media()) != 1 {
		t.Fatalf("expected media appended, got %+v", s.Media())
	}
}

func TestRenameSuppression(t *testing.T) {
	s := testStore(t)
	s.Apply(envelope(t, 1, nil, proto.EventClientCreated, testClient(1, "pi1", proto.Online())))

	s.ApplyLocalRename(1, "kitchen", 777)

	clients := s.Clients()
	if clients[0].Alias == nil || *clients[0].Alias != "kitchen" {
		t.Fatalf("optimistic alias not applied: %+v", clients[0])
	}
	renameLogs := countLogs(s, "alias has been changed")

	// The echoed confirmation must not re-apply or re-log.
	alias := "kitchen"
	s.Apply(envelope(t, 2, nonceOf(777), proto.EventClientRenamed, proto.RenameData{ID: 1, Alias: &alias}))

	if got := countLogs(s, "alias has been changed") + countLogs(s, "has been renamed"); got != renameLogs {
		t.Fatalf("suppressed rename still logged, %d rename entries", got)
	}

	// A rename from elsewhere applies normally.
	other := "bedroom"
	s.Apply(envelope(t, 3, nonceOf(888), proto.EventClientRenamed, proto.RenameData{ID: 1, Alias: &other}))

	clients = s.Clients()
	if clients[0].Alias == nil || *clients[0].Alias != "bedroom" {
		t.Fatalf("foreign rename not applied: %+v", clients[0])
	}
}

func TestGroupCreatedPrependsPlaceholder(t *testing.T) {
	s := testStore(t)

	s.Apply(envelope(t, 1, nil, proto.EventGroupEdited, proto.Group{ID: 1, Name: "Existing", Members: []uint16{}, Color: 5}))
	s.Apply(envelope(t, 2, nil, proto.EventGroupCreated, uint16(7)))

	groups := s.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", groups)
	}
	placeholder := groups[0]
	if placeholder.ID != 7 || placeholder.Name != "Group #7" || placeholder.Color != placeholderGroupColor {
		t.Fatalf("unexpected placeholder group: %+v", placeholder)
	}
	if len(placeholder.Members) != 0 {
		t.Fatalf("placeholder group should have no members: %+v", placeholder)
	}

	// Redelivery with a fresh ack must not create a second group.
	s.Apply(envelope(t, 3, nil, proto.EventGroupCreated, uint16(7)))
	if len(s.Groups()) != 2 {
		t.Fatalf("duplicate GroupCreated added a group: %+v", s.Groups())
	}
}

func TestGroupMembershipEvents(t *testing.T) {
	s := testStore(t)

	s.Apply(envelope(t, 1, nil, proto.EventGroupCreated, uint16(1)))
	s.Apply(envelope(t, 2, nil, proto.EventGroupMemberAdded, proto.MemberData{Group: 1, Client: 4}))
	s.Apply(envelope(t, 3, nil, proto.EventGroupMemberAdded, proto.MemberData{Group: 1, Client: 4}))

	groups := s.Groups()
	if !reflect.DeepEqual(groups[0].Members, []uint16{4}) {
		t.Fatalf("expected members [4], got %v", groups[0].Members)
	}

	s.Apply(envelope(t, 4, nil, proto.EventGroupMemberDeleted, proto.MemberData{Group: 1, Client: 4}))
	if len(s.Groups()[0].Members) != 0 {
		t.Fatalf("member not removed: %+v", s.Groups()[0])
	}

	s.Apply(envelope(t, 5, nil, proto.EventGroupDeleted, uint16(1)))
	if len(s.Groups()) != 0 {
		t.Fatalf("group not deleted: %+v", s.Groups())
	}
}

func TestMediaStoppedRemovesFromPlaying(t *testing.T) {
	s := testStore(t)

	s.Apply(envelope(t, 1, nil, proto.EventMediaStarted, proto.MediaClientData{Media: 1, Client: 3}))
	if !s.Playing(3) {
		t.Fatal("client 3 should be playing")
	}

	s.Apply(envelope(t, 2, nil, proto.EventMediaStopped, uint16(3)))
	if s.Playing(3) {
		t.Fatal("client 3 should have stopped")
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	s := testStore(t)

	before := len(s.Logs())
	s.Apply(envelope(t, 1, nil, "BrandNewThing", map[string]any{"x": 1}))

	if len(s.Logs()) != before {
		t.Fatalf("unknown event produced a log entry: %+v", s.Logs())
	}
	if len(s.Clients()) != 0 || len(s.Media()) != 0 {
		t.Fatal("unknown event mutated state")
	}
}

func TestMalformedPayloadDoesNotMutate(t *testing.T) {
	s := testStore(t)

	env := envelope(t, 1, nil, proto.EventClientConnected, uint16(1))
	env.Payload.Data = []byte(`"not a number"`)
	s.Apply(env)

	if len(s.Clients()) != 0 || len(s.Logs()) != 0 {
		t.Fatalf("malformed payload mutated state: logs=%+v", s.Logs())
	}
}

func TestLogRetentionCap(t *testing.T) {
	s := NewStore(3, time.Minute, testLogger())

	for i := 0; i < 10; i++ {
		s.Log("entry")
	}
	s.Log("newest")

	logs := s.Logs()
	if len(logs) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(logs))
	}
	if logs[0].Message != "newest" {
		t.Fatalf("newest entry should be first, got %q", logs[0].Message)
	}
}
