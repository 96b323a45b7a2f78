package proto

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps one server-push event. Ack is the delivery identifier used
// for deduplication; Nonce, when present, correlates the event to the local
// command invocation that caused it.
type Envelope struct {
	Payload Event   `json:"payload"`
	Nonce   *uint64 `json:"nonce"`
	Ack     uint64  `json:"ack"`
}

// Event is the tagged union carried inside an envelope. Data stays raw until
// the consumer switches on Type; unknown types are the caller's problem to
// skip, not a decode error.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"payload,omitempty"`
}

const (
	EventReady              = "Ready"
	EventClientCreated      = "ClientCreated"
	EventClientConnected    = "ClientConnected"
	EventClientDisconnected = "ClientDisconnected"
	EventClientDeleted      = "ClientDeleted"
	EventClientRenamed      = "ClientRenamed"
	EventMediaCreated       = "MediaCreated"
	EventMediaDeleted       = "MediaDeleted"
	EventMediaDownloaded    = "MediaDownloaded"
	EventMediaStarted       = "MediaStarted"
	EventMediaStopped       = "MediaStopped"
	EventGroupCreated       = "GroupCreated"
	EventGroupEdited        = "GroupEdited"
	EventGroupMemberAdded   = "GroupMemberAdded"
	EventGroupMemberDeleted = "GroupMemberDeleted"
	EventGroupDeleted       = "GroupDeleted"
)

// ReadyData is the initial-sync snapshot sent once per stream subscription.
type ReadyData struct {
	Library []Media  `json:"library"`
	Clients []Client `json:"clients"`
	Groups  []Group  `json:"groups"`
	Playing []uint16 `json:"playing"`
}

// MediaCreatedData announces a new library entry.
type MediaCreatedData struct {
	ID     uint16 `json:"id"`
	Name   string `json:"name"`
	Length uint64 `json:"length"`
}

// MediaClientData pairs a media id with a client id (MediaDownloaded, MediaStarted).
type MediaClientData struct {
	Media  uint16 `json:"media"`
	Client uint16 `json:"client"`
}

// RenameData is the ClientRenamed payload. On the wire it is a two-element
// tuple [id, alias|null].
type RenameData struct {
	ID    uint16
	Alias *string
}

func (r RenameData) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.ID, r.Alias})
}

func (r *RenameData) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("rename payload has %d elements, want 2", len(parts))
	}
	if err := json.Unmarshal(parts[0], &r.ID); err != nil {
		return err
	}
	return json.Unmarshal(parts[1], &r.Alias)
}

// MemberData is the GroupMemberAdded/GroupMemberDeleted payload, a
// [group, client] tuple.
type MemberData struct {
	Group  uint16
	Client uint16
}

func (m MemberData) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint16{m.Group, m.Client})
}

func (m *MemberData) UnmarshalJSON(data []byte) error {
	var pair [2]uint16
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	m.Group, m.Client = pair[0], pair[1]
	return nil
}

// NewEvent builds a tagged event from a kind and its payload value.
func NewEvent(kind string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Event{Type: kind, Data: data}, nil
}
