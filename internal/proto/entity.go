package proto

import (
	"encoding/json"
	"fmt"
)

// Activity is a client's connectivity state. On the wire it is a tagged
// object: {"activity":"Online"} or {"activity":"Offline","timestamp":<unix secs>}.
type Activity struct {
	State string
	Since uint64
}

const (
	ActivityOnline  = "Online"
	ActivityOffline = "Offline"
)

// Online returns an online activity value.
func Online() Activity {
	return Activity{State: ActivityOnline}
}

// Offline returns an offline activity value stamped with the given unix time.
func Offline(since uint64) Activity {
	return Activity{State: ActivityOffline, Since: since}
}

type activityWire struct {
	Activity  string  `json:"activity"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
}

func (a Activity) MarshalJSON() ([]byte, error) {
	w := activityWire{Activity: a.State}
	if a.State == ActivityOffline {
		since := a.Since
		w.Timestamp = &since
	}
	return json.Marshal(w)
}

func (a *Activity) UnmarshalJSON(data []byte) error {
	var w activityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Activity {
	case ActivityOnline:
		*a = Online()
	case ActivityOffline:
		a.State = ActivityOffline
		if w.Timestamp != nil {
			a.Since = *w.Timestamp
		}
	default:
		return fmt.Errorf("unknown activity %q", w.Activity)
	}
	return nil
}

// Client is a playback client as reported by the server.
type Client struct {
	ID       uint16   `json:"id"`
	IP       string   `json:"ip"`
	Hostname string   `json:"hostname"`
	Username string   `json:"username"`
	Alias    *string  `json:"alias"`
	Activity Activity `json:"activity"`
}

// Media is one library entry. Length is the track duration in milliseconds;
// Downloaded lists the ids of clients holding a local copy.
type Media struct {
	ID         uint16   `json:"id"`
	Name       string   `json:"name"`
	Downloaded []uint16 `json:"downloaded"`
	Length     uint64   `json:"length"`
}

// Group is an ordered selection of clients with a display color.
type Group struct {
	ID      uint16   `json:"id"`
	Name    string   `json:"name"`
	Members []uint16 `json:"members"`
	Color   uint32   `json:"color"`
}
