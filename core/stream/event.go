package stream

import "encoding/json"

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Watched tables. Change events carry the table name so cache dependencies
// can be declared against it.
const (
	TableActivity   = "activity_record"
	TableAttendance = "attendance_record"
	TableMessage    = "message"
	TableStudent    = "student"
)

// Event is a row-level change notification. It never carries enough data to
// rebuild the row; consumers refetch through their regular query path.
type Event struct {
	Table       string          `json:"table"`
	Type        EventType       `json:"type"`
	MadrassahID string          `json:"madrassah_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`

	remote bool
}

func NewEvent(table string, typ EventType, madrassahID string) Event {
	return Event{Table: table, Type: typ, MadrassahID: madrassahID}
}

// MarkRemote flags the event as injected by another app instance so
// relays do not echo it back onto the wire.
func (e Event) MarkRemote() Event {
	e.remote = true
	return e
}

func (e Event) IsRemote() bool { return e.remote }
