package entity

// EventKind is the kind of row change delivered by the realtime feed.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}

// RemoteEvent is a pushed or service-originated change to one report record.
// Delete events only need Record.ID and Record.PetID.
type RemoteEvent struct {
	Kind   EventKind    `json:"kind"`
	Record HealthReport `json:"record"`
}
