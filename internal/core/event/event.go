// Package event holds the raw input-event domain types shared by the
// ingestion, storage and projection layers.
package event

// Type identifies the input device class an event came from.
type Type string

const (
	Keyboard Type = "keyboard"
	Mouse    Type = "mouse"
)

// Valid reports whether t is a recognised event type.
func (t Type) Valid() bool {
	return t == Keyboard || t == Mouse
}

// RawEvent is one accepted input event as persisted in raw_events.
// Immutable once written; the ID is assigned by the store.
type RawEvent struct {
	ID        int64
	Timestamp int64 // epoch seconds
	Type      Type
	Details   string
}

// Pending is an accepted event waiting in the write buffer. It carries
// only what the batched insert needs.
type Pending struct {
	Type      Type
	Timestamp int64
	Details   string
}

// Score weights: a mouse action counts five times a keystroke.
const (
	KeyboardWeight = 1
	MouseWeight    = 5
)

// Counts pairs keyboard and mouse event counts for a time window.
type Counts struct {
	Keyboard int64
	Mouse    int64
}

// Score returns the weighted activity metric for the counts.
func (c Counts) Score() int64 {
	return c.Keyboard*KeyboardWeight + c.Mouse*MouseWeight
}
