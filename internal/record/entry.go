// Package record keeps a binary journal of host sessions: every line sent or
// received on the link, plus session state changes, encoded as CBOR records.
package record

import "time"

// Direction of a recorded line.
type Direction uint8

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "OUT"
	case DirectionIn:
		return "IN"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies an entry.
type Kind uint8

const (
	KindLine Kind = iota
	KindState
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindState:
		return "state"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one journal record. Integer keys keep the file compact.
type Entry struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	Kind      Kind      `cbor:"3,keyasint"`
	Direction Direction `cbor:"4,keyasint,omitempty"`
	Line      string    `cbor:"5,keyasint,omitempty"`
	State     string    `cbor:"6,keyasint,omitempty"`
	Error     string    `cbor:"7,keyasint,omitempty"`
	Channel   int       `cbor:"8,keyasint,omitempty"`
}

// Recorder accepts journal entries. Implementations must be safe for
// concurrent use and must not fail the caller.
type Recorder interface {
	Record(e Entry)
}

// Nop drops every entry.
type Nop struct{}

func (Nop) Record(Entry) {}
