package monitor

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags a feed envelope with the merge rule it selects.
type EventType string

const (
	EventNew     EventType = "new"
	EventUpdate  EventType = "update"
	EventRemoved EventType = "removed"
)

// PayloadKind says what an envelope's Data decodes to. Each stream carries
// exactly one kind; the adapter is configured with it.
type PayloadKind int

const (
	PayloadPlace PayloadKind = iota
	PayloadSupply
)

// Envelope is one change notification as delivered by the incremental feed.
type Envelope struct {
	EventType EventType       `json:"EventType"`
	Data      json.RawMessage `json:"Data"`
	Timestamp time.Time       `json:"Timestamp"`
}

// Change is a decoded envelope ready for reconciliation. Exactly one of
// Place or Supply is set, depending on the source stream.
type Change struct {
	Type      EventType
	Place     *Place
	Supply    *Supply
	Timestamp time.Time
}

// DecodeChange decodes a raw incremental envelope into a Change.
// The supplies stream announces removals as "exit"; that normalises to
// EventRemoved so the engine has a single removal rule.
func DecodeChange(data []byte, kind PayloadKind) (Change, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Change{}, fmt.Errorf("decode envelope: %w", err)
	}

	typ := env.EventType
	if typ == "exit" {
		typ = EventRemoved
	}
	switch typ {
	case EventNew, EventUpdate, EventRemoved:
	default:
		return Change{}, fmt.Errorf("unknown event type %q", env.EventType)
	}

	ch := Change{Type: typ, Timestamp: env.Timestamp}

	switch kind {
	case PayloadPlace:
		var p Place
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Change{}, fmt.Errorf("decode place payload: %w", err)
		}
		ch.Place = &p
	case PayloadSupply:
		var s Supply
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return Change{}, fmt.Errorf("decode supply payload: %w", err)
		}
		ch.Supply = &s
	default:
		return Change{}, fmt.Errorf("unknown payload kind %d", kind)
	}

	return ch, nil
}

// refreshPayload is the full-refresh stream shape: the complete place set,
// where absence means removal.
type refreshPayload struct {
	Data []Place `json:"data"`
}

// DecodeRefresh decodes a full-refresh payload into the authoritative
// place list it carries.
func DecodeRefresh(data []byte) ([]Place, error) {
	var p refreshPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode refresh payload: %w", err)
	}
	if p.Data == nil {
		return nil, fmt.Errorf("refresh payload missing data array")
	}
	return p.Data, nil
}
