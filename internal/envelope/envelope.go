// Package envelope defines the wire message exchanged between the
// supervisor and its child processes, and the validation rules every
// inbound or outbound message must satisfy.
package envelope

import (
	"encoding/json"
)

// Kind is the envelope's message class. The numeric ordinal is part of
// the wire contract (see Encode/Decode) and must never be renumbered.
type Kind int

const (
	Command Kind = iota
	Response
	Event
	Heartbeat
	Shutdown
	Error
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Response:
		return "response"
	case Event:
		return "event"
	case Heartbeat:
		return "heartbeat"
	case Shutdown:
		return "shutdown"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MaxPayloadBytes is the hard ceiling on Envelope.Payload enforced by
// Validate.
const MaxPayloadBytes = 1 << 20 // 1 MiB

// Envelope is a single structured message exchanged over a Channel.
type Envelope struct {
	Kind      Kind
	Source    string
	Target    string
	Command   string
	Payload   json.RawMessage
	Timestamp uint64
	ID        string
}

// wire is the §6 on-disk/on-wire shape. Field names are part of the
// contract and must not change.
type wire struct {
	Type      int             `json:"type"`
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Command   string          `json:"command"`
	Data      json.RawMessage `json:"data"`
	Timestamp uint64          `json:"timestamp"`
	MessageID string          `json:"message_id"`
}

// emptyPayload is substituted for a nil/empty Payload so encode always
// emits a well-formed JSON value for "data".
var emptyPayload = json.RawMessage("{}")

func (e Envelope) toWire() wire {
	data := e.Payload
	if len(data) == 0 {
		data = emptyPayload
	}
	return wire{
		Type:      int(e.Kind),
		Source:    e.Source,
		Target:    e.Target,
		Command:   e.Command,
		Data:      data,
		Timestamp: e.Timestamp,
		MessageID: e.ID,
	}
}

func fromWire(w wire) Envelope {
	return Envelope{
		Kind:      Kind(w.Type),
		Source:    w.Source,
		Target:    w.Target,
		Command:   w.Command,
		Payload:   w.Data,
		Timestamp: w.Timestamp,
		ID:        w.MessageID,
	}
}
