/*
Package relay contains the core logic of the message relay: the wire protocol,
the session registry binding connections to identities, the point-to-point
message router, and the hub event loop that ties them together.

This file defines the wire protocol: the frame envelope and the payload types
exchanged between client and server.
*/
package relay

import (
	"encoding/json"
	"fmt"

	"dmrelay/internal/identity"
)

// EventType names a frame's event on the wire.
type EventType string

const (
	// EventIdentify binds the connection to a claimed identity (client to server).
	EventIdentify EventType = "identify"

	// EventMessage carries a point-to-point chat message (both directions).
	EventMessage EventType = "message"

	// EventTyping carries an ephemeral typing signal (both directions).
	EventTyping EventType = "typing"

	// EventError carries an error report (server to client only).
	EventError EventType = "error"
)

// MaxTextBytes is the maximum allowed size (in bytes) for message text.
const MaxTextBytes = 5000

// Frame is the envelope wrapping every event on the wire.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is a point-to-point chat message. It is immutable once created and
// exists only in transit and in each client's local log; the relay never
// persists it.
type Message struct {
	// ID is unique within the sender's log (UUID v4 in this implementation).
	ID string `json:"id"`

	// From and To are identity IDs, not connection handles.
	From string `json:"from"`
	To   string `json:"to"`

	Text string `json:"text"`

	// FileName is attachment metadata only; file content never crosses the relay.
	FileName string `json:"fileName,omitempty"`

	// Time is the sender's RFC3339 creation timestamp.
	Time string `json:"time"`
}

// IdentifyPayload is the identify handshake body: the claimed identity plus an
// optional signed token for verifiers that require one.
type IdentifyPayload struct {
	identity.Identity

	Token string `json:"token,omitempty"`
}

// TypingSignal is a transient typing indicator. From is filled in by the
// server from the sender's binding. To is optional: when set, the signal is
// delivered only to connections resolving to that identity; when empty it is
// broadcast to every other connection.
type TypingSignal struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload is the body of an EventError frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EncodeFrame marshals a payload into a complete wire frame.
func EncodeFrame(eventType EventType, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return json.Marshal(Frame{
		Type:    eventType,
		Payload: payloadBytes,
	})
}
