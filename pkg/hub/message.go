// Package hub fans session events out to websocket subscribers.
package hub

import (
	"encoding/json"
	"time"
)

// Event is the envelope pushed to every subscriber.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	At        time.Time       `json:"at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes payload into an event of the given type.
func NewEvent(eventType, sessionID string, payload any) (Event, error) {
	ev := Event{Type: eventType, SessionID: sessionID, At: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Data = data
	}
	return ev, nil
}

// message is a pre-encoded frame queued for a client.
type message []byte
