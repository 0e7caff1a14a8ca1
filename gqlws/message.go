package gqlws

import (
	"encoding/json"
)

// Message is an outbound protocol frame. Payload is marshalled as given.
type Message struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ResponseMessage is an inbound frame with the payload left undecoded so
// the caller can pick a shape per frame type.
type ResponseMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
