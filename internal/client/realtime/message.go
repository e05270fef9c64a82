// Package realtime maintains the push channel that delivers row changes
// from the backend as they happen, between sync cycles.
package realtime

import (
	"encoding/json"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// MessageType discriminates frames on the channel.
type MessageType string

const (
	TypeSubscribe  MessageType = "subscribe"
	TypeSubscribed MessageType = "subscribed"
	TypeChange     MessageType = "change"
	TypeHeartbeat  MessageType = "heartbeat"
	TypeError      MessageType = "error"
)

// Message is the wire envelope of the channel.
type Message struct {
	Type    MessageType     `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Token   string          `json:"access_token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage wraps a payload into an envelope.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}
	return &Message{Type: msgType, Payload: payloadBytes}, nil
}

// UnmarshalPayload decodes the payload into v.
func (m *Message) UnmarshalPayload(v any) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// EventType is the kind of row change carried by a change frame.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one row change. New carries the row for inserts and updates;
// Old carries at least the id for deletions.
type Event struct {
	Table models.Table    `json:"table"`
	Type  EventType       `json:"eventType"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// Status is a channel lifecycle notification.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)
