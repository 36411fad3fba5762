package events

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types published or consumed by the chatbot.
const (
	TypeTurnStored       = "conversation.turn_stored"
	TypeConversionMarked = "conversation.converted"
	TypeBookingCompleted = "booking.completed"
)

// HeaderOccurredAt carries the event timestamp next to the JSON payload.
const HeaderOccurredAt = "Occurred-At"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted type, e.g. "conversation.converted".
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// TypeFromSubject strips the "events." prefix from a subject.
func TypeFromSubject(subject string) string {
	return strings.TrimPrefix(subject, "events.")
}

// Decode re-encodes the event payload into out.
func Decode(e Event, out interface{}) error {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
