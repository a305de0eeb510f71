package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an event record.
type EventType string

const (
	StatusChange    EventType = "StatusChange"
	ResourceUpdated EventType = "ResourceUpdated"
	ResourceAdded   EventType = "ResourceAdded"
	ResourceRemoved EventType = "ResourceRemoved"
	Alert           EventType = "Alert"
)

// EventTypes lists every event type in declaration order.
func EventTypes() []EventType {
	return []EventType{StatusChange, ResourceUpdated, ResourceAdded, ResourceRemoved, Alert}
}

// ParseEventType returns the EventType named s.
func ParseEventType(s string) (EventType, bool) {
	for _, t := range EventTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// EventRecord describes a single change.
type EventRecord struct {
	EventType      EventType `json:"EventType"`
	MessageID      string    `json:"MessageId"`
	EventID        string    `json:"EventId"`
	EventTimestamp string    `json:"EventTimestamp"`
}

// NewEventRecord stamps a record with a fresh id and the current time at
// second resolution.
func NewEventRecord(t EventType, messageID string) EventRecord {
	return EventRecord{
		EventType:      t,
		MessageID:      messageID,
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
	}
}

// Event is the body POSTed to a subscriber. Id, Name and Context echo what
// the subscriber declared when it subscribed.
type Event struct {
	ID      string        `json:"Id"`
	Name    string        `json:"Name"`
	Context string        `json:"Context"`
	Events  []EventRecord `json:"Events"`
}
