package models

import (
	"time"

	"github.com/google/uuid"
)

// EventName identifies a thing event pushed to subscribers.
type EventName string

const (
	// EventHumidityAlert is emitted on every successful push ingest.
	EventHumidityAlert EventName = "humidityAlert"
	// EventBadFood is emitted when the verdict pipeline decides the
	// food is unsafe.
	EventBadFood EventName = "badFood"
)

// Event is the envelope delivered to event subscribers.
type Event struct {
	ID        string    `json:"id"`
	ThingID   string    `json:"thing_id"`
	Name      EventName `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and the current timestamp.
func NewEvent(thingID string, name EventName, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		ThingID:   thingID,
		Name:      name,
		Message:   message,
		Timestamp: time.Now(),
	}
}
