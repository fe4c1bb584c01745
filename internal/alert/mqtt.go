package alert

import (
	"encoding/json"
	"fmt"

	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/mqtt"
)

// MQTTChannel publishes emitted events to the broker so remote
// consumers can subscribe without holding a connection to this process.
type MQTTChannel struct {
	client *mqtt.Client
	topics mqtt.Topics
}

// Compile-time interface check
var _ Channel = (*MQTTChannel)(nil)

// NewMQTTChannel creates a channel publishing on the given topic prefix.
func NewMQTTChannel(client *mqtt.Client, topics mqtt.Topics) *MQTTChannel {
	return &MQTTChannel{
		client: client,
		topics: topics,
	}
}

// Emit publishes the event as JSON on the thing's event topic.
func (m *MQTTChannel) Emit(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := m.topics.Event(event.ThingID, string(event.Name))
	if err := m.client.Publish(topic, payload, false); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
