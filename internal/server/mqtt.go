package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/binding"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/mqtt"
)

// submitTimeout bounds the pipeline work triggered by one MQTT message.
const submitTimeout = 60 * time.Second

// MQTTExposition subscribes the registered things' writable properties
// to their broker topics. Devices push ingest payloads and photos here
// instead of over HTTP.
type MQTTExposition struct {
	client   *mqtt.Client
	topics   mqtt.Topics
	registry *binding.Registry
	logger   zerolog.Logger
}

// NewMQTTExposition creates the MQTT exposition surface.
func NewMQTTExposition(client *mqtt.Client, topics mqtt.Topics, registry *binding.Registry, logger zerolog.Logger) *MQTTExposition {
	return &MQTTExposition{
		client:   client,
		topics:   topics,
		registry: registry,
		logger:   logger,
	}
}

// Bind subscribes property-write topics for every registered thing.
func (e *MQTTExposition) Bind() error {
	for _, analyzer := range e.registry.Analyzers() {
		b := analyzer
		topic := e.topics.PropertyWrite(b.Thing().ID, "sensorDataReceived")
		if err := e.client.Subscribe(topic, func(_ string, payload []byte) {
			e.handleIngest(b, payload)
		}); err != nil {
			return err
		}
	}

	for _, cam := range e.registry.Cams() {
		b := cam
		topic := e.topics.PropertyWrite(b.Thing().ID, "photo")
		if err := e.client.Subscribe(topic, func(_ string, payload []byte) {
			e.handlePhoto(b, payload)
		}); err != nil {
			return err
		}
	}

	return nil
}

func (e *MQTTExposition) handleIngest(b *binding.AnalyzerBinding, payload []byte) {
	var ingest models.IngestPayload
	if err := json.Unmarshal(payload, &ingest); err != nil {
		e.logger.Warn().Err(err).Msg("Ignoring malformed MQTT ingest payload")
		return
	}

	if _, err := b.Ingest(&ingest); err != nil {
		e.logger.Warn().Err(err).Str("thing_id", b.Thing().ID).Msg("MQTT ingest rejected")
	}
}

func (e *MQTTExposition) handlePhoto(b *binding.CamBinding, payload []byte) {
	var base64Image string
	if err := json.Unmarshal(payload, &base64Image); err != nil {
		base64Image = string(payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	b.SubmitPhoto(ctx, base64Image)
}
