package probe

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/mqtt"
)

// drainBatchSize bounds how many buffered payloads are replayed per tick.
const drainBatchSize = 50

// Publisher generates analyzer readings on an interval and publishes
// them to the paired thing's sensorDataReceived topic. Payloads are
// buffered while the broker is unreachable and replayed in order once
// it comes back.
type Publisher struct {
	sensorID string
	thingID  string
	interval time.Duration
	client   *mqtt.Client
	topics   mqtt.Topics
	buffer   *PayloadBuffer
	logger   zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPublisher creates a publisher. Call Run to start it.
func NewPublisher(sensorID, thingID string, interval time.Duration, client *mqtt.Client, topics mqtt.Topics, buffer *PayloadBuffer, logger zerolog.Logger) *Publisher {
	return &Publisher{
		sensorID: sensorID,
		thingID:  thingID,
		interval: interval,
		client:   client,
		topics:   topics,
		buffer:   buffer,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Run starts the generate/publish loop in a background goroutine.
func (p *Publisher) Run() {
	p.wg.Add(1)
	go p.loop()

	p.logger.Info().
		Str("sensor_id", p.sensorID).
		Str("thing_id", p.thingID).
		Dur("interval", p.interval).
		Msg("Probe publisher started")
}

// Stop stops the loop and waits for it to finish.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()
	})
}

func (p *Publisher) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.buffer.Push(p.generate())
			p.drain()
		case <-p.stopChan:
			p.logger.Info().Int("buffered", p.buffer.Size()).Msg("Probe publisher stopped")
			return
		}
	}
}

// drain publishes buffered payloads oldest-first, putting the remainder
// back when the broker is down.
func (p *Publisher) drain() {
	if !p.client.IsConnected() {
		p.logger.Debug().Int("buffered", p.buffer.Size()).Msg("Broker unreachable, holding payloads")
		return
	}

	batch := p.buffer.PopBatch(drainBatchSize)
	topic := p.topics.Readings(p.thingID)

	for i, payload := range batch {
		data, err := json.Marshal(payload)
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to marshal payload")
			continue
		}
		if err := p.client.Publish(topic, data, false); err != nil {
			p.logger.Warn().Err(err).Msg("Publish failed, re-buffering")
			// Put the unsent tail back, keeping order as well as a
			// circular buffer allows.
			for _, unsent := range batch[i:] {
				p.buffer.Push(unsent)
			}
			return
		}
	}

	if len(batch) > 0 {
		p.logger.Debug().Int("count", len(batch)).Msg("Published payloads")
	}
}

// generate produces a plausible buffet-environment reading.
func (p *Publisher) generate() *models.IngestPayload {
	temperature := 18 + rand.Float64()*10 // 18-28°C
	humidity := 35 + rand.Float64()*30    // 35-65%
	co2 := 400 + rand.Float64()*800       // 400-1200 ppm
	tvoc := 50 + rand.Float64()*250       // 50-300 ppb

	return &models.IngestPayload{
		SensorID:    p.sensorID,
		Temperature: &temperature,
		Humidity:    &humidity,
		CO2:         &co2,
		TVOC:        &tvoc,
	}
}
