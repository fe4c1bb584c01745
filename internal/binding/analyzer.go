package binding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/alert"
	"github.com/afroash/buffet-monitor/internal/cache"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/remote"
	"github.com/afroash/buffet-monitor/internal/storage"
)

// humidityAlertMessage is the payload of the event emitted on every
// successful push ingest.
const humidityAlertMessage = "Hello World."

// IngestSink accepts persisted ingest documents. The async writer
// implements it; tests substitute a capture.
type IngestSink interface {
	Write(doc *storage.ReadingDocument) bool
}

// ToggleResult is the structured outcome of a buffet toggle action.
// Actuation failures are absorbed here; the action never errors out to
// its caller.
type ToggleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AnalyzerBinding implements the property/action surface of an
// environmental analyzer thing. It is the primary producer and consumer
// of the sensor cache.
type AnalyzerBinding struct {
	thing    *models.Thing
	cache    *cache.SensorCache
	store    storage.Store
	sink     IngestSink
	sensor   remote.SensorReader
	actuator remote.Actuator
	alerts   alert.Channel
	health   HealthStrategy
	logger   zerolog.Logger

	locMu    sync.RWMutex
	location string
}

// NewAnalyzerBinding creates the binding and refreshes the cached
// location from the store. A missing location document leaves the
// default in place.
func NewAnalyzerBinding(
	thing *models.Thing,
	sensorCache *cache.SensorCache,
	store storage.Store,
	sink IngestSink,
	sensor remote.SensorReader,
	actuator remote.Actuator,
	alerts alert.Channel,
	health HealthStrategy,
	logger zerolog.Logger,
) *AnalyzerBinding {
	b := &AnalyzerBinding{
		thing:    thing,
		cache:    sensorCache,
		store:    store,
		sink:     sink,
		sensor:   sensor,
		actuator: actuator,
		alerts:   alerts,
		health:   health,
		logger:   logger.With().Str("thing_id", thing.ID).Logger(),
		location: models.LocationUnknown,
	}

	loc, err := store.GetLocation(thing.ID)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to load location, using default")
	} else if loc != nil {
		b.location = loc.Location
	}

	b.logger.Info().Str("location", b.location).Msg("Analyzer binding initialized")
	return b
}

// Thing returns the bound thing definition.
func (b *AnalyzerBinding) Thing() *models.Thing {
	return b.thing
}

// Pull reads the external sensor endpoint, updates the cache and
// upserts the persisted document for this thing. A fetch failure leaves
// the cache untouched; a store failure after the cache update is logged
// and does not undo it.
func (b *AnalyzerBinding) Pull(ctx context.Context) (*models.SensorReading, error) {
	data, err := b.sensor.LastReading(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to fetch current sensor data")
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	reading := models.NewSensorReading(b.thing.ID, data.Temperature, data.Humidity, data.CO2, data.TVOC)
	b.cache.Set(b.thing.ID, reading)

	doc := &storage.ReadingDocument{
		ThingID:     b.thing.ID,
		SensorID:    "wot:dev:" + b.thing.ID,
		DeviceType:  b.thing.Title,
		Temperature: data.Temperature,
		Humidity:    data.Humidity,
		CO2:         data.CO2,
		TVOC:        data.TVOC,
		Timestamp:   reading.CapturedAt,
	}
	if err := b.store.UpsertLatestReading(doc); err != nil {
		// The cache update stands even when persistence fails.
		b.logger.Error().Err(err).Msg("Failed to persist polled reading")
	}

	b.logger.Info().
		Float64("temperature", data.Temperature).
		Float64("humidity", data.Humidity).
		Float64("co2", data.CO2).
		Float64("tvoc", data.TVOC).
		Msg("Sensor data pulled")

	return reading, nil
}

// Ingest handles a pushed telemetry payload. An incomplete payload is
// rejected before any state changes. On success the cache is updated,
// an ingest document is queued for persistence, and the humidity alert
// event is emitted.
func (b *AnalyzerBinding) Ingest(payload *models.IngestPayload) (*models.SensorReading, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrValidation)
	}
	if err := payload.Validate(); err != nil {
		b.logger.Warn().Err(err).Msg("Rejected ingest payload")
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	reading := models.NewSensorReading(b.thing.ID, *payload.Temperature, *payload.Humidity, *payload.CO2, *payload.TVOC)
	b.cache.Set(b.thing.ID, reading)

	if err := b.alerts.Emit(models.NewEvent(b.thing.ID, models.EventHumidityAlert, humidityAlertMessage)); err != nil {
		b.logger.Error().Err(err).Msg("Failed to emit humidity alert")
	}

	doc := &storage.ReadingDocument{
		ThingID:     b.thing.ID,
		SensorID:    payload.SensorID,
		DeviceType:  b.thing.Title,
		Temperature: *payload.Temperature,
		Humidity:    *payload.Humidity,
		CO2:         *payload.CO2,
		TVOC:        *payload.TVOC,
		Timestamp:   reading.CapturedAt,
	}
	if !b.sink.Write(doc) {
		b.logger.Error().Str("sensor_id", payload.SensorID).Msg("Ingest document dropped, writer queue full")
	}

	b.logger.Info().
		Str("sensor_id", payload.SensorID).
		Float64("temperature", *payload.Temperature).
		Float64("humidity", *payload.Humidity).
		Msg("Sensor data ingested")

	return reading, nil
}

// ReadAll returns a point-in-time snapshot of the whole cache.
func (b *AnalyzerBinding) ReadAll() map[string]*models.SensorReading {
	return b.cache.Snapshot()
}

// Location returns the in-memory cached location value.
func (b *AnalyzerBinding) Location() string {
	b.locMu.RLock()
	defer b.locMu.RUnlock()
	return b.location
}

// SetLocation updates the in-memory location and upserts the persisted
// document. The in-memory value is updated even when persistence fails.
func (b *AnalyzerBinding) SetLocation(value string) error {
	b.locMu.Lock()
	b.location = value
	b.locMu.Unlock()

	b.logger.Info().Str("location", value).Msg("Location updated")

	loc := &models.DeviceLocation{
		DeviceID:     b.thing.ID,
		Location:     value,
		DeviceType:   b.thing.Title,
		LastModified: time.Now(),
	}
	if err := b.store.UpsertLocation(loc); err != nil {
		b.logger.Error().Err(err).Msg("Failed to persist location")
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	return nil
}

// SensorStatus returns a diagnostic string for the identified sensor.
// The id parameter is required.
func (b *AnalyzerBinding) SensorStatus(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: id", ErrMissingParameter)
	}
	return b.health.SensorDiagnostic(id), nil
}

// MotorStatus returns a diagnostic string for the tray motor.
func (b *AnalyzerBinding) MotorStatus() string {
	return b.health.MotorDiagnostic()
}

// ToggleBuffet issues the remote actuation request. Failures are
// absorbed into the result; this operation never errors out.
func (b *AnalyzerBinding) ToggleBuffet(ctx context.Context, open bool) ToggleResult {
	verb, past := "close", "closed"
	if open {
		verb, past = "open", "opened"
	}

	if err := b.actuator.Toggle(ctx, open); err != nil {
		b.logger.Error().Err(err).Bool("open", open).Msg("Buffet toggle failed")
		return ToggleResult{
			Success: false,
			Message: fmt.Sprintf("Failed to %s buffet: %v", verb, err),
		}
	}

	b.logger.Info().Bool("open", open).Msg("Buffet toggled")
	return ToggleResult{
		Success: true,
		Message: fmt.Sprintf("Buffet %s successfully and POST request sent.", past),
	}
}
