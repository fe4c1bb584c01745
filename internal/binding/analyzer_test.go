package binding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/cache"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/remote"
	"github.com/afroash/buffet-monitor/internal/storage"
)

// fakeStore is an in-memory storage.Store for binding tests.
type fakeStore struct {
	locations map[string]*models.DeviceLocation
	upserts   []*storage.ReadingDocument
	appends   []*storage.ReadingDocument
	failNext  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{locations: make(map[string]*models.DeviceLocation)}
}

func (s *fakeStore) Close() error   { return nil }
func (s *fakeStore) Migrate() error { return nil }

func (s *fakeStore) ListThings() ([]*models.Thing, error)  { return nil, nil }
func (s *fakeStore) InsertThing(_ *models.Thing) error     { return nil }
func (s *fakeStore) DeleteOlderThan(_ int) (int64, error)  { return 0, nil }
func (s *fakeStore) GetStorageStats() (*storage.StorageStats, error) {
	return &storage.StorageStats{}, nil
}

func (s *fakeStore) GetRecentReadings(_ string, _ int) ([]*storage.ReadingDocument, error) {
	return nil, nil
}

func (s *fakeStore) GetLocation(thingID string) (*models.DeviceLocation, error) {
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	return s.locations[thingID], nil
}

func (s *fakeStore) UpsertLocation(loc *models.DeviceLocation) error {
	if err := s.takeErr(); err != nil {
		return err
	}
	s.locations[loc.DeviceID] = loc
	return nil
}

func (s *fakeStore) UpsertLatestReading(doc *storage.ReadingDocument) error {
	if err := s.takeErr(); err != nil {
		return err
	}
	s.upserts = append(s.upserts, doc)
	return nil
}

func (s *fakeStore) AppendReading(doc *storage.ReadingDocument) error {
	if err := s.takeErr(); err != nil {
		return err
	}
	s.appends = append(s.appends, doc)
	return nil
}

func (s *fakeStore) AppendBatch(docs []*storage.ReadingDocument) error {
	for _, doc := range docs {
		if err := s.AppendReading(doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) takeErr() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// fakeSink captures documents queued for async persistence.
type fakeSink struct {
	docs []*storage.ReadingDocument
}

func (s *fakeSink) Write(doc *storage.ReadingDocument) bool {
	s.docs = append(s.docs, doc)
	return true
}

// fakeSensor returns a fixed reading or an error.
type fakeSensor struct {
	reading *remote.LastReading
	err     error
}

func (s *fakeSensor) LastReading(_ context.Context) (*remote.LastReading, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reading, nil
}

// fakeActuator records toggle and close-action calls.
type fakeActuator struct {
	toggleErr   error
	toggles     []bool
	closeCalled chan struct{}
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{closeCalled: make(chan struct{}, 8)}
}

func (a *fakeActuator) Toggle(_ context.Context, open bool) error {
	if a.toggleErr != nil {
		return a.toggleErr
	}
	a.toggles = append(a.toggles, open)
	return nil
}

func (a *fakeActuator) InvokeCloseAction(_ context.Context) error {
	a.closeCalled <- struct{}{}
	return nil
}

// fakeAlerts captures emitted events.
type fakeAlerts struct {
	events []models.Event
}

func (a *fakeAlerts) Emit(event models.Event) error {
	a.events = append(a.events, event)
	return nil
}

func analyzerThing() *models.Thing {
	return &models.Thing{
		ID:    "buffet-food-quality-analyzer-01",
		Title: "Buffet-Food-Quality-Analyzer",
		Type:  models.DeviceTypeAnalyzer,
	}
}

type analyzerFixture struct {
	binding  *AnalyzerBinding
	cache    *cache.SensorCache
	store    *fakeStore
	sink     *fakeSink
	sensor   *fakeSensor
	actuator *fakeActuator
	alerts   *fakeAlerts
}

func newAnalyzerFixture() *analyzerFixture {
	f := &analyzerFixture{
		cache:    cache.NewSensorCache(),
		store:    newFakeStore(),
		sink:     &fakeSink{},
		sensor:   &fakeSensor{reading: &remote.LastReading{Temperature: 21, Humidity: 50, CO2: 700, TVOC: 150}},
		actuator: newFakeActuator(),
		alerts:   &fakeAlerts{},
	}
	f.binding = NewAnalyzerBinding(
		analyzerThing(),
		f.cache,
		f.store,
		f.sink,
		f.sensor,
		f.actuator,
		f.alerts,
		RandomHealth{},
		zerolog.Nop(),
	)
	return f
}

func TestAnalyzerBinding_PullSuccess(t *testing.T) {
	f := newAnalyzerFixture()

	reading, err := f.binding.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if reading.Temperature != 21 || reading.Humidity != 50 || reading.CO2 != 700 || reading.TVOC != 150 {
		t.Errorf("Pull() reading = %+v, expected the endpoint values", reading)
	}

	cached := f.cache.Get("buffet-food-quality-analyzer-01")
	if cached == nil || cached.Temperature != 21 {
		t.Errorf("Cache entry = %+v, expected the pulled reading", cached)
	}

	if len(f.store.upserts) != 1 {
		t.Fatalf("Store upserts = %d, expected 1", len(f.store.upserts))
	}
	doc := f.store.upserts[0]
	if doc.SensorID != "wot:dev:buffet-food-quality-analyzer-01" {
		t.Errorf("SensorID = %q, expected the synthesized wot:dev id", doc.SensorID)
	}
	if doc.DeviceType != "Buffet-Food-Quality-Analyzer" {
		t.Errorf("DeviceType = %q, expected the thing title", doc.DeviceType)
	}
}

func TestAnalyzerBinding_PullFetchErrorLeavesCacheUntouched(t *testing.T) {
	f := newAnalyzerFixture()
	prior := models.NewSensorReading("buffet-food-quality-analyzer-01", 19, 45, 600, 90)
	f.cache.Set("buffet-food-quality-analyzer-01", prior)

	f.sensor.err = errors.New("connection refused")

	_, err := f.binding.Pull(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("Pull() error = %v, expected ErrFetch", err)
	}

	cached := f.cache.Get("buffet-food-quality-analyzer-01")
	if cached == nil || cached.Temperature != 19 {
		t.Errorf("Cache entry = %+v, expected the prior reading to survive", cached)
	}
	if len(f.store.upserts) != 0 {
		t.Errorf("Store upserts = %d, expected none", len(f.store.upserts))
	}
}

func TestAnalyzerBinding_PullStoreFailureKeepsCacheUpdate(t *testing.T) {
	f := newAnalyzerFixture()
	f.store.failNext = errors.New("disk full")

	reading, err := f.binding.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v, store failures must not fail the read", err)
	}
	if reading == nil {
		t.Fatal("Pull() returned nil reading")
	}

	cached := f.cache.Get("buffet-food-quality-analyzer-01")
	if cached == nil || cached.Temperature != 21 {
		t.Errorf("Cache entry = %+v, expected the pulled reading to stand", cached)
	}
}

func TestAnalyzerBinding_IngestValidation(t *testing.T) {
	temp, humidity, co2, tvoc := 22.0, 40.0, 500.0, 100.0

	tests := []struct {
		name    string
		payload *models.IngestPayload
	}{
		{"nil payload", nil},
		{"missing sensor id", &models.IngestPayload{Temperature: &temp, Humidity: &humidity, CO2: &co2, TVOC: &tvoc}},
		{"missing temperature", &models.IngestPayload{SensorID: "s1", Humidity: &humidity, CO2: &co2, TVOC: &tvoc}},
		{"missing humidity", &models.IngestPayload{SensorID: "s1", Temperature: &temp, CO2: &co2, TVOC: &tvoc}},
		{"missing co2", &models.IngestPayload{SensorID: "s1", Temperature: &temp, Humidity: &humidity, TVOC: &tvoc}},
		{"missing tvoc", &models.IngestPayload{SensorID: "s1", Temperature: &temp, Humidity: &humidity, CO2: &co2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalyzerFixture()
			prior := models.NewSensorReading("buffet-food-quality-analyzer-01", 19, 45, 600, 90)
			f.cache.Set("buffet-food-quality-analyzer-01", prior)

			_, err := f.binding.Ingest(tt.payload)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Ingest() error = %v, expected ErrValidation", err)
			}

			cached := f.cache.Get("buffet-food-quality-analyzer-01")
			if cached == nil || cached.Temperature != 19 {
				t.Errorf("Cache entry = %+v, expected prior reading unchanged", cached)
			}
			if len(f.alerts.events) != 0 {
				t.Errorf("Events emitted = %d, expected none", len(f.alerts.events))
			}
			if len(f.sink.docs) != 0 {
				t.Errorf("Documents queued = %d, expected none", len(f.sink.docs))
			}
		})
	}
}

func TestAnalyzerBinding_IngestSuccess(t *testing.T) {
	f := newAnalyzerFixture()
	temp, humidity, co2, tvoc := 22.0, 40.0, 500.0, 100.0

	reading, err := f.binding.Ingest(&models.IngestPayload{
		SensorID:    "s1",
		Temperature: &temp,
		Humidity:    &humidity,
		CO2:         &co2,
		TVOC:        &tvoc,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	cached := f.cache.Get("buffet-food-quality-analyzer-01")
	if cached == nil {
		t.Fatal("Cache entry missing after ingest")
	}
	if cached.Temperature != 22 || cached.Humidity != 40 || cached.CO2 != 500 || cached.TVOC != 100 {
		t.Errorf("Cache entry = %+v, expected the payload values", cached)
	}
	if reading.CapturedAt.IsZero() {
		t.Error("Ingest() reading has a zero timestamp")
	}

	if len(f.alerts.events) != 1 {
		t.Fatalf("Events emitted = %d, expected exactly 1", len(f.alerts.events))
	}
	if f.alerts.events[0].Name != models.EventHumidityAlert {
		t.Errorf("Event name = %q, expected humidityAlert", f.alerts.events[0].Name)
	}

	if len(f.sink.docs) != 1 {
		t.Fatalf("Documents queued = %d, expected 1", len(f.sink.docs))
	}
	if f.sink.docs[0].SensorID != "s1" {
		t.Errorf("Queued SensorID = %q, expected the payload id", f.sink.docs[0].SensorID)
	}
}

func TestAnalyzerBinding_LocationDefaultsToUnknown(t *testing.T) {
	f := newAnalyzerFixture()
	if got := f.binding.Location(); got != models.LocationUnknown {
		t.Errorf("Location() = %q, expected %q before any write", got, models.LocationUnknown)
	}
}

func TestAnalyzerBinding_SetLocationRoundTrip(t *testing.T) {
	f := newAnalyzerFixture()

	if err := f.binding.SetLocation("Kitchen"); err != nil {
		t.Fatalf("SetLocation() error = %v", err)
	}
	if got := f.binding.Location(); got != "Kitchen" {
		t.Errorf("Location() = %q, expected Kitchen", got)
	}

	persisted := f.store.locations["buffet-food-quality-analyzer-01"]
	if persisted == nil {
		t.Fatal("Location was not persisted")
	}
	if persisted.Location != "Kitchen" || persisted.DeviceType != "Buffet-Food-Quality-Analyzer" {
		t.Errorf("Persisted location = %+v", persisted)
	}
	if persisted.LastModified.IsZero() {
		t.Error("Persisted location has a zero LastModified")
	}
}

func TestAnalyzerBinding_LocationLoadedAtInit(t *testing.T) {
	store := newFakeStore()
	store.locations["buffet-food-quality-analyzer-01"] = &models.DeviceLocation{
		DeviceID:     "buffet-food-quality-analyzer-01",
		Location:     "Terrace",
		LastModified: time.Now(),
	}

	b := NewAnalyzerBinding(
		analyzerThing(),
		cache.NewSensorCache(),
		store,
		&fakeSink{},
		&fakeSensor{},
		newFakeActuator(),
		&fakeAlerts{},
		RandomHealth{},
		zerolog.Nop(),
	)

	if got := b.Location(); got != "Terrace" {
		t.Errorf("Location() = %q, expected the stored value", got)
	}
}

func TestAnalyzerBinding_SensorStatus(t *testing.T) {
	f := newAnalyzerFixture()

	if _, err := f.binding.SensorStatus(""); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("SensorStatus(\"\") error = %v, expected ErrMissingParameter", err)
	}

	status, err := f.binding.SensorStatus("s1")
	if err != nil {
		t.Fatalf("SensorStatus() error = %v", err)
	}
	if status != "The Sensor s1 is ok" && status != "The Sensor s1 is failing" {
		t.Errorf("SensorStatus() = %q, expected one of the two diagnostic strings", status)
	}
}

func TestAnalyzerBinding_MotorStatus(t *testing.T) {
	f := newAnalyzerFixture()
	status := f.binding.MotorStatus()
	if status != "The motor is ok" && status != "The motor is failing" {
		t.Errorf("MotorStatus() = %q, expected one of the two diagnostic strings", status)
	}
}

func TestAnalyzerBinding_ToggleBuffet(t *testing.T) {
	f := newAnalyzerFixture()

	result := f.binding.ToggleBuffet(context.Background(), false)
	if !result.Success {
		t.Errorf("ToggleBuffet(false) = %+v, expected success", result)
	}
	if !strings.Contains(result.Message, "closed") {
		t.Errorf("Message = %q, expected a close confirmation", result.Message)
	}

	result = f.binding.ToggleBuffet(context.Background(), true)
	if !result.Success || !strings.Contains(result.Message, "opened") {
		t.Errorf("ToggleBuffet(true) = %+v, expected an open confirmation", result)
	}

	if len(f.actuator.toggles) != 2 || f.actuator.toggles[0] != false || f.actuator.toggles[1] != true {
		t.Errorf("Actuator toggles = %v, expected [false true]", f.actuator.toggles)
	}
}

func TestAnalyzerBinding_ToggleBuffetAbsorbsFailure(t *testing.T) {
	f := newAnalyzerFixture()
	f.actuator.toggleErr = errors.New("connection refused")

	result := f.binding.ToggleBuffet(context.Background(), false)
	if result.Success {
		t.Error("ToggleBuffet() reported success despite actuator failure")
	}
	if result.Message == "" {
		t.Error("ToggleBuffet() failure message is empty")
	}
}
