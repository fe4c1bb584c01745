package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/alert"
	"github.com/afroash/buffet-monitor/internal/binding"
	"github.com/afroash/buffet-monitor/internal/cache"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/remote"
	"github.com/afroash/buffet-monitor/internal/storage"
	"github.com/afroash/buffet-monitor/internal/vision"
)

// testFixture wires a handler over a real store and stubbed remote
// endpoints.
type testFixture struct {
	router       http.Handler
	store        *storage.SQLiteStore
	actuatorHits *[]string
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sensorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"temperature": 21.5, "humidity": 48, "co2": 720, "tvoc": 130}`))
	}))
	t.Cleanup(sensorSrv.Close)

	actuatorHits := &[]string{}
	actuatorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*actuatorHits = append(*actuatorHits, r.URL.Path)
	}))
	t.Cleanup(actuatorSrv.Close)

	visionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "Yes"}}]}`))
	}))
	t.Cleanup(visionSrv.Close)

	writer := storage.NewIngestWriter(store, storage.DefaultIngestWriterConfig(), zerolog.Nop())
	t.Cleanup(writer.Stop)

	hub := alert.NewHub(zerolog.Nop())
	registry := binding.NewRegistry(binding.Deps{
		Cache:     cache.NewSensorCache(),
		Store:     store,
		Sink:      writer,
		Sensor:    remote.NewSensorClient(sensorSrv.URL, 5*time.Second),
		Actuator:  remote.NewActuatorClient(actuatorSrv.URL, actuatorSrv.URL+"/close", 5*time.Second),
		Verdicter: vision.NewClient(visionSrv.URL, "sk-test", "gpt-4o", 5*time.Second),
		Alerts:    alert.NewFanout(zerolog.Nop(), hub),
		Health:    binding.RandomHealth{},
		Logger:    zerolog.Nop(),
	})

	if err := registry.Register(&models.Thing{ID: "analyzer-01", Title: "Analyzer", Type: models.DeviceTypeAnalyzer}); err != nil {
		t.Fatalf("Register analyzer failed: %v", err)
	}
	if err := registry.Register(&models.Thing{ID: "cam-01", Title: "Cam", Type: models.DeviceTypeCamera}); err != nil {
		t.Fatalf("Register camera failed: %v", err)
	}

	events := NewEventHandler(hub, zerolog.Nop())
	handler := NewHandler(registry, store, events, "test", zerolog.Nop())

	return &testFixture{
		router:       handler.Router(),
		store:        store,
		actuatorHits: actuatorHits,
	}
}

func (f *testFixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHandler_UnknownThing(t *testing.T) {
	f := newTestFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/things/nope/properties/currentSensorData"},
		{http.MethodGet, "/things/nope/properties/location"},
		{http.MethodPost, "/things/nope/actions/closeBuffet"},
		{http.MethodPut, "/things/nope/properties/photo"},
		{http.MethodGet, "/things/cam-01/properties/currentSensorData"}, // camera is not an analyzer
		{http.MethodPut, "/things/analyzer-01/properties/photo"},        // analyzer is not a camera
	}

	for _, p := range paths {
		rec := f.do(t, p.method, p.path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", p.method, p.path, rec.Code)
		}
	}
}

func TestHandler_CurrentSensorData(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodGet, "/things/analyzer-01/properties/currentSensorData", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var reading models.SensorReading
	json.Unmarshal(rec.Body.Bytes(), &reading)
	if reading.Temperature != 21.5 || reading.CO2 != 720 {
		t.Errorf("Reading = %+v", reading)
	}

	// The pulled reading must now be in allSensorData.
	rec = f.do(t, http.MethodGet, "/things/analyzer-01/properties/allSensorData", "")
	var all map[string]*models.SensorReading
	json.Unmarshal(rec.Body.Bytes(), &all)
	if all["analyzer-01"] == nil || all["analyzer-01"].Temperature != 21.5 {
		t.Errorf("allSensorData = %+v", all)
	}
}

func TestHandler_Ingest(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodPut, "/things/analyzer-01/properties/sensorDataReceived",
		`{"sensorId": "s1", "temperature": 22, "humidity": 40, "co2": 500, "tvoc": 100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var reading models.SensorReading
	json.Unmarshal(rec.Body.Bytes(), &reading)
	if reading.Humidity != 40 {
		t.Errorf("Reading = %+v", reading)
	}
}

func TestHandler_IngestValidation(t *testing.T) {
	f := newTestFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing sensor id", `{"temperature": 22, "humidity": 40, "co2": 500, "tvoc": 100}`},
		{"missing metric", `{"sensorId": "s1", "temperature": 22, "humidity": 40, "co2": 500}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/things/analyzer-01/properties/sensorDataReceived", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandler_SensorStatus(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodGet, "/things/analyzer-01/properties/sensorStatus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status without id = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/things/analyzer-01/properties/sensorStatus?id=s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "The Sensor s1 is") {
		t.Errorf("Body = %s", rec.Body.String())
	}
}

func TestHandler_Location(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodGet, "/things/analyzer-01/properties/location", "")
	var location string
	json.Unmarshal(rec.Body.Bytes(), &location)
	if location != models.LocationUnknown {
		t.Errorf("Default location = %q, want %q", location, models.LocationUnknown)
	}

	rec = f.do(t, http.MethodPut, "/things/analyzer-01/properties/location", `"Kitchen"`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/things/analyzer-01/properties/location", "")
	json.Unmarshal(rec.Body.Bytes(), &location)
	if location != "Kitchen" {
		t.Errorf("Location after PUT = %q, want Kitchen", location)
	}
}

func TestHandler_ToggleActions(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodPost, "/things/analyzer-01/actions/closeBuffet", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var result binding.ToggleResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if !result.Success {
		t.Errorf("Result = %+v, want success", result)
	}
	if !strings.Contains(result.Message, "closed") {
		t.Errorf("Message = %q", result.Message)
	}

	f.do(t, http.MethodPost, "/things/analyzer-01/actions/openBuffet", "")

	hits := *f.actuatorHits
	if len(hits) != 2 || hits[0] != "/api/toggle-on" || hits[1] != "/api/toggle-off" {
		t.Errorf("Actuator hits = %v, want toggle-on then toggle-off", hits)
	}
}

func TestHandler_Photo(t *testing.T) {
	f := newTestFixture(t)

	// JSON string body
	rec := f.do(t, http.MethodPut, "/things/cam-01/properties/photo", `"aW1hZ2U="`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", rec.Code)
	}

	// Raw body
	rec = f.do(t, http.MethodPut, "/things/cam-01/properties/photo", "aW1hZ2U=")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Status for raw body = %d, want 204", rec.Code)
	}
}

func TestHandler_Stats(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(t, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var stats storage.StorageStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Errorf("Stats body did not decode: %v", err)
	}
}
