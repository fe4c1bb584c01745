package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/binding"
	"github.com/afroash/buffet-monitor/internal/models"
	"github.com/afroash/buffet-monitor/internal/storage"
)

// Handler serves the HTTP exposition surface: per-thing properties,
// actions, and event subscriptions.
type Handler struct {
	registry *binding.Registry
	store    storage.Store
	events   *EventHandler
	logger   zerolog.Logger
	version  string
}

// NewHandler creates the HTTP exposition handler.
func NewHandler(registry *binding.Registry, store storage.Store, events *EventHandler, version string, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		store:    store,
		events:   events,
		logger:   logger,
		version:  version,
	}
}

// Router builds the chi router for the exposition surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.handleHealth)
	r.Get("/stats", h.handleStats)

	r.Route("/things/{thingID}", func(r chi.Router) {
		r.Get("/properties/allSensorData", h.withAnalyzer(h.handleAllSensorData))
		r.Get("/properties/currentSensorData", h.withAnalyzer(h.handleCurrentSensorData))
		r.Get("/properties/sensorDataReceived", h.withAnalyzer(h.handleAllSensorData))
		r.Put("/properties/sensorDataReceived", h.withAnalyzer(h.handleIngest))
		r.Get("/properties/sensorStatus", h.withAnalyzer(h.handleSensorStatus))
		r.Get("/properties/motorStatus", h.withAnalyzer(h.handleMotorStatus))
		r.Get("/properties/location", h.withAnalyzer(h.handleGetLocation))
		r.Put("/properties/location", h.withAnalyzer(h.handleSetLocation))
		r.Post("/actions/closeBuffet", h.withAnalyzer(h.handleCloseBuffet))
		r.Post("/actions/openBuffet", h.withAnalyzer(h.handleOpenBuffet))
		r.Put("/properties/photo", h.handlePhoto)
		r.Get("/events", h.events.ServeHTTP)
	})

	return r
}

// withAnalyzer resolves the analyzer binding for the thing id in the
// route, or answers 404 when the thing is unknown or not an analyzer.
func (h *Handler) withAnalyzer(next func(http.ResponseWriter, *http.Request, *binding.AnalyzerBinding)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thingID := chi.URLParam(r, "thingID")
		analyzer, ok := h.registry.Analyzer(thingID)
		if !ok {
			http.Error(w, "Unknown analyzer thing", http.StatusNotFound)
			return
		}
		next(w, r, analyzer)
	}
}

func (h *Handler) handleAllSensorData(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	writeJSON(w, b.ReadAll())
}

func (h *Handler) handleCurrentSensorData(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	reading, err := b.Pull(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch current sensor data", http.StatusBadGateway)
		return
	}
	writeJSON(w, reading)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	var payload models.IngestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	reading, err := b.Ingest(&payload)
	if err != nil {
		if errors.Is(err, binding.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to process sensor data", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reading)
}

func (h *Handler) handleSensorStatus(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	status, err := b.SensorStatus(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Please specify the id query parameter", http.StatusBadRequest)
		return
	}
	writeJSON(w, status)
}

func (h *Handler) handleMotorStatus(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	writeJSON(w, b.MotorStatus())
}

func (h *Handler) handleGetLocation(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	writeJSON(w, b.Location())
}

func (h *Handler) handleSetLocation(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	var location string
	if err := json.NewDecoder(r.Body).Decode(&location); err != nil {
		http.Error(w, "Invalid location value", http.StatusBadRequest)
		return
	}

	if err := b.SetLocation(location); err != nil {
		http.Error(w, "Failed to persist location", http.StatusInternalServerError)
		return
	}
	writeJSON(w, location)
}

func (h *Handler) handleCloseBuffet(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	writeJSON(w, b.ToggleBuffet(r.Context(), false))
}

func (h *Handler) handleOpenBuffet(w http.ResponseWriter, r *http.Request, b *binding.AnalyzerBinding) {
	writeJSON(w, b.ToggleBuffet(r.Context(), true))
}

// handlePhoto accepts the encoded photo either as a JSON string or as
// the raw request body.
func (h *Handler) handlePhoto(w http.ResponseWriter, r *http.Request) {
	thingID := chi.URLParam(r, "thingID")
	cam, ok := h.registry.Cam(thingID)
	if !ok {
		http.Error(w, "Unknown camera thing", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read photo", http.StatusBadRequest)
		return
	}

	var base64Image string
	if err := json.Unmarshal(body, &base64Image); err != nil {
		base64Image = string(body)
	}

	cam.SubmitPhoto(r.Context(), base64Image)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": h.version})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStorageStats()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to collect storage stats")
		http.Error(w, "Failed to collect stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
