package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/alert"
)

// EventHandler upgrades event subscription requests and hands the
// connection to the hub.
type EventHandler struct {
	upgrader       websocket.Upgrader
	hub            *alert.Hub
	logger         zerolog.Logger
	allowedOrigins []string
}

// NewEventHandler creates a websocket handler for event subscriptions.
func NewEventHandler(hub *alert.Hub, logger zerolog.Logger, allowedOrigins ...string) *EventHandler {
	h := &EventHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *EventHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	if len(h.allowedOrigins) == 0 {
		h.logger.Warn().Str("origin", origin).Msg("Rejected subscriber: no allowed origins configured")
		return false
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected subscriber: origin not in allowlist")
	return false
}

// ServeHTTP handles a subscription request for one thing's events.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	thingID := chi.URLParam(r, "thingID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	h.hub.Register(conn, thingID)
}
