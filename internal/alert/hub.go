package alert

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/models"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// Hub maintains the set of websocket event subscribers and broadcasts
// emitted events to them. Subscribers that cannot keep up are dropped.
type Hub struct {
	logger  zerolog.Logger
	mutex   sync.RWMutex
	clients map[*subscriber]bool
}

// Compile-time interface check
var _ Channel = (*Hub)(nil)

type subscriber struct {
	conn    *websocket.Conn
	thingID string // empty means all things
	send    chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*subscriber]bool),
	}
}

// Register adds a subscriber connection. A subscriber with a thing id
// receives only that thing's events; an empty id receives everything.
// The hub owns the connection from here on and closes it when the
// subscriber is dropped.
func (h *Hub) Register(conn *websocket.Conn, thingID string) {
	sub := &subscriber{
		conn:    conn,
		thingID: thingID,
		send:    make(chan []byte, sendBufferSize),
	}

	h.mutex.Lock()
	h.clients[sub] = true
	h.mutex.Unlock()

	h.logger.Info().
		Str("remote", conn.RemoteAddr().String()).
		Str("thing_id", thingID).
		Msg("Event subscriber connected")

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

// Emit broadcasts the event to every matching subscriber.
func (h *Hub) Emit(event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	for sub := range h.clients {
		if sub.thingID != "" && sub.thingID != event.ThingID {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			// Subscriber is blocked or gone
			h.logger.Warn().
				Str("remote", sub.conn.RemoteAddr().String()).
				Msg("Subscriber send buffer full, dropping")
			close(sub.send)
			delete(h.clients, sub)
		}
	}
	h.mutex.Unlock()

	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// writeLoop pushes queued events out to one subscriber.
func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()

	for payload := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write event to subscriber")
			h.remove(sub)
			return
		}
	}
}

// readLoop drains the connection so pings and close frames are
// processed, and removes the subscriber when it disconnects.
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("Subscriber read error")
			}
			h.remove(sub)
			return
		}
	}
}

// remove drops a subscriber if still registered.
func (h *Hub) remove(sub *subscriber) {
	h.mutex.Lock()
	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
	h.mutex.Unlock()

	h.logger.Info().
		Str("remote", sub.conn.RemoteAddr().String()).
		Msg("Event subscriber disconnected")
}
