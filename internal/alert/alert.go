package alert

import (
	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/models"
)

// Channel emits named events to subscribers. Bindings hold a Channel
// and never know how many transports sit behind it.
type Channel interface {
	Emit(event models.Event) error
}

// Fanout delivers every event to all configured channels. A failing
// channel is logged and does not stop delivery to the others.
type Fanout struct {
	channels []Channel
	logger   zerolog.Logger
}

// Compile-time interface check
var _ Channel = (*Fanout)(nil)

// NewFanout creates a fan-out over the given channels.
func NewFanout(logger zerolog.Logger, channels ...Channel) *Fanout {
	return &Fanout{
		channels: channels,
		logger:   logger,
	}
}

// Emit sends the event through every channel.
func (f *Fanout) Emit(event models.Event) error {
	for _, ch := range f.channels {
		if err := ch.Emit(event); err != nil {
			f.logger.Error().
				Err(err).
				Str("thing_id", event.ThingID).
				Str("event", string(event.Name)).
				Msg("Failed to emit event")
		}
	}
	return nil
}
