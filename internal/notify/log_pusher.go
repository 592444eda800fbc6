package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPusher writes notifications to the log instead of delivering them.
type LogPusher struct {
	logger zerolog.Logger
}

// NewLogPusher creates a new log pusher.
func NewLogPusher(logger zerolog.Logger) *LogPusher {
	return &LogPusher{logger: logger.With().Str("component", "notify").Logger()}
}

// Push logs the notification.
func (p *LogPusher) Push(_ context.Context, n Notification) error {
	p.logger.Info().
		Str("traveler_id", n.TravelerID).
		Str("journey_id", n.JourneyID()).
		Str("type", string(n.Type)).
		Str("title", n.Title).
		Msg(n.Body)
	return nil
}

var _ Pusher = (*LogPusher)(nil)
