package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectPrefix prefixes every NATS subject published by NATSPublisher.
const SubjectPrefix = "tripwise"

// NATSPublisher publishes events to NATS subjects
// tripwise.journey.<id> and tripwise.traveler.<id>.
type NATSPublisher struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str("component", "nats").Logger()

	nc, err := nats.Connect(url,
		nats.Name("tripwise-api"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// Connected reports whether the connection is currently up.
func (p *NATSPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// PublishJourney publishes an event on the journey subject.
func (p *NATSPublisher) PublishJourney(_ context.Context, journeyID string, event Event) error {
	return p.publish(JourneySubject(journeyID), event)
}

// PublishTraveler publishes an event on the traveler subject.
func (p *NATSPublisher) PublishTraveler(_ context.Context, travelerID string, event Event) error {
	return p.publish(TravelerSubject(travelerID), event)
}

func (p *NATSPublisher) publish(subject string, event Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.nc.Publish(subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// JourneySubject returns the NATS subject for a journey.
func JourneySubject(journeyID string) string {
	return SubjectPrefix + ".journey." + subjectToken(journeyID)
}

// TravelerSubject returns the NATS subject for a traveler.
func TravelerSubject(travelerID string) string {
	return SubjectPrefix + ".traveler." + subjectToken(travelerID)
}

var subjectReplacer = strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")

// subjectToken makes s safe for use as a single NATS subject token.
func subjectToken(s string) string {
	s = subjectReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		s = "_"
	}
	return s
}

var _ Broadcaster = (*NATSPublisher)(nil)
