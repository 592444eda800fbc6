package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig configures the Google Cloud Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string `env:"PROJECT_ID"`
	Topic     string `env:"TOPIC" envDefault:"tripwise-journey-events"`
}

// Enabled reports whether a project is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != ""
}

// PubSubPublisher publishes every event to a single topic. The channel
// and event type travel as message attributes so subscribers can filter.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewPubSubPublisher creates a Pub/Sub client bound to cfg.Topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig, logger zerolog.Logger) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    logger.With().Str("component", "pubsub").Str("topic", cfg.Topic).Logger(),
	}, nil
}

// PublishJourney publishes an event for a journey.
func (p *PubSubPublisher) PublishJourney(ctx context.Context, journeyID string, event Event) error {
	return p.publish(ctx, JourneyChannel(journeyID), event)
}

// PublishTraveler publishes an event for a traveler.
func (p *PubSubPublisher) PublishTraveler(ctx context.Context, travelerID string, event Event) error {
	return p.publish(ctx, TravelerChannel(travelerID), event)
}

func (p *PubSubPublisher) publish(ctx context.Context, channel string, event Event) error {
	msg, err := pubSubMessage(channel, event)
	if err != nil {
		return err
	}

	// Publish batches in the background; the result is only inspected for logging.
	res := p.publisher.Publish(ctx, msg)
	go func() {
		if _, err := res.Get(context.Background()); err != nil {
			p.logger.Warn().Err(err).Str("channel", channel).Msg("pubsub publish failed")
		}
	}()
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

func pubSubMessage(channel string, event Event) (*pubsub.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"channel":   channel,
			"type":      string(event.Type),
			"journeyId": event.JourneyID,
		},
	}, nil
}

var _ Broadcaster = (*PubSubPublisher)(nil)
