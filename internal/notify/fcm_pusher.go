package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/tripwise/tripwise/internal/device"
	"github.com/tripwise/tripwise/internal/provider/resilience"
)

// TokenSource returns a traveler's push tokens for a platform and forgets
// tokens the provider no longer accepts.
type TokenSource interface {
	Tokens(ctx context.Context, travelerID string, platform device.Platform) ([]string, error)
	ForgetToken(ctx context.Context, travelerID, token string) error
}

// MessageSender sends a single FCM message.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NewMessagingClient creates an FCM client from a base64 encoded service account.
func NewMessagingClient(ctx context.Context, serviceAccountB64 string) (*messaging.Client, error) {
	decodedKey, err := base64.StdEncoding.DecodeString(serviceAccountB64)
	if err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(decodedKey))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return client, nil
}

// FCMPusherConfig holds dependencies for FCMPusher.
type FCMPusherConfig struct {
	Sender MessageSender
	Tokens TokenSource
	Guard  *resilience.Guard
	Logger zerolog.Logger
}

// FCMPusher delivers notifications through Firebase Cloud Messaging to
// every FCM device the traveler registered.
type FCMPusher struct {
	sender MessageSender
	tokens TokenSource
	guard  *resilience.Guard
	logger zerolog.Logger
}

// NewFCMPusher creates a new FCM pusher. A nil guard uses default settings.
func NewFCMPusher(cfg FCMPusherConfig) *FCMPusher {
	guard := cfg.Guard
	if guard == nil {
		guard = resilience.NewGuard(resilience.DefaultGuardConfig("fcm"))
	}
	return &FCMPusher{
		sender: cfg.Sender,
		tokens: cfg.Tokens,
		guard:  guard,
		logger: cfg.Logger.With().Str("component", "fcm").Logger(),
	}
}

// Push sends n to each of the traveler's FCM tokens. Delivery errors of
// individual tokens are joined.
func (p *FCMPusher) Push(ctx context.Context, n Notification) error {
	tokens, err := p.tokens.Tokens(ctx, n.TravelerID, device.PlatformFCM)
	if err != nil {
		return fmt.Errorf("load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return ErrNoDevices
	}

	var errs []error
	for _, token := range tokens {
		msg := &messaging.Message{
			Notification: &messaging.Notification{
				Title: n.Title,
				Body:  n.Body,
			},
			Data:  n.Data,
			Token: token,
		}

		var unregistered bool
		err := p.guard.Do(ctx, func(ctx context.Context) error {
			_, err := p.sender.Send(ctx, msg)
			if err != nil && messaging.IsUnregistered(err) {
				unregistered = true
				return resilience.Permanent(err)
			}
			if err != nil && errorutils.IsInvalidArgument(err) {
				return resilience.Permanent(err)
			}
			return err
		})
		if unregistered {
			p.forget(ctx, n.TravelerID, token)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.logger.Debug().
		Str("traveler_id", n.TravelerID).
		Str("type", string(n.Type)).
		Int("devices", len(tokens)).
		Msg("sent push notification")
	return nil
}

func (p *FCMPusher) forget(ctx context.Context, travelerID, token string) {
	if err := p.tokens.ForgetToken(ctx, travelerID, token); err != nil {
		p.logger.Warn().Err(err).Str("traveler_id", travelerID).Msg("failed to drop unregistered push token")
		return
	}
	p.logger.Info().Str("traveler_id", travelerID).Msg("dropped unregistered push token")
}

var _ Pusher = (*FCMPusher)(nil)
