// Package device keeps the push tokens travelers register for journey
// notifications.
package device

import (
	"errors"
	"time"
)

var ErrDeviceNotFound = errors.New("device not found")

// Platform names the push service a token belongs to.
type Platform string

const (
	PlatformFCM  Platform = "FCM"
	PlatformAPNS Platform = "APNS"
)

func (p Platform) Valid() bool {
	return p == PlatformFCM || p == PlatformAPNS
}

// Device is one registered push target of a traveler. Re-registering the
// same ID replaces Token and bumps UpdatedAt.
type Device struct {
	ID          string
	TravelerID  string
	Platform    Platform
	Token       string
	DeviceModel *string
	AppVersion  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TokenLast4 is the only part of the token shown back to clients.
func (d *Device) TokenLast4() string {
	if len(d.Token) < 4 {
		return d.Token
	}
	return d.Token[len(d.Token)-4:]
}

// Devices is a traveler's device list.
type Devices []*Device

// Tokens returns the distinct tokens registered on platform, in list order.
func (ds Devices) Tokens(platform Platform) []string {
	var tokens []string
	seen := make(map[string]struct{}, len(ds))
	for _, d := range ds {
		if d.Platform != platform {
			continue
		}
		if _, dup := seen[d.Token]; dup {
			continue
		}
		seen[d.Token] = struct{}{}
		tokens = append(tokens, d.Token)
	}
	return tokens
}
