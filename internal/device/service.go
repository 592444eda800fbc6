package device

import (
	"context"
	"errors"
	"time"

	"github.com/tripwise/tripwise/internal/api/models"
)

// Validation constants.
const (
	MinTokenLength = 16
	MaxIDLength    = 64
)

// ValidationError represents device field validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Service provides device registration operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new device service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List retrieves all devices of a traveler.
func (s *Service) List(ctx context.Context, travelerID string) (*models.PagedDevices, error) {
	devices, err := s.repo.ListByTraveler(ctx, travelerID)
	if err != nil {
		return nil, err
	}

	items := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, toAPIDevice(d))
	}

	return &models.PagedDevices{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: len(items)},
	}, nil
}

// Register registers or updates a device.
// Returns the device and whether it was newly created.
func (s *Service) Register(ctx context.Context, travelerID string, input *models.DeviceRegisterRequest) (*models.Device, bool, error) {
	if errs := validateRegister(input); len(errs) > 0 {
		return nil, false, &ValidationError{Errors: errs}
	}

	now := s.now()
	d := &Device{
		ID:          input.DeviceID,
		TravelerID:  travelerID,
		Platform:    Platform(input.Platform),
		Token:       input.Token,
		DeviceModel: input.DeviceModel,
		AppVersion:  input.AppVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.repo.Upsert(ctx, d)
	if err != nil {
		return nil, false, err
	}

	result := toAPIDevice(d)
	return &result, created, nil
}

// Unregister removes a device registration.
func (s *Service) Unregister(ctx context.Context, travelerID, deviceID string) error {
	if err := s.repo.Delete(ctx, travelerID, deviceID); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return ErrDeviceNotFound
		}
		return err
	}
	return nil
}

// Tokens returns the push tokens a traveler registered on the platform.
func (s *Service) Tokens(ctx context.Context, travelerID string, platform Platform) ([]string, error) {
	devices, err := s.repo.ListByTraveler(ctx, travelerID)
	if err != nil {
		return nil, err
	}

	return Devices(devices).Tokens(platform), nil
}

// ForgetToken drops a token the push provider reported as no longer
// registered. A token that is already gone is not an error.
func (s *Service) ForgetToken(ctx context.Context, travelerID, token string) error {
	err := s.repo.DeleteByToken(ctx, travelerID, token)
	if errors.Is(err, ErrDeviceNotFound) {
		return nil
	}
	return err
}

func validateRegister(input *models.DeviceRegisterRequest) []models.FieldError {
	var errs []models.FieldError

	if input.DeviceID == "" {
		errs = append(errs, models.FieldError{Field: "deviceId", Message: "is required"})
	} else if len(input.DeviceID) > MaxIDLength {
		errs = append(errs, models.FieldError{Field: "deviceId", Message: "must be at most 64 characters"})
	}

	if !Platform(input.Platform).Valid() {
		errs = append(errs, models.FieldError{Field: "platform", Message: "must be FCM or APNS"})
	}

	if len(input.Token) < MinTokenLength {
		errs = append(errs, models.FieldError{Field: "token", Message: "must be at least 16 characters"})
	}

	return errs
}

func toAPIDevice(d *Device) models.Device {
	return models.Device{
		ID:             d.ID,
		Platform:       models.PushPlatform(d.Platform),
		TokenLast4:     d.TokenLast4(),
		DeviceModel:    d.DeviceModel,
		AppVersion:     d.AppVersion,
		RegisteredAt:   models.Timestamp(d.CreatedAt),
		LastRegistered: models.Timestamp(d.UpdatedAt),
	}
}
