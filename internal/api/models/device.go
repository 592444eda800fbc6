package models

// Device is a push target as shown to its owner. The token itself is never
// returned, only its last four characters.
type Device struct {
	ID             string       `json:"id"`
	Platform       PushPlatform `json:"platform"`
	TokenLast4     string       `json:"tokenLast4"`
	DeviceModel    *string      `json:"deviceModel,omitempty"`
	AppVersion     *string      `json:"appVersion,omitempty"`
	RegisteredAt   Timestamp    `json:"registeredAt"`
	LastRegistered Timestamp    `json:"lastRegisteredAt"`
}

// DeviceRegisterRequest registers or refreshes a push token. Sending the same
// deviceId again replaces the stored token.
type DeviceRegisterRequest struct {
	DeviceID    string       `json:"deviceId"`
	Platform    PushPlatform `json:"platform"`
	Token       string       `json:"token"`
	DeviceModel *string      `json:"deviceModel,omitempty"`
	AppVersion  *string      `json:"appVersion,omitempty"`
}

// PagedDevices lists a traveler's devices.
type PagedDevices struct {
	Items []Device          `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
