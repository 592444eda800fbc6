package models

// JourneyEndpoint is an origin or destination of a journey.
type JourneyEndpoint struct {
	Name  string `json:"name"`
	Point Point  `json:"point"`
}

// JourneyCreateRequest is the request body for creating a journey.
type JourneyCreateRequest struct {
	Origin               JourneyEndpoint `json:"origin"`
	Destination          JourneyEndpoint `json:"destination"`
	RouteID              *string         `json:"routeId,omitempty"`
	PlannedStartAt       *Timestamp      `json:"plannedStartAt,omitempty"`
	TrackingEnabled      *bool           `json:"trackingEnabled,omitempty"`
	NotificationsEnabled *bool           `json:"notificationsEnabled,omitempty"`
}

// PositionUpdate is a traveler position report.
type PositionUpdate struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Bearing  *float64 `json:"bearing,omitempty"`
}

// JourneyStartRequest is the optional request body for starting a journey.
type JourneyStartRequest struct {
	Position *PositionUpdate `json:"position,omitempty"`
}

// JourneyRateRequest is the request body for rating a completed journey.
type JourneyRateRequest struct {
	Rating   int     `json:"rating"`
	Feedback *string `json:"feedback,omitempty"`
}

// LegStop is an intermediate stop on a leg.
type LegStop struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Point      Point  `json:"point"`
	Order      int    `json:"order"`
	Optional   bool   `json:"optional"`
}

// LegPlace is a leg start or end location.
type LegPlace struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Point      Point  `json:"point"`
}

// Leg is one traversal of one segment within a journey.
type Leg struct {
	ID                  string     `json:"id"`
	Order               int        `json:"order"`
	SegmentID           string     `json:"segmentId"`
	TransportMode       string     `json:"transportMode"`
	Status              string     `json:"status"`
	Start               LegPlace   `json:"start"`
	End                 LegPlace   `json:"end"`
	Stops               []LegStop  `json:"stops"`
	Polyline            string     `json:"polyline"`
	DurationMin         int        `json:"durationMin"`
	DistanceKm          float64    `json:"distanceKm"`
	MinFare             float64    `json:"minFare"`
	MaxFare             float64    `json:"maxFare"`
	ActualStartAt       *Timestamp `json:"actualStartAt,omitempty"`
	ActualEndAt         *Timestamp `json:"actualEndAt,omitempty"`
	IsTransferRequired  bool       `json:"isTransferRequired"`
	TransferInstruction *string    `json:"transferInstruction,omitempty"`
	EstimatedWaitMin    int        `json:"estimatedWaitMin"`
}

// Journey is a traveler's journey with its legs.
type Journey struct {
	ID                   string          `json:"id"`
	RouteID              *string         `json:"routeId,omitempty"`
	Origin               JourneyEndpoint `json:"origin"`
	Destination          JourneyEndpoint `json:"destination"`
	Status               string          `json:"status"`
	PlannedStartAt       *Timestamp      `json:"plannedStartAt,omitempty"`
	ActualStartAt        *Timestamp      `json:"actualStartAt,omitempty"`
	ActualEndAt          *Timestamp      `json:"actualEndAt,omitempty"`
	EstimatedDurationMin int             `json:"estimatedDurationMin"`
	EstimatedDistanceKm  float64         `json:"estimatedDistanceKm"`
	EstimatedMinFare     float64         `json:"estimatedMinFare"`
	EstimatedMaxFare     float64         `json:"estimatedMaxFare"`
	ActualDurationMin    *int            `json:"actualDurationMin,omitempty"`
	TotalFare            *float64        `json:"totalFare,omitempty"`
	TrackingEnabled      bool            `json:"trackingEnabled"`
	NotificationsEnabled bool            `json:"notificationsEnabled"`
	Rating               *int            `json:"rating,omitempty"`
	Feedback             *string         `json:"feedback,omitempty"`
	Legs                 []Leg           `json:"legs"`
	CreatedAt            Timestamp       `json:"createdAt"`
	UpdatedAt            Timestamp       `json:"updatedAt"`
}

// PagedJourneys represents a list of journeys.
type PagedJourneys struct {
	Items []Journey         `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
