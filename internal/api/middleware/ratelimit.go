package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tripwise/tripwise/internal/api/models"
)

// RateLimitConfig is a fixed request budget per window.
type RateLimitConfig struct {
	// Name appears in the 429 detail, e.g. "planning".
	Name         string
	RequestLimit int
	WindowLength time.Duration
}

var (
	// PlanningRateLimit applies to journey creation, which runs route search.
	PlanningRateLimit = RateLimitConfig{Name: "planning", RequestLimit: 30, WindowLength: time.Minute}

	// LocationRateLimit applies to position reports. A device reporting every
	// second stays well inside it.
	LocationRateLimit = RateLimitConfig{Name: "location", RequestLimit: 120, WindowLength: time.Minute}

	// StandardRateLimit applies to everything else.
	StandardRateLimit = RateLimitConfig{Name: "standard", RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits by client address. Run chi's RealIP first so proxied
// requests are keyed by the real client.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByTraveler limits by authenticated traveler, so one traveler on
// several networks shares a budget. Anonymous requests fall back to the
// client address.
func RateLimitByTraveler(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyByTravelerOrIP)
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))
	detail := fmt.Sprintf("Rate limit exceeded for %s requests (%d per %s).", cfg.Name, cfg.RequestLimit, cfg.WindowLength)

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the reset time; a full window is the upper bound.
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), detail).
				WithInstance(r.URL.Path).
				Write(w)
		}),
	)
}

func keyByTravelerOrIP(r *http.Request) (string, error) {
	if travelerID := GetTravelerID(r.Context()); travelerID != "" {
		return "traveler:" + travelerID, nil
	}
	return httprate.KeyByRealIP(r)
}
