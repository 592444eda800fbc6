package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/auth"
)

type travelerIDKey struct{}

type travelerRecorderKey struct{}

// travelerRecorder lets outer middleware see who Auth authenticated.
type travelerRecorder struct {
	travelerID string
}

func withTravelerRecorder(ctx context.Context, tr *travelerRecorder) context.Context {
	return context.WithValue(ctx, travelerRecorderKey{}, tr)
}

// TokenAuthenticator resolves a bearer token to a traveler ID.
type TokenAuthenticator interface {
	Authenticate(token string) (string, error)
}

// accessTokenParam carries the token for event stream clients, which cannot
// set request headers.
const accessTokenParam = "access_token"

// errNoCredentials and errMalformedHeader are reported as the 401 detail.
var (
	errNoCredentials   = errors.New("missing authorization header")
	errMalformedHeader = errors.New("invalid authorization header format")
)

// Auth rejects requests without a valid bearer token and stores the
// traveler id in the context. Event stream requests may pass the token as
// the access_token query parameter instead of a header.
func Auth(authenticator TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, r, err.Error())
				return
			}

			travelerID, err := authenticator.Authenticate(token)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrAccessTokenExpired):
				writeUnauthorized(w, r, "access token has expired")
				return
			case errors.Is(err, auth.ErrInvalidAccessToken):
				writeUnauthorized(w, r, "invalid access token")
				return
			default:
				writeUnauthorized(w, r, "authentication failed")
				return
			}

			if tr, ok := r.Context().Value(travelerRecorderKey{}).(*travelerRecorder); ok {
				tr.travelerID = travelerID
			}
			next.ServeHTTP(w, r.WithContext(WithTravelerID(r.Context(), travelerID)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := r.URL.Query().Get(accessTokenParam); token != "" && acceptsEventStream(r) {
			return token, nil
		}
		return "", errNoCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedHeader
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// writeUnauthorized lives here rather than in response, which imports this
// package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tripwise"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// WithTravelerID returns a copy of ctx carrying the authenticated traveler ID.
func WithTravelerID(ctx context.Context, travelerID string) context.Context {
	return context.WithValue(ctx, travelerIDKey{}, travelerID)
}

// GetTravelerID returns the authenticated traveler ID, or "" for anonymous
// requests.
func GetTravelerID(ctx context.Context) string {
	if id, ok := ctx.Value(travelerIDKey{}).(string); ok {
		return id
	}
	return ""
}
