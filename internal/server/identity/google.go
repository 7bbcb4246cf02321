package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// GoogleProvider is the provider name accepted by external login.
	GoogleProvider = "google"

	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	defaultJWKSTTL     = time.Hour
	defaultHTTPTimeout = 5 * time.Second
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

type googleClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleValidator verifies Google ID tokens: RS256 signature against Google's
// published keys, issuer, audience (the OAuth client id) and expiry.
type GoogleValidator struct {
	clientID string
	keys     *jwksCache
	now      func() time.Time
}

type GoogleOption func(*GoogleValidator)

// WithJWKSURL points the validator at a different key set.
func WithJWKSURL(url string) GoogleOption {
	return func(v *GoogleValidator) { v.keys.url = url }
}

func WithHTTPClient(c HTTPClient) GoogleOption {
	return func(v *GoogleValidator) { v.keys.client = c }
}

func WithClock(now func() time.Time) GoogleOption {
	return func(v *GoogleValidator) {
		v.now = now
		v.keys.now = now
	}
}

func NewGoogleValidator(clientID string, opts ...GoogleOption) *GoogleValidator {
	v := &GoogleValidator{
		clientID: clientID,
		keys:     newJWKSCache(GoogleJWKSURL, defaultJWKSTTL, &http.Client{Timeout: defaultHTTPTimeout}),
		now:      time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *GoogleValidator) Validate(ctx context.Context, idToken string) (*Claim, error) {
	if v.clientID == "" {
		return nil, errors.New("google client id is not configured")
	}

	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return v.keys.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("google id token: %w", err)
	}

	if !slices.Contains(googleIssuers, claims.Issuer) {
		return nil, fmt.Errorf("google id token: unexpected issuer %q", claims.Issuer)
	}
	if claims.Email == "" {
		return nil, errors.New("google id token: no email claim")
	}

	return &Claim{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
