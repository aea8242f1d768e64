// Package realtime implements C7, the RealtimeGateway: a multi-namespace
// websocket session router sitting in front of the EventBus (spec.md §4.7).
package realtime

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/catalystvision/core/errors"
)

// Claims is the bearer-token shape every gateway connection (other than
// read-only subscriptions, where a token is optional) must present
// (spec.md §4.7).
type Claims struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
	jwt.RegisteredClaims
}

// Valid overrides jwt.RegisteredClaims' own Valid(), which jwt.ParseWithClaims
// calls with zero leeway — too strict for the ±5s skew tolerance spec.md §4.7
// requires. It checks only that required claims are present; time and issuer
// checks happen afterwards in Authenticator.Authenticate, where the
// configured tolerance is available.
func (c *Claims) Valid() error {
	if c.ExpiresAt == nil {
		return errors.Authorization("token missing exp claim", nil)
	}
	if c.UserID == "" {
		return errors.Authorization("token missing user_id claim", nil)
	}
	if c.ID == "" {
		return errors.Authorization("token missing jti claim", nil)
	}
	return nil
}

// checkTimingAndIssuer applies spec.md §4.7's ±5s skew tolerance to exp/nbf
// and rejects a mismatched issuer.
func (c *Claims) checkTimingAndIssuer(expectedIssuer string, skew time.Duration) error {
	now := time.Now()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time.Add(skew)) {
		return errors.Authorization("token expired", nil)
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time.Add(-skew)) {
		return errors.Authorization("token not yet valid", nil)
	}
	if expectedIssuer != "" && c.Issuer != expectedIssuer {
		return errors.Authorization("token issuer mismatch", nil)
	}
	return nil
}

// Authenticator validates the bearer token presented at connect time.
type Authenticator struct {
	secret   []byte
	issuer   string
	skew     time.Duration
}

func NewAuthenticator(secret []byte, issuer string, skew time.Duration) *Authenticator {
	return &Authenticator{secret: secret, issuer: issuer, skew: skew}
}

// Authenticate parses and validates tokenString, returning the claims on
// success (spec.md §4.7). A parse failure, an expired/not-yet-valid token,
// or an issuer mismatch all surface as errors.Authorization.
func (a *Authenticator) Authenticate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.Authorization("unable to parse bearer token", err)
	}
	if !token.Valid {
		return nil, errors.Authorization("invalid bearer token", nil)
	}
	if err := claims.checkTimingAndIssuer(a.issuer, a.skew); err != nil {
		return nil, err
	}
	return claims, nil
}
