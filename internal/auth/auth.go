// Package auth issues and validates the bearer tokens that identify users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Static errors for authentication.
var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is wrapped by every token validation failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSecretRequired is returned when the signing secret is empty.
	ErrSecretRequired = errors.New("JWT secret is required")
)

// Issuer is the iss claim of access tokens.
const Issuer = "tubely-access"

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = time.Hour

// Validator resolves a bearer token to the user it identifies.
type Validator interface {
	Validate(token string) (userID string, err error)
}

// Compile-time check that JWT implements Validator.
var _ Validator = (*JWT)(nil)

// JWT signs and validates HS256 access tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// JWTOption configures a JWT.
type JWTOption func(*JWT)

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) JWTOption {
	return func(j *JWT) {
		if d > 0 {
			j.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) JWTOption {
	return func(j *JWT) {
		if now != nil {
			j.now = now
		}
	}
}

// NewJWT creates a JWT signer and validator for secret.
func NewJWT(secret string, opts ...JWTOption) (*JWT, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	j := &JWT{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Issue returns a signed access token for userID. The API only validates
// tokens; cmd/token issues them.
func (j *JWT) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	now := j.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature, issuer and expiry of token and returns its
// subject.
func (j *JWT) Validate(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(h http.Header) (string, error) {
	value := h.Get("Authorization")
	if value == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type userIDKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
