package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lawdesk/kioskd/internal/session"
)

// DefaultTokenTTL is the fallback expiration for session tokens.
const DefaultTokenTTL = 4 * time.Hour

// ErrInvalidToken is returned when a session token fails verification.
var ErrInvalidToken = errors.New("service: invalid token")

// Claims represents the JWT claims carried by a session token.
type Claims struct {
	Registration string `json:"registration"`
	Name         string `json:"name"`
	ClientTag    string `json:"client_tag,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies the bearer tokens handed to kiosks
// at login. Issuance and expiry checks both run against the injected
// clock.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  session.Clock
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret string, ttl time.Duration, clock session.Clock) *TokenService {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if clock == nil {
		clock = session.RealClock{}
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}
}

// Issue signs a token for the profile.
func (t *TokenService) Issue(profile session.Profile, clientTag string) (string, error) {
	now := t.clock.Now()

	claims := Claims{
		Registration: profile.Registration,
		Name:         profile.Name,
		ClientTag:    clientTag,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.Registration,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token, returning its claims.
func (t *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.clock.Now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
