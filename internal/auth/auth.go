// Package auth issues and validates guest identity tokens.
//
// Joiners are anonymous. A guest token is minted on first contact and carries
// only an opaque user id; the id never reveals anything about the person
// behind it.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/id"
)

// DefaultTTL bounds how long a guest token stays valid.
const DefaultTTL = 24 * time.Hour

// Claims are the JWT claims carried by a guest token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Service mints and validates guest tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewService creates a token service signing with the given secret.
func NewService(secret []byte, ttl time.Duration) (*Service, error) {
	if len(secret) == 0 {
		return nil, apperrors.New(apperrors.CodeAuthInvalid, "signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: secret, ttl: ttl, clock: time.Now}, nil
}

// Guest holds a freshly minted guest identity.
type Guest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// IssueGuest mints a new anonymous identity and its signed token.
func (s *Service) IssueGuest() (Guest, error) {
	userID, err := id.NewID()
	if err != nil {
		return Guest{}, apperrors.Wrap(apperrors.CodeAuthInvalid, "generate user id", err)
	}

	now := s.clock().UTC()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Guest{}, apperrors.Wrap(apperrors.CodeAuthInvalid, "sign token", err)
	}
	return Guest{UserID: userID, Token: signed}, nil
}

// Validate checks a token's signature and expiry and returns the user id.
func (s *Service) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeAuthInvalid, "invalid or expired token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", apperrors.New(apperrors.CodeAuthInvalid, "invalid or expired token")
	}
	return claims.UserID, nil
}
