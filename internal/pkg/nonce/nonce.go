// Package nonce issues and verifies per-session anti-forgery tokens bound to an
// action and a user.
package nonce

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissing  = errors.New("nonce is required")
	ErrMismatch = errors.New("nonce does not match action or user")
)

type claims struct {
	Action string `json:"act"`
	UserID string `json:"uid,omitempty"`
	jwtlib.RegisteredClaims
}

// Issuer signs and verifies nonces.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer. Nonces expire after lifetime.
func NewIssuer(secret string, lifetime time.Duration) *Issuer {
	if secret == "" {
		secret = uuid.NewString()
	}
	return &Issuer{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

// Issue creates a nonce for action on behalf of userID (empty for anonymous).
func (i *Issuer) Issue(action, userID string) (string, error) {
	now := i.now()
	c := claims{
		Action: action,
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.lifetime)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(i.secret)
}

// Verify checks that token is a valid, unexpired nonce for action and userID.
func (i *Issuer) Verify(token, action, userID string) error {
	if token == "" {
		return ErrMissing
	}
	var c claims
	_, err := jwtlib.ParseWithClaims(token, &c, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(i.now))
	if err != nil {
		return fmt.Errorf("invalid nonce: %w", err)
	}
	if c.Action != action || c.UserID != userID {
		return ErrMismatch
	}
	return nil
}
