// Package auth verifies the signed credentials clients present during the
// WebSocket handshake and extracts the authenticated user identity from them.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no credential was supplied at all.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken is returned when the credential fails signature or
	// structural validation, including expiry.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingIdentity is returned when a cryptographically valid token
	// carries no user identity claim.
	ErrMissingIdentity = errors.New("auth: token has no userId claim")
)

// Claims is the payload of a verified credential. UserID is the only claim
// the relay acts on; everything else rides along as standard JWT metadata.
// The identity claim may be issued as a string or a number.
type Claims struct {
	jwt.RegisteredClaims
	UserID Identity `json:"userId"`
}

// Verifier validates HMAC-signed tokens against a single shared secret.
// It is stateless and safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the credential's signature and claims and returns the decoded
// Claims. A credential is either fully valid or rejected; there is no partial
// trust. Expired tokens are rejected by the library's standard validation.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrMissingIdentity
	}

	return claims, nil
}
