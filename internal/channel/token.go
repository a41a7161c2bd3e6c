package channel

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenUnavailable = errors.New("chat token issuer is not configured")

// TokenIssuer signs chat provider tokens with the API secret.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// UserToken returns a client token carrying the principal as user_id.
func (t *TokenIssuer) UserToken(userID string) (string, error) {
	if t == nil || len(t.secret) == 0 {
		return "", ErrTokenUnavailable
	}
	if userID == "" {
		return "", errors.New("user id required")
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     t.now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ServerToken returns the token used for server-side REST calls.
func (t *TokenIssuer) ServerToken() (string, error) {
	if t == nil || len(t.secret) == 0 {
		return "", ErrTokenUnavailable
	}
	claims := jwt.MapClaims{"server": true}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}
