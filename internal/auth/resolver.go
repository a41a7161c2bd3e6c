package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/models"
)

var (
	ErrMissingCredential = fmt.Errorf("%w: missing or malformed Authorization header", errs.ErrUnauthenticated)
	ErrInvalidToken      = fmt.Errorf("%w: invalid token", errs.ErrUnauthenticated)
	ErrInvalidClaims     = fmt.Errorf("%w: invalid token claims", errs.ErrUnauthenticated)
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Resolver maps a bearer credential to a principal.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Principal, error)
}

// Provisioner stores a principal the first time it is seen.
type Provisioner interface {
	Ensure(id, name, email string) (*models.Principal, error)
}

var parseJWT = func(tokenStr string, keyFunc jwt.Keyfunc) (*jwt.Token, error) {
	return jwt.Parse(tokenStr, keyFunc)
}

// JWTResolver validates HS256 tokens issued by the user service.
type JWTResolver struct {
	secret      []byte
	provisioner Provisioner
	logger      *zap.Logger
}

// NewJWTResolver returns a resolver. provisioner may be nil, in which case
// principals are not persisted locally.
func NewJWTResolver(secret string, provisioner Provisioner, logger *zap.Logger) *JWTResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTResolver{secret: []byte(secret), provisioner: provisioner, logger: logger}
}

func (r *JWTResolver) Resolve(_ context.Context, credential string) (Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, ErrMissingCredential
	}

	token, err := parseJWT(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidClaims
	}

	id, err := subject(claims)
	if err != nil {
		return Principal{}, err
	}
	p := Principal{ID: id, Name: stringClaim(claims, "name"), Email: stringClaim(claims, "email")}
	if p.Name == "" {
		p.Name = stringClaim(claims, "username")
	}

	if r.provisioner != nil {
		stored, err := r.provisioner.Ensure(p.ID, p.Name, p.Email)
		if err != nil {
			r.logger.Error("failed to provision principal", zap.String("principal", p.ID), zap.Error(err))
			return Principal{}, fmt.Errorf("provision principal: %w", err)
		}
		if p.Name == "" {
			p.Name = stored.Name
		}
		if p.Email == "" {
			p.Email = stored.Email
		}
	}
	return p, nil
}

// subject extracts sub as a string. JWT numbers decode as float64.
func subject(claims jwt.MapClaims) (string, error) {
	sub, ok := claims["sub"]
	if !ok {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidClaims)
	}
	switch v := sub.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("%w: empty sub claim", ErrInvalidClaims)
		}
		return v, nil
	case float64:
		return fmt.Sprintf("%d", int64(v)), nil
	default:
		return "", fmt.Errorf("%w: invalid sub claim type", ErrInvalidClaims)
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
