// Package auth verifies who a connection belongs to, either against the
// Mojang session service or with self-issued JWTs.
package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"axochat.org/axochat/pkg/config"
)

// User is the identity carried inside a token.
type User struct {
	Name string    `json:"name"`
	UUID uuid.UUID `json:"uuid"`
}

type tokenClaims struct {
	User User `json:"user"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates bearer tokens with a symmetric key.
type Authenticator struct {
	method    jwt.SigningMethod
	key       []byte
	validTime time.Duration
}

func NewAuthenticator(cfg *config.AuthConfig) (*Authenticator, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading jwt key: %w", err)
	}
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown jwt algorithm %q", cfg.Algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwt algorithm %q is not an HMAC method", cfg.Algorithm)
	}
	return &Authenticator{
		method:    method,
		key:       key,
		validTime: cfg.ValidTime.Duration(),
	}, nil
}

// NewToken mints a token for user, valid for the configured time.
func (a *Authenticator) NewToken(user User) (string, error) {
	t := jwt.NewWithClaims(a.method, &tokenClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.validTime)),
		},
	})
	return t.SignedString(a.key)
}

// Auth validates token and returns the user it encodes.
func (a *Authenticator) Auth(token string) (User, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.key, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return User{}, err
	}
	if !parsed.Valid {
		return User{}, errors.New("invalid token")
	}
	return claims.User, nil
}
