package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"docvault/internal/model"
)

// ErrTokenInvalid is returned when a bearer token cannot be verified.
var ErrTokenInvalid = errors.New("auth token invalid")

// ActorClaims are the JWT claims carried by actor bearer tokens.
type ActorClaims struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// SignActorToken issues an HS256 bearer token for the given actor.
func SignActorToken(secret string, actor model.Actor, ttl time.Duration) (string, error) {
	claims := ActorClaims{
		Name:  actor.Name,
		Admin: actor.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseActorToken verifies a bearer token and resolves the actor it represents.
func ParseActorToken(secret, tokenString string) (*model.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return &model.Actor{
		ID:    claims.Subject,
		Name:  claims.Name,
		Admin: claims.Admin,
	}, nil
}
