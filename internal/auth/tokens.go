package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/umar/donaty-chat/internal/models"
)

var ErrTokenExpired = errors.New("auth: token expired")

type Claims struct {
	Name  string      `json:"nombre,omitempty"`
	Email string      `json:"email,omitempty"`
	Role  models.Role `json:"rol,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken reads a JWT's claims without verifying its signature; the
// client never holds the signing key. Tokens that are not JWTs are opaque and
// pass with nil claims. An expired JWT returns ErrTokenExpired.
func InspectToken(token string, now time.Time) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return &claims, ErrTokenExpired
	}
	return &claims, nil
}

// GenerateToken signs an HS256 token, as the backend does at login.
func GenerateToken(userID, name string, role models.Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ValidateToken(tokenStr, secret string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}
