package utils

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

var errEmptySecret = errors.New("token secret is not configured")

// GenerateToken signs an HS256 bearer token for userID. Production tokens come
// from the auth provider; this backs the "token" command for local use and tests.
func GenerateToken(secretKey, userID string, tokenDuration time.Duration) (string, error) {
	if secretKey == "" {
		return "", errEmptySecret
	}
	claims := transfer.AuthClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "postpilot",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return signedToken, nil
}

// ValidateToken verifies an HS256 bearer token and returns its claims. The
// subject must be a user UUID.
func ValidateToken(secretKey, tokenString string) (*transfer.AuthClaims, error) {
	if secretKey == "" {
		slog.Info(errEmptySecret.Error())
		return nil, errEmptySecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &transfer.AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	claims, ok := token.Claims.(*transfer.AuthClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, errors.New("invalid token subject")
	}

	return claims, nil
}
